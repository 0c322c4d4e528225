package mq

import "testing"

func TestDecide(t *testing.T) {
	tests := []struct {
		name      string
		retryable bool
		attempt   int64
		max       int64
		want      action
	}{
		{"non-retryable goes to DLQ", false, 0, 3, actionDeadLetter},
		{"retryable first attempt requeues", true, 1, 3, actionRequeue},
		{"retryable at limit requeues", true, 3, 3, actionRequeue},
		{"retryable past limit goes to DLQ", true, 4, 3, actionDeadLetter},
		{"retryable without counter requeues", true, 0, 3, actionRequeue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := decide(tt.retryable, tt.attempt, tt.max); got != tt.want {
				t.Errorf("decide(%v, %d, %d) = %v, want %v", tt.retryable, tt.attempt, tt.max, got, tt.want)
			}
		})
	}
}

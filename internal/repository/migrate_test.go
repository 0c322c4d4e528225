package repository

import (
	"strings"
	"testing"
)

func TestMigrations_Embedded(t *testing.T) {
	ms, err := Migrations()
	if err != nil {
		t.Fatalf("Migrations failed: %v", err)
	}
	if len(ms) == 0 || ms[0].Version != 1 {
		t.Fatalf("expected migration 1 first, got %+v", ms)
	}
	for i := 1; i < len(ms); i++ {
		if ms[i].Version <= ms[i-1].Version {
			t.Errorf("migrations out of order: %d after %d", ms[i].Version, ms[i-1].Version)
		}
	}
	schema := ms[0].SQL
	for _, want := range []string{"proposals_one_accepted", "proposals_project_freelancer", "outbox_events", "ratings_project_rater"} {
		if !strings.Contains(schema, want) {
			t.Errorf("initial schema missing %s", want)
		}
	}
}

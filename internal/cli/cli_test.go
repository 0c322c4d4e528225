package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"freelancehub/pkg/util"
)

func TestTokenCmd(t *testing.T) {
	cmd := TokenCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--user", "7", "--role", "client", "--secret", "s3cret", "--ttl", "1h"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	claims, err := util.ParseJWT(strings.TrimSpace(out.String()), "s3cret")
	if err != nil {
		t.Fatalf("issued token does not parse: %v", err)
	}
	if claims.UserID != 7 || claims.Role != "client" {
		t.Errorf("unexpected claims %+v", claims)
	}
}

func TestTokenCmd_RejectsBadInput(t *testing.T) {
	tests := [][]string{
		{"--user", "0", "--secret", "x"},
		{"--user", "3", "--role", "admin", "--secret", "x"},
	}
	for _, args := range tests {
		cmd := TokenCmd()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs(args)
		if err := cmd.Execute(); err == nil {
			t.Errorf("expected error for %v", args)
		}
	}
}

func TestMigrateCmd_List(t *testing.T) {
	cmd := MigrateCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--list"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !strings.Contains(out.String(), "0001") {
		t.Errorf("expected first migration listed, got %q", out.String())
	}
}

func TestOutboxReplay_RequiresOneTarget(t *testing.T) {
	cmd := OutboxCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"replay"})
	if err := cmd.Execute(); err == nil {
		t.Error("expected error without --id or --failed")
	}
}

type fakeSkills struct {
	ids    map[string]int64
	set    map[int64][]int64
	setErr error
}

func (f *fakeSkills) EnsureSkill(_ context.Context, name string) (int64, error) {
	if id, ok := f.ids[name]; ok {
		return id, nil
	}
	id := int64(len(f.ids) + 1)
	f.ids[name] = id
	return id, nil
}

func (f *fakeSkills) SetUserSkills(_ context.Context, userID int64, ids []int64) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.set[userID] = ids
	return nil
}

type fakeInvalidator struct{ ids []int64 }

func (f *fakeInvalidator) Invalidate(_ context.Context, id int64) { f.ids = append(f.ids, id) }

func TestReplaceSkills_InvalidatesRecommendations(t *testing.T) {
	users := &fakeSkills{ids: map[string]int64{"go": 1}, set: map[int64][]int64{}}
	cache := &fakeInvalidator{}

	ids, err := replaceSkills(context.Background(), users, cache, 3, []string{" Go", "postgres", "go", ""})
	if err != nil {
		t.Fatalf("replaceSkills failed: %v", err)
	}
	if len(ids) != 2 || ids[0] != 1 || users.set[3][1] != ids[1] {
		t.Errorf("unexpected skill ids %v (stored %v)", ids, users.set[3])
	}
	if len(cache.ids) != 1 || cache.ids[0] != 3 {
		t.Errorf("expected recommendations of user 3 invalidated, got %v", cache.ids)
	}

	users.setErr = errors.New("db down")
	if _, err := replaceSkills(context.Background(), users, cache, 4, []string{"go"}); err == nil {
		t.Fatal("expected error from SetUserSkills")
	}
	if len(cache.ids) != 1 {
		t.Errorf("failed write must not invalidate, got %v", cache.ids)
	}
}

package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestToken_IsExpired(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Second)
	future := now.Add(time.Hour)

	tests := []struct {
		name    string
		expires *time.Time
		want    bool
	}{
		{"no expiry", nil, false},
		{"expired one second ago", &past, true},
		{"expires later", &future, false},
		{"expires exactly now", &now, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok := &Token{Expires: tt.expires}
			if got := tok.IsExpired(now); got != tt.want {
				t.Errorf("IsExpired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestToken_ObjectRef(t *testing.T) {
	id := uuid.New()
	ref := (&Token{ID: id}).ObjectRef()
	if ref.AppLabel != "users" || ref.ModelName != "token" || ref.ID != id.String() {
		t.Errorf("unexpected object ref %+v", ref)
	}
}

func TestPermissionGrant_SubjectKey(t *testing.T) {
	g := PermissionGrant{SubjectKind: SubjectGroup, Subject: "netops"}
	if got := g.SubjectKey(); got != "group:netops" {
		t.Errorf("expected group:netops, got %s", got)
	}
}

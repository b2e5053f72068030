package domain

import (
	"context"
	"errors"
	"testing"
)

func TestParseRole(t *testing.T) {
	for _, tag := range []string{"Admin", "User", "Guest"} {
		r, err := ParseRole(tag)
		if err != nil {
			t.Fatalf("ParseRole(%q) error: %v", tag, err)
		}
		if string(r) != tag {
			t.Fatalf("ParseRole(%q) = %q", tag, r)
		}
	}

	for _, tag := range []string{"", "admin", "Root", `"Admin"`} {
		if _, err := ParseRole(tag); !errors.Is(err, ErrUnknownRole) {
			t.Fatalf("ParseRole(%q): expected ErrUnknownRole, got %v", tag, err)
		}
	}
}

func TestHasAnyRole(t *testing.T) {
	required := []Role{RoleAdmin}

	cases := []struct {
		name string
		held []Role
		want bool
	}{
		{"user only", []Role{RoleUser}, false},
		{"user and admin", []Role{RoleUser, RoleAdmin}, true},
		{"admin only", []Role{RoleAdmin}, true},
		{"empty", nil, false},
		{"guest", []Role{RoleGuest}, false},
	}
	for _, tc := range cases {
		if got := HasAnyRole(tc.held, required); got != tc.want {
			t.Fatalf("%s: HasAnyRole(%v, %v) = %v, want %v", tc.name, tc.held, required, got, tc.want)
		}
	}

	if HasAnyRole([]Role{RoleAdmin}, nil) {
		t.Fatalf("empty required set must admit nobody")
	}
	if !HasAnyRole([]Role{RoleGuest}, []Role{RoleAdmin, RoleGuest}) {
		t.Fatalf("any-of semantics: guest should satisfy {Admin, Guest}")
	}
}

func TestClaimsContext(t *testing.T) {
	if _, ok := ClaimsFromContext(context.Background()); ok {
		t.Fatalf("expected no claims on empty context")
	}

	c := &Claims{Subject: "alice", Roles: []Role{RoleAdmin}}
	ctx := ContextWithClaims(context.Background(), c)
	got, ok := ClaimsFromContext(ctx)
	if !ok || got != c {
		t.Fatalf("claims not returned from context: %+v", got)
	}

	if _, ok := ClaimsFromContext(ContextWithClaims(context.Background(), nil)); ok {
		t.Fatalf("nil claims must not count as present")
	}
}

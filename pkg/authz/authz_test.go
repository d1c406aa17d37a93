package authz

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func testPolicy() *Policy {
	return &Policy{
		SuperUsers: []string{"admin"},
		Grants: map[string][]Permission{
			"alice": {PermPortPreCheck, PermPortConfigure, PermHistoryView},
			"bot":   {PermAll},
		},
	}
}

func TestCheckUser(t *testing.T) {
	c := NewChecker(testPolicy())

	cases := []struct {
		user string
		perm Permission
		want bool
	}{
		{"admin", PermPortRollback, true},
		{"alice", PermPortConfigure, true},
		{"alice", PermPortRollback, false},
		{"bot", PermPortRollback, true},
		{"mallory", PermHistoryView, false},
	}
	for _, tc := range cases {
		err := c.CheckUser(tc.user, tc.perm, &Context{Device: "leaf-01"})
		if got := err == nil; got != tc.want {
			t.Errorf("CheckUser(%s, %s): allowed=%v, want %v", tc.user, tc.perm, got, tc.want)
		}
	}
}

func TestDeniedErrorDetails(t *testing.T) {
	c := NewChecker(testPolicy())
	err := c.CheckUser("mallory", PermPortConfigure, &Context{Device: "leaf-01"})

	var perr *PermissionError
	if !errors.As(err, &perr) {
		t.Fatalf("expected PermissionError, got %v", err)
	}
	if perr.User != "mallory" || perr.Permission != PermPortConfigure {
		t.Errorf("unexpected error fields: %+v", perr)
	}
}

func TestNilPolicyAllowsAll(t *testing.T) {
	c := NewChecker(nil)
	if err := c.CheckUser("anyone", PermPortRollback, nil); err != nil {
		t.Errorf("nil policy should allow everything, got %v", err)
	}

	var nilChecker *Checker
	if err := nilChecker.CheckUser("anyone", PermPortRollback, nil); err != nil {
		t.Errorf("nil checker should allow everything, got %v", err)
	}
}

func TestSetUser(t *testing.T) {
	c := NewChecker(testPolicy())

	c.SetUser("mallory")
	if err := c.Check(PermPortRollback, nil); err == nil {
		t.Error("expected denial for mallory")
	}

	c.SetUser("admin")
	if c.CurrentUser() != "admin" {
		t.Errorf("CurrentUser = %q, want admin", c.CurrentUser())
	}
	if err := c.Check(PermPortRollback, nil); err != nil {
		t.Errorf("superuser check failed: %v", err)
	}
}

func TestLoadPolicy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	content := `super_users:
  - admin
grants:
  alice:
    - port.precheck
    - port.configure
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	p, err := LoadPolicy(path)
	if err != nil {
		t.Fatalf("LoadPolicy: %v", err)
	}
	if len(p.SuperUsers) != 1 || p.SuperUsers[0] != "admin" {
		t.Errorf("super_users = %v", p.SuperUsers)
	}
	if perms := p.Grants["alice"]; len(perms) != 2 || perms[0] != PermPortPreCheck {
		t.Errorf("grants[alice] = %v", perms)
	}
}

func TestLoadPolicyMissing(t *testing.T) {
	if _, err := LoadPolicy(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing policy file")
	}
}

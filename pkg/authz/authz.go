// Package authz provides permission-based access control for port
// configuration operations.
package authz

import (
	"fmt"
	"os/user"
)

// Permission defines an action that can be controlled
type Permission string

// Standard permissions
const (
	PermPortPreCheck  Permission = "port.precheck"
	PermPortConfigure Permission = "port.configure"
	PermPortRollback  Permission = "port.rollback"

	PermHistoryView Permission = "history.view"
	PermDeviceView  Permission = "device.view"

	PermAll Permission = "all" // Superuser - allows everything
)

// Context carries the target of the checked operation, for error reporting.
type Context struct {
	Device    string
	Interface string
}

// PermissionError reports a denied operation.
type PermissionError struct {
	User       string
	Permission Permission
	Context    *Context
}

func (e *PermissionError) Error() string {
	if e.Context != nil && e.Context.Device != "" {
		return fmt.Sprintf("user %s denied %s on %s", e.User, e.Permission, e.Context.Device)
	}
	return fmt.Sprintf("user %s denied %s", e.User, e.Permission)
}

// Checker validates user permissions against a policy. A nil Checker or a
// Checker over a nil policy allows everything, so deployments without a
// policy file run open.
type Checker struct {
	policy      *Policy
	currentUser string
}

// NewChecker creates a permission checker. The current OS user is the
// default principal.
func NewChecker(policy *Policy) *Checker {
	username := "unknown"
	if u, err := user.Current(); err == nil {
		username = u.Username
	}
	return &Checker{policy: policy, currentUser: username}
}

// SetUser overrides the current user (for testing or sudo)
func (c *Checker) SetUser(username string) {
	c.currentUser = username
}

// CurrentUser returns the current username
func (c *Checker) CurrentUser() string {
	return c.currentUser
}

// Check verifies if the current user has a permission
func (c *Checker) Check(permission Permission, ctx *Context) error {
	if c == nil {
		return nil
	}
	return c.CheckUser(c.currentUser, permission, ctx)
}

// CheckUser verifies if a specific user has a permission
func (c *Checker) CheckUser(username string, permission Permission, ctx *Context) error {
	if c == nil || c.policy == nil {
		return nil
	}
	if c.isSuperUser(username) {
		return nil
	}
	for _, p := range c.policy.Grants[username] {
		if p == permission || p == PermAll {
			return nil
		}
	}
	return &PermissionError{
		User:       username,
		Permission: permission,
		Context:    ctx,
	}
}

func (c *Checker) isSuperUser(username string) bool {
	if c == nil || c.policy == nil {
		return false
	}
	for _, su := range c.policy.SuperUsers {
		if su == username {
			return true
		}
	}
	return false
}

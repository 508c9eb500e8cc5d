package auth

import (
	"errors"
	"strings"

	"github.com/casbin/casbin/v2"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"
)

type Mode string

const (
	ModeEnforce  Mode = "enforce"
	ModeShadow   Mode = "shadow"
	ModeDisabled Mode = "disabled"
)

// Objects and actions named in the policy file.
const (
	ObjectAccounts   = "accounts"
	ObjectAdminUsers = "admin_users"
	ObjectSystem     = "system"

	ActionRead  = "read"
	ActionWrite = "write"
	ActionReset = "reset"
)

type Authorizer struct {
	enforcer *casbin.Enforcer
	mode     Mode
}

func NewAuthorizer(modelPath, policyPath string, mode Mode) (*Authorizer, error) {
	switch mode {
	case ModeEnforce, ModeShadow, ModeDisabled:
	default:
		return nil, errors.New("authz: invalid mode (expected enforce|shadow|disabled)")
	}
	enforcer, err := casbin.NewEnforcer(modelPath)
	if err != nil {
		return nil, err
	}
	enforcer.SetAdapter(fileadapter.NewAdapter(policyPath))
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	return &Authorizer{enforcer: enforcer, mode: mode}, nil
}

func (a *Authorizer) Mode() Mode { return a.mode }

func Subject(role string) string {
	role = strings.TrimSpace(strings.ToLower(role))
	if role == "" {
		role = "anonymous"
	}
	return "role:" + role
}

// Authorize reports whether role may perform action on object, and whether
// the decision is enforced. Shadow mode evaluates without enforcing.
func (a *Authorizer) Authorize(role, object, action string) (allowed bool, enforced bool, err error) {
	switch a.mode {
	case ModeDisabled:
		return true, false, nil
	case ModeShadow:
		ok, err := a.enforcer.Enforce(Subject(role), object, action)
		if err != nil {
			return false, false, err
		}
		return ok, false, nil
	case ModeEnforce:
		ok, err := a.enforcer.Enforce(Subject(role), object, action)
		if err != nil {
			return false, true, err
		}
		return ok, true, nil
	}
	return false, false, errors.New("authz: unknown mode")
}

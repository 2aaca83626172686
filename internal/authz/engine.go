// Package authz decides whether a principal may perform an action on a
// resource. Decisions depend only on the principal's role, its identity and
// the resource owner; nothing here touches storage.
package authz

import (
	"errors"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/google/uuid"

	"anoa.com/yamdb/pkg/apperror"
)

var (
	ErrUnknownRole     = errors.New("unknown role")
	ErrUnknownAction   = errors.New("unknown action")
	ErrUnknownResource = errors.New("unknown resource")
)

type Action string

const (
	ActionRead   Action = "read"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

type Resource string

const (
	ResourceCategory Resource = "category"
	ResourceGenre    Resource = "genre"
	ResourceTitle    Resource = "title"
	ResourceReview   Resource = "review"
	ResourceComment  Resource = "comment"
	ResourceUser     Resource = "user"
	// ResourceSelf is the caller's own user record.
	ResourceSelf Resource = "self"
)

const (
	subjectAnonymous     = "anonymous"
	subjectAuthenticated = "authenticated"
	subjectOwner         = "owner"
	subjectSuperuser     = "superuser"
)

// Authorizer is what services depend on.
type Authorizer interface {
	Allowed(p Principal, res Resource, act Action, owner uuid.UUID) (bool, error)
	Require(p Principal, res Resource, act Action, owner uuid.UUID) error
}

// Engine evaluates the embedded RBAC policy with casbin.
type Engine struct {
	enforcer *casbin.SyncedEnforcer
}

// NewEngine loads the embedded model and policy.
func NewEngine() (*Engine, error) {
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, fmt.Errorf("failed to load casbin model: %w", err)
	}

	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin enforcer: %w", err)
	}

	if err := loadPolicy(enforcer, rbacPolicy); err != nil {
		return nil, err
	}

	return &Engine{enforcer: enforcer}, nil
}

// MustNewEngine panics if the embedded policy cannot be loaded.
func MustNewEngine() *Engine {
	e, err := NewEngine()
	if err != nil {
		panic(err)
	}
	return e
}

func loadPolicy(enforcer *casbin.SyncedEnforcer, policy string) error {
	for _, line := range strings.Split(policy, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Split(line, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}

		switch parts[0] {
		case "p":
			if len(parts) != 4 {
				return fmt.Errorf("malformed policy line %q", line)
			}
			if _, err := enforcer.AddPolicy(parts[1], parts[2], parts[3]); err != nil {
				return fmt.Errorf("failed to add policy %v: %w", parts[1:], err)
			}
		case "g":
			if len(parts) != 3 {
				return fmt.Errorf("malformed grouping line %q", line)
			}
			if _, err := enforcer.AddGroupingPolicy(parts[1], parts[2]); err != nil {
				return fmt.Errorf("failed to add grouping policy %v: %w", parts[1:], err)
			}
		default:
			return fmt.Errorf("unknown policy type in %q", line)
		}
	}
	return nil
}

// Allowed returns the decision. It only fails on malformed input.
func (e *Engine) Allowed(p Principal, res Resource, act Action, owner uuid.UUID) (bool, error) {
	if err := validate(res, act); err != nil {
		return false, err
	}

	subjects, err := subjectsFor(p, owner)
	if err != nil {
		return false, err
	}

	for _, sub := range subjects {
		ok, err := e.enforcer.Enforce(sub, string(res), string(act))
		if err != nil {
			return false, fmt.Errorf("enforcement failed: %w", err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// Require turns a denial into ErrUnauthorized for anonymous callers and
// ErrForbidden for everyone else.
func (e *Engine) Require(p Principal, res Resource, act Action, owner uuid.UUID) error {
	ok, err := e.Allowed(p, res, act, owner)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	if !p.Authenticated() {
		return fmt.Errorf("%s %s: %w", act, res, apperror.ErrUnauthorized)
	}
	return fmt.Errorf("%s %s: %w", act, res, apperror.ErrForbidden)
}

func subjectsFor(p Principal, owner uuid.UUID) ([]string, error) {
	if !p.Authenticated() {
		return []string{subjectAnonymous}, nil
	}

	if _, err := ParseRole(string(p.Role)); err != nil {
		return nil, err
	}

	subjects := make([]string, 0, 3)
	switch p.Role {
	case RoleModerator, RoleAdmin:
		subjects = append(subjects, string(p.Role))
	default:
		subjects = append(subjects, subjectAuthenticated)
	}
	if p.Superuser {
		subjects = append(subjects, subjectSuperuser)
	}
	if owner != uuid.Nil && owner == p.UserID {
		subjects = append(subjects, subjectOwner)
	}
	return subjects, nil
}

func validate(res Resource, act Action) error {
	switch act {
	case ActionRead, ActionCreate, ActionUpdate, ActionDelete:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, act)
	}

	switch res {
	case ResourceCategory, ResourceGenre, ResourceTitle, ResourceReview, ResourceComment, ResourceUser, ResourceSelf:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownResource, res)
	}
	return nil
}

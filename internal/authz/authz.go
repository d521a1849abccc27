package authz

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"github.com/casbin/casbin/v3"
	"github.com/casbin/casbin/v3/model"

	"github.com/HammerMeetNail/tokengate/internal/logging"
	"github.com/HammerMeetNail/tokengate/internal/models"
)

//go:embed model.conf
var modelText string

// GrantSource supplies the capability grants the enforcer evaluates.
type GrantSource interface {
	ListGrants(ctx context.Context) ([]models.PermissionGrant, error)
}

// Enforcer answers capability checks for users and their groups. Policies
// are rebuilt from the grant source on Reload.
type Enforcer struct {
	mu       sync.RWMutex
	enforcer *casbin.Enforcer
	grants   GrantSource
	exempt   map[string]bool
	logger   *logging.Logger
}

// NewEnforcer loads the grants once. exemptViewModels lists "app.model"
// entries (or "*") whose view capability everyone holds, anonymous included.
func NewEnforcer(ctx context.Context, grants GrantSource, exemptViewModels []string, logger *logging.Logger) (*Enforcer, error) {
	if logger == nil {
		logger = logging.Default
	}
	e := &Enforcer{
		grants: grants,
		exempt: make(map[string]bool, len(exemptViewModels)),
		logger: logger.Named("authz"),
	}
	for _, m := range exemptViewModels {
		e.exempt[strings.ToLower(m)] = true
	}
	if err := e.Reload(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

// Reload rebuilds the policy from the grant source and swaps it in.
func (e *Enforcer) Reload(ctx context.Context) error {
	grants, err := e.grants.ListGrants(ctx)
	if err != nil {
		return fmt.Errorf("loading grants: %w", err)
	}

	enforcer, err := e.build(grants)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.enforcer = enforcer
	e.mu.Unlock()

	e.logger.Info("Permission policy loaded", map[string]interface{}{"grants": len(grants)})
	return nil
}

func (e *Enforcer) build(grants []models.PermissionGrant) (*casbin.Enforcer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, fmt.Errorf("parsing policy model: %w", err)
	}
	enforcer, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("creating enforcer: %w", err)
	}

	seen := make(map[string]bool, len(grants))
	rules := make([][]string, 0, len(grants))
	for _, g := range grants {
		rule, ok := policyRule(g)
		if !ok {
			e.logger.Warn("Skipping incomplete grant", map[string]interface{}{
				"grant_id": g.ID.String(),
			})
			continue
		}
		key := strings.Join(rule, "\x00")
		if seen[key] {
			continue
		}
		seen[key] = true
		rules = append(rules, rule)
	}
	if len(rules) > 0 {
		if _, err := enforcer.AddPolicies(rules); err != nil {
			return nil, fmt.Errorf("adding policies: %w", err)
		}
	}
	return enforcer, nil
}

// policyRule maps a grant to a (subject, capability, object) rule.
func policyRule(g models.PermissionGrant) ([]string, bool) {
	obj := g.ObjectID
	if obj == "" {
		obj = models.AnyObject
	}
	if g.Subject == "" || g.Capability == "" {
		return nil, false
	}
	return []string{g.SubjectKey(), g.Capability, obj}, true
}

// HasPerms reports whether user holds every capability in perms. A nil user
// is anonymous. obj narrows the check to one object; nil means any object.
func (e *Enforcer) HasPerms(ctx context.Context, user *models.User, perms []string, obj *models.ObjectRef) (bool, error) {
	for _, perm := range perms {
		ok, err := e.hasPerm(user, perm, obj)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func (e *Enforcer) hasPerm(user *models.User, perm string, obj *models.ObjectRef) (bool, error) {
	if e.isExempt(perm) {
		return true, nil
	}
	if user == nil || !user.IsActive {
		return false, nil
	}
	if user.IsSuperuser {
		return true, nil
	}

	target := models.AnyObject
	if obj != nil {
		target = obj.ID
	}

	subjects := make([]string, 0, len(user.Groups)+1)
	subjects = append(subjects, models.SubjectKeyFor(models.SubjectUser, user.Username))
	for _, g := range user.Groups {
		subjects = append(subjects, models.SubjectKeyFor(models.SubjectGroup, g))
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, sub := range subjects {
		ok, err := e.enforcer.Enforce(sub, perm, target)
		if err != nil {
			return false, fmt.Errorf("enforcing %s for %s: %w", perm, sub, err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// isExempt reports whether perm is a view capability on an exempt model.
func (e *Enforcer) isExempt(perm string) bool {
	if len(e.exempt) == 0 {
		return false
	}
	appLabel, rest, ok := strings.Cut(perm, ".")
	if !ok {
		return false
	}
	action, modelName, ok := strings.Cut(rest, "_")
	if !ok || action != "view" {
		return false
	}
	return e.exempt["*"] || e.exempt[appLabel+"."+modelName]
}

// Package policy maps roles to the capabilities they are granted and decides
// which roles are activated on signup. Grants are whitelists: a role that is
// not listed for a capability does not have it.
package policy

import (
	"fmt"
	"os"
	"sort"

	"github.com/Mike-mible/cjic/models"
	"gopkg.in/yaml.v3"
)

// Table is the configurable part of the policy.
type Table struct {
	Grants       map[models.Role][]models.Capability `yaml:"grants"`
	AutoActivate []models.Role                       `yaml:"autoActivate"`
	SelfService  []models.Role                       `yaml:"selfService"`
}

// Default returns the built-in grant table.
func Default() Table {
	return Table{
		Grants: map[models.Role][]models.Capability{
			models.RoleForeman:             {models.CapSubmitSiteLogs},
			models.RoleSafetyOfficer:       {models.CapSubmitSafetyReports},
			models.RoleSiteSupervisor:      {models.CapReviewSiteLogs, models.CapSubmitSafetyReports},
			models.RoleSiteEngineer:        {models.CapReviewSiteLogs},
			models.RoleArchitect:           {models.CapReviewSiteLogs},
			models.RoleProjectManager:      {models.CapViewPortfolio, models.CapReviewSiteLogs},
			models.RoleConstructionManager: {models.CapViewPortfolio},
			models.RoleExecutive:           {models.CapViewExecutiveSummary, models.CapViewPortfolio},
		},
		AutoActivate: []models.Role{
			models.RoleSuperAdmin,
			models.RoleAdmin,
			models.RoleAdminManager,
			models.RoleSiteEngineer,
			models.RoleArchitect,
			models.RoleProjectManager,
			models.RoleConstructionManager,
			models.RoleExecutive,
		},
		SelfService: []models.Role{
			models.RoleForeman,
			models.RoleSafetyOfficer,
			models.RoleSiteSupervisor,
			models.RoleSiteEngineer,
			models.RoleArchitect,
			models.RoleProjectManager,
			models.RoleConstructionManager,
			models.RoleExecutive,
		},
	}
}

// LoadFile reads a YAML grant table. An empty path yields the default table.
func LoadFile(path string) (*Policy, error) {
	if path == "" {
		return New(Default())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy: %w", err)
	}
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse policy: %w", err)
	}
	return New(t)
}

type Policy struct {
	grants       map[models.Role]map[models.Capability]bool
	autoActivate map[models.Role]bool
	selfService  map[models.Role]bool
}

// New validates the table: names must be known, and every non-admin role
// needs at least one capability.
func New(t Table) (*Policy, error) {
	p := &Policy{
		grants:       make(map[models.Role]map[models.Capability]bool),
		autoActivate: make(map[models.Role]bool),
		selfService:  make(map[models.Role]bool),
	}
	for role, caps := range t.Grants {
		if !role.Valid() {
			return nil, fmt.Errorf("policy: unknown role %q", role)
		}
		set := make(map[models.Capability]bool, len(caps))
		for _, c := range caps {
			if !c.Valid() {
				return nil, fmt.Errorf("policy: unknown capability %q for %s", c, role)
			}
			set[c] = true
		}
		p.grants[role] = set
	}
	for _, role := range models.Roles {
		if role.IsAdmin() {
			continue
		}
		if len(p.grants[role]) == 0 {
			return nil, fmt.Errorf("policy: role %s has no capabilities", role)
		}
	}
	for _, role := range t.AutoActivate {
		if !role.Valid() {
			return nil, fmt.Errorf("policy: unknown auto-activate role %q", role)
		}
		p.autoActivate[role] = true
	}
	for _, role := range t.SelfService {
		if !role.Valid() {
			return nil, fmt.Errorf("policy: unknown self-service role %q", role)
		}
		if role.IsAdmin() {
			return nil, fmt.Errorf("policy: admin role %s cannot self-register", role)
		}
		p.selfService[role] = true
	}
	return p, nil
}

// Capabilities returns the sorted capability set of a role. Unknown roles
// get nothing.
func (p *Policy) Capabilities(role models.Role) []models.Capability {
	if !role.Valid() {
		return []models.Capability{}
	}
	if role.IsAdmin() {
		all := append([]models.Capability(nil), models.Capabilities...)
		sort.Slice(all, func(i, j int) bool { return all[i] < all[j] })
		return all
	}
	caps := make([]models.Capability, 0, len(p.grants[role]))
	for c := range p.grants[role] {
		caps = append(caps, c)
	}
	sort.Slice(caps, func(i, j int) bool { return caps[i] < caps[j] })
	return caps
}

func (p *Policy) Has(role models.Role, c models.Capability) bool {
	if !role.Valid() || !c.Valid() {
		return false
	}
	if role.IsAdmin() {
		return true
	}
	return p.grants[role][c]
}

// HasAny reports whether the role holds at least one of caps.
func (p *Policy) HasAny(role models.Role, caps ...models.Capability) bool {
	for _, c := range caps {
		if p.Has(role, c) {
			return true
		}
	}
	return false
}

// InitialStatus is the status a newly registered profile starts in.
func (p *Policy) InitialStatus(role models.Role) models.UserStatus {
	if p.autoActivate[role] {
		return models.StatusActive
	}
	return models.StatusPending
}

func (p *Policy) AutoActivates(role models.Role) bool {
	return p.autoActivate[role]
}

func (p *Policy) CanSelfRegister(role models.Role) bool {
	return p.selfService[role]
}

var viewPriority = []struct {
	cap  models.Capability
	view models.View
}{
	{models.CapManageUsers, models.ViewAdmin},
	{models.CapViewExecutiveSummary, models.ViewExecutive},
	{models.CapViewPortfolio, models.ViewPortfolio},
	{models.CapReviewSiteLogs, models.ViewReview},
	{models.CapSubmitSiteLogs, models.ViewSiteLog},
	{models.CapSubmitSafetyReports, models.ViewSafety},
}

// View picks the dashboard for a role from its strongest capability.
func (p *Policy) View(role models.Role) models.View {
	for _, v := range viewPriority {
		if p.Has(role, v.cap) {
			return v.view
		}
	}
	return models.ViewNone
}

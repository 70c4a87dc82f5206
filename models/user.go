package models

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleSuperAdmin          Role = "SUPER_ADMIN"
	RoleAdmin               Role = "ADMIN"
	RoleAdminManager        Role = "ADMIN_MANAGER"
	RoleForeman             Role = "FOREMAN"
	RoleSafetyOfficer       Role = "SAFETY_OFFICER"
	RoleSiteSupervisor      Role = "SITE_SUPERVISOR"
	RoleSiteEngineer        Role = "SITE_ENGINEER"
	RoleArchitect           Role = "ARCHITECT"
	RoleProjectManager      Role = "PROJECT_MANAGER"
	RoleConstructionManager Role = "CONSTRUCTION_MANAGER"
	RoleExecutive           Role = "EXECUTIVE"
)

// Roles lists every known role in a stable order.
var Roles = []Role{
	RoleSuperAdmin,
	RoleAdmin,
	RoleAdminManager,
	RoleForeman,
	RoleSafetyOfficer,
	RoleSiteSupervisor,
	RoleSiteEngineer,
	RoleArchitect,
	RoleProjectManager,
	RoleConstructionManager,
	RoleExecutive,
}

func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the role belongs to the administrator tier.
func (r Role) IsAdmin() bool {
	return r == RoleSuperAdmin || r == RoleAdmin || r == RoleAdminManager
}

type UserStatus string

const (
	StatusActive      UserStatus = "ACTIVE"
	StatusPending     UserStatus = "PENDING"
	StatusRejected    UserStatus = "REJECTED"
	StatusSuspended   UserStatus = "SUSPENDED"
	StatusDeactivated UserStatus = "DEACTIVATED"
)

func (s UserStatus) Valid() bool {
	switch s {
	case StatusActive, StatusPending, StatusRejected, StatusSuspended, StatusDeactivated:
		return true
	}
	return false
}

var userTransitions = map[UserStatus][]UserStatus{
	StatusPending:   {StatusActive, StatusRejected},
	StatusActive:    {StatusSuspended},
	StatusSuspended: {StatusActive},
}

// UserTransitionAllowed reports whether an administrator may move a profile
// from one status to another.
func UserTransitionAllowed(from, to UserStatus) bool {
	for _, next := range userTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type User struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	Phone       *string    `json:"phone,omitempty"`
	Role        Role       `json:"role"`
	SiteID      *string    `json:"siteId,omitempty"`
	Status      UserStatus `json:"status"`
	LastActive  *time.Time `json:"lastActive,omitempty"`
	Avatar      *string    `json:"avatar,omitempty"`
	Bio         *string    `json:"bio,omitempty"`
	OnboardedAt *time.Time `json:"onboardedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Credential is the identity-store record behind a profile. It shares the
// profile id and is never serialized to clients.
type Credential struct {
	ID           string    `json:"-"`
	Email        string    `json:"-"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"-"`
}

type UserLogin struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type UserSignup struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
	Role     Role   `json:"role"`
	SiteID   string `json:"siteId"`
}

type Onboarding struct {
	Phone    string `json:"phone"`
	Avatar   string `json:"avatar"`
	SiteID   string `json:"siteId"`
	Bio      string `json:"bio"`
	Password string `json:"password,omitempty"`
}

type StatusUpdate struct {
	Status UserStatus `json:"status"`
}

// NormalizeEmail lower-cases and trims an address so uniqueness holds
// regardless of how it was typed.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func NewUser(id, name, email, phone, siteID string, role Role, status UserStatus) (*User, error) {
	if strings.TrimSpace(name) == "" || strings.TrimSpace(email) == "" {
		return nil, errors.New("invalid user details: name and email are required")
	}
	if !role.Valid() {
		return nil, errors.New("invalid role")
	}
	if !status.Valid() {
		return nil, errors.New("invalid status")
	}
	if id == "" {
		id = uuid.New().String()
	}

	now := time.Now().UTC()
	user := &User{
		ID:        id,
		Name:      strings.TrimSpace(name),
		Email:     NormalizeEmail(email),
		Phone:     optional(phone),
		Role:      role,
		SiteID:    optional(siteID),
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}

	return user, nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

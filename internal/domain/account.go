package domain

import (
	"strings"
	"time"
)

// Role identifies what an account may do inside its tenant.
type Role string

const (
	RoleCitizen        Role = "citizen"
	RoleFieldWorker    Role = "field_worker"
	RoleManager        Role = "manager"
	RoleAdmin          Role = "admin"
	RoleWardCouncillor Role = "ward_councillor"
	RoleSAPSLiaison    Role = "saps_liaison"
	RoleAnonymous      Role = "anonymous"
)

// StaffRoles are the roles a tenant admin may provision.
var StaffRoles = []Role{RoleFieldWorker, RoleManager, RoleAdmin, RoleWardCouncillor, RoleSAPSLiaison}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleCitizen, RoleFieldWorker, RoleManager, RoleAdmin, RoleWardCouncillor, RoleSAPSLiaison, RoleAnonymous:
		return true
	}
	return false
}

// IsStaff reports whether r is a municipal or liaison role.
func (r Role) IsStaff() bool {
	for _, candidate := range StaffRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// WardSeparator joins a councillor's wards into the row-level-security session
// setting, so it can never appear inside a ward name.
const WardSeparator = ","

// ValidWard reports whether w can be used as a ward identifier.
func ValidWard(w string) bool {
	return w != "" && strings.TrimSpace(w) == w && !strings.Contains(w, WardSeparator)
}

// Account is a citizen or staff login.
type Account struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	TenantID     string
	Wards        []string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

package firewall

import (
	"github.com/civic-kit/report-service/internal/domain"
)

// Decision is the outcome of evaluating the access policy for one record.
type Decision int

const (
	// Deny hides the record entirely.
	Deny Decision = iota
	// Limited exposes only the restricted field allow-list.
	Limited
	// Full exposes every field.
	Full
)

func (d Decision) String() string {
	switch d {
	case Full:
		return "FULL"
	case Limited:
		return "LIMITED"
	default:
		return "DENY"
	}
}

// Actor is the explicit caller context passed to every policy call.
type Actor struct {
	ID       string
	Role     domain.Role
	TenantID string
	Wards    []string
}

// ScopedWards returns the actor's usable wards. Malformed entries are dropped so
// the Go matcher and the SQL predicate see the same list.
func (a Actor) ScopedWards() []string {
	var wards []string
	for _, ward := range a.Wards {
		if domain.ValidWard(ward) {
			wards = append(wards, ward)
		}
	}
	return wards
}

// AnonymousActor is the caller for unauthenticated public requests.
func AnonymousActor() Actor {
	return Actor{Role: domain.RoleAnonymous}
}

// Subject holds the record attributes the policy depends on.
type Subject struct {
	OwnerID     string
	TenantID    string
	Ward        *string
	IsSensitive bool
}

// SubjectOf extracts the policy inputs from a report.
func SubjectOf(r *domain.Report) Subject {
	return Subject{
		OwnerID:     r.OwnerID,
		TenantID:    r.TenantID,
		Ward:        r.Ward,
		IsSensitive: r.IsSensitive,
	}
}

// Decide evaluates the decision table in order; the first matching rule wins.
func Decide(actor Actor, subject Subject) Decision {
	for _, r := range decisionTable {
		if r.match(actor, subject) {
			return r.outcome
		}
	}
	return Deny
}

// DecideReport is Decide applied to a loaded report.
func DecideReport(actor Actor, r *domain.Report) Decision {
	if r == nil {
		return Deny
	}
	return Decide(actor, SubjectOf(r))
}

func isOwner(a Actor, s Subject) bool {
	return a.ID != "" && s.OwnerID != "" && a.ID == s.OwnerID
}

func sameTenant(a Actor, s Subject) bool {
	return a.TenantID != "" && a.TenantID == s.TenantID
}

func hasRole(a Actor, roles ...domain.Role) bool {
	for _, role := range roles {
		if a.Role == role {
			return true
		}
	}
	return false
}

func wardMatches(a Actor, s Subject) bool {
	if s.Ward == nil || *s.Ward == "" {
		return false
	}
	for _, ward := range a.ScopedWards() {
		if ward == *s.Ward {
			return true
		}
	}
	return false
}

// Scope is the reach of an actor over tenant listings, derived from the decision
// table by probing it with unowned subjects of each classification.
type Scope struct {
	Ordinary  bool
	Sensitive bool
	// Wards restricts ordinary rows for ward-scoped roles. Nil means tenant-wide.
	Wards []string
}

// ScopeOf probes Decide so listing queries never widen what the table allows.
func ScopeOf(a Actor) Scope {
	var scope Scope
	probe := Subject{TenantID: a.TenantID}
	if a.Role == domain.RoleWardCouncillor {
		wards := a.ScopedWards()
		if len(wards) == 0 {
			return scope
		}
		probe.Ward = &wards[0]
		scope.Wards = wards
	}
	scope.Ordinary = Decide(a, probe) != Deny
	probe.IsSensitive = true
	scope.Sensitive = Decide(a, probe) != Deny
	if !scope.Ordinary {
		scope.Wards = nil
	}
	return scope
}

// Empty reports whether the actor can list nothing at all.
func (s Scope) Empty() bool {
	return !s.Ordinary && !s.Sensitive
}

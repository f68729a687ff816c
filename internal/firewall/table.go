package firewall

import (
	"fmt"
	"strings"

	"github.com/civic-kit/report-service/internal/domain"
)

// Session settings the repository sets before every actor-scoped query. The RLS
// policy rendered from the decision table reads them.
const (
	SettingActorID    = "app.actor_id"
	SettingActorRole  = "app.actor_role"
	SettingTenantID   = "app.tenant_id"
	SettingActorWards = "app.actor_wards"
)

// AggregateRole is the session role used by statistics reads. It only ever
// matches non-sensitive rows.
const AggregateRole = "aggregate"

type rule struct {
	name        string
	description string
	outcome     Decision
	match       func(Actor, Subject) bool
	sql         string
}

var (
	sensitiveReaders = []domain.Role{domain.RoleAdmin, domain.RoleSAPSLiaison}
	tenantReaders    = []domain.Role{domain.RoleAdmin, domain.RoleManager, domain.RoleFieldWorker}
)

// decisionTable is the single source of truth for record-level access. Each rule
// carries the Go matcher and the equivalent SQL predicate over the reports table.
var decisionTable = []rule{
	{
		name:        "unknown_role",
		description: "actors with an unrecognised role are denied",
		outcome:     Deny,
		match:       func(a Actor, _ Subject) bool { return !a.Role.Valid() },
		sql:         fmt.Sprintf("coalesce(%s, '') NOT IN (%s)", setting(SettingActorRole), sqlRoles(allRoles()...)),
	},
	{
		name:        "owner_sensitive",
		description: "the submitting citizen sees their own sensitive report in restricted form",
		outcome:     Limited,
		match:       func(a Actor, s Subject) bool { return isOwner(a, s) && s.IsSensitive },
		sql:         fmt.Sprintf("owner_id::text = %s AND is_sensitive", setting(SettingActorID)),
	},
	{
		name:        "owner",
		description: "the submitting citizen sees their own ordinary report in full",
		outcome:     Full,
		match:       isOwner,
		sql:         fmt.Sprintf("owner_id::text = %s", setting(SettingActorID)),
	},
	{
		name:        "sensitive_exempt_role",
		description: "admins and SAPS liaisons of the same tenant see sensitive reports in full",
		outcome:     Full,
		match: func(a Actor, s Subject) bool {
			return s.IsSensitive && hasRole(a, sensitiveReaders...) && sameTenant(a, s)
		},
		sql: fmt.Sprintf("is_sensitive AND %s IN (%s) AND tenant_id = %s",
			setting(SettingActorRole), sqlRoles(sensitiveReaders...), setting(SettingTenantID)),
	},
	{
		name:        "sensitive_default_deny",
		description: "every other actor is denied sensitive reports",
		outcome:     Deny,
		match:       func(_ Actor, s Subject) bool { return s.IsSensitive },
		sql:         "is_sensitive",
	},
	{
		name:        "anonymous_deny",
		description: "public callers never read individual reports",
		outcome:     Deny,
		match:       func(a Actor, _ Subject) bool { return a.Role == domain.RoleAnonymous },
		sql:         fmt.Sprintf("%s = %s", setting(SettingActorRole), sqlRoles(domain.RoleAnonymous)),
	},
	{
		name:        "tenant_staff",
		description: "admins, managers and field workers read ordinary reports of their tenant",
		outcome:     Full,
		match: func(a Actor, s Subject) bool {
			return sameTenant(a, s) && hasRole(a, tenantReaders...)
		},
		sql: fmt.Sprintf("tenant_id = %s AND %s IN (%s)",
			setting(SettingTenantID), setting(SettingActorRole), sqlRoles(tenantReaders...)),
	},
	{
		name:        "ward_councillor",
		description: "ward councillors read ordinary reports of their tenant inside their wards",
		outcome:     Full,
		match: func(a Actor, s Subject) bool {
			return sameTenant(a, s) && a.Role == domain.RoleWardCouncillor && wardMatches(a, s)
		},
		sql: fmt.Sprintf("tenant_id = %s AND %s = %s AND ward IS NOT NULL AND ward <> '' AND ward = ANY(string_to_array(%s, %s))",
			setting(SettingTenantID), setting(SettingActorRole), sqlRoles(domain.RoleWardCouncillor), setting(SettingActorWards), quote(domain.WardSeparator)),
	},
	{
		name:        "default_deny",
		description: "anything not matched above is denied",
		outcome:     Deny,
		match:       func(Actor, Subject) bool { return true },
		sql:         "true",
	},
}

// RuleSpec is the exported, serialisable form of one decision table rule.
type RuleSpec struct {
	Order       int    `yaml:"order" json:"order"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	Outcome     string `yaml:"outcome" json:"outcome"`
	SQL         string `yaml:"sql" json:"sql"`
}

// Rules returns the decision table in evaluation order.
func Rules() []RuleSpec {
	out := make([]RuleSpec, 0, len(decisionTable))
	for i, r := range decisionTable {
		out = append(out, RuleSpec{
			Order:       i + 1,
			Name:        r.name,
			Description: r.description,
			Outcome:     r.outcome.String(),
			SQL:         r.sql,
		})
	}
	return out
}

// ReadPredicateSQL renders the decision table as a first-match CASE expression that
// is true exactly when Decide returns FULL or LIMITED.
func ReadPredicateSQL() string {
	var b strings.Builder
	b.WriteString("CASE\n")
	for _, r := range decisionTable {
		fmt.Fprintf(&b, "    WHEN %s THEN %t -- %s\n", r.sql, r.outcome != Deny, r.name)
	}
	b.WriteString("    ELSE false\nEND")
	return b.String()
}

// AggregatePredicateSQL admits only non-sensitive rows to the aggregate session role.
func AggregatePredicateSQL() string {
	return fmt.Sprintf("%s = '%s' AND is_sensitive = false", setting(SettingActorRole), AggregateRole)
}

// RowLevelSecuritySQL renders the Postgres row-level-security DDL for the reports
// table from the decision table.
func RowLevelSecuritySQL(classifier Classifier) string {
	var b strings.Builder
	b.WriteString("-- Generated from the firewall decision table. Do not edit by hand.\n")
	b.WriteString("ALTER TABLE reports ENABLE ROW LEVEL SECURITY;\n")
	b.WriteString("ALTER TABLE reports FORCE ROW LEVEL SECURITY;\n\n")
	b.WriteString("ALTER TABLE reports DROP CONSTRAINT IF EXISTS reports_sensitivity_matches_category;\n")
	fmt.Fprintf(&b, "ALTER TABLE reports ADD CONSTRAINT reports_sensitivity_matches_category CHECK (is_sensitive = (category = %s));\n\n",
		quote(string(classifier.Marker())))
	b.WriteString("DROP POLICY IF EXISTS reports_read ON reports;\n")
	fmt.Fprintf(&b, "CREATE POLICY reports_read ON reports FOR SELECT USING (\n%s\n);\n\n", ReadPredicateSQL())
	b.WriteString("DROP POLICY IF EXISTS reports_aggregate_read ON reports;\n")
	fmt.Fprintf(&b, "CREATE POLICY reports_aggregate_read ON reports FOR SELECT USING (%s);\n\n", AggregatePredicateSQL())
	b.WriteString("DROP POLICY IF EXISTS reports_write ON reports;\n")
	fmt.Fprintf(&b, "CREATE POLICY reports_write ON reports FOR UPDATE USING (\n%s\n);\n\n", ReadPredicateSQL())
	b.WriteString("DROP POLICY IF EXISTS reports_insert ON reports;\n")
	fmt.Fprintf(&b, "CREATE POLICY reports_insert ON reports FOR INSERT WITH CHECK (owner_id::text = %s AND %s = %s);\n",
		setting(SettingActorID), setting(SettingActorRole), sqlRoles(domain.RoleCitizen))
	return b.String()
}

func setting(name string) string {
	return fmt.Sprintf("current_setting('%s', true)", name)
}

func sqlRoles(roles ...domain.Role) string {
	quoted := make([]string, len(roles))
	for i, role := range roles {
		quoted[i] = quote(string(role))
	}
	return strings.Join(quoted, ", ")
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func allRoles() []domain.Role {
	return []domain.Role{
		domain.RoleCitizen,
		domain.RoleFieldWorker,
		domain.RoleManager,
		domain.RoleAdmin,
		domain.RoleWardCouncillor,
		domain.RoleSAPSLiaison,
		domain.RoleAnonymous,
	}
}

package firewall

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/mmcloughlin/geohash"

	"github.com/civic-kit/report-service/internal/domain"
)

// MinKAnonymity is the smallest number of reports a geospatial bucket may represent.
const MinKAnonymity = 3

// ErrAggregateIntegrity means the fact source could not prove every row was
// classified. Aggregates are withheld rather than risk counting sensitive reports.
var ErrAggregateIntegrity = errors.New("aggregate source cannot separate sensitive reports")

// Sensitivity is the classification carried by an aggregate fact. The zero value
// is unknown, which fails closed.
type Sensitivity uint8

const (
	SensitivityUnknown Sensitivity = iota
	SensitivityOrdinary
	SensitivityProtected
)

// SensitivityOf maps a nullable classification column onto Sensitivity.
func SensitivityOf(flag *bool) Sensitivity {
	switch {
	case flag == nil:
		return SensitivityUnknown
	case *flag:
		return SensitivityProtected
	default:
		return SensitivityOrdinary
	}
}

// Fact is the aggregate-relevant slice of one report.
type Fact struct {
	TenantID    string
	Category    domain.Category
	Status      domain.ReportStatus
	Severity    domain.Severity
	Sensitivity Sensitivity
	Location    *domain.GeoPoint
	CreatedAt   time.Time
	ResolvedAt  *time.Time
}

// FactOf converts a loaded report.
func FactOf(r *domain.Report) Fact {
	sensitivity := SensitivityOrdinary
	if r.IsSensitive {
		sensitivity = SensitivityProtected
	}
	return Fact{
		TenantID:    r.TenantID,
		Category:    r.Category,
		Status:      r.Status,
		Severity:    r.Severity,
		Sensitivity: sensitivity,
		Location:    r.Location,
		CreatedAt:   r.CreatedAt,
		ResolvedAt:  r.ResolvedAt,
	}
}

// Summary is a public per-tenant breakdown.
type Summary struct {
	TenantID       string
	TotalTickets   int
	Resolved       int
	ResolutionRate float64
	ByStatus       map[domain.ReportStatus]int
	ByCategory     map[domain.Category]int
	BySeverity     map[domain.Severity]int
}

// HeatCell is one emitted heatmap bucket.
type HeatCell struct {
	Geohash string
	Lat     float64
	Lng     float64
	Count   int
}

// TenantTotals is one row of a cross-tenant comparison.
type TenantTotals struct {
	TenantID       string
	TotalTickets   int
	Resolved       int
	ResolutionRate float64
}

// SensitiveTotal is a system-wide count of protected reports. Counts below the
// k-anonymity threshold are suppressed.
type SensitiveTotal struct {
	Count      int
	Suppressed bool
}

// Guard filters facts before any aggregate leaves the trust boundary.
type Guard struct {
	classifier Classifier
	k          int
	precision  uint
}

// NewGuard builds a guard. k below MinKAnonymity is rejected.
func NewGuard(classifier Classifier, k int, precision uint) (*Guard, error) {
	if k < MinKAnonymity {
		return nil, fmt.Errorf("k-anonymity threshold %d is below minimum %d", k, MinKAnonymity)
	}
	if precision < 1 || precision > 12 {
		return nil, fmt.Errorf("geohash precision %d out of range", precision)
	}
	return &Guard{classifier: classifier, k: k, precision: precision}, nil
}

// K returns the configured bucket threshold.
func (g *Guard) K() int {
	return g.k
}

// Admit drops every protected fact. Any fact without a trustworthy classification
// fails the whole batch.
func (g *Guard) Admit(facts []Fact) ([]Fact, error) {
	admitted := make([]Fact, 0, len(facts))
	for i := range facts {
		f := facts[i]
		switch f.Sensitivity {
		case SensitivityProtected:
			if !g.classifier.Classify(f.Category) {
				return nil, fmt.Errorf("%w: protected fact with category %q", ErrAggregateIntegrity, f.Category)
			}
			continue
		case SensitivityOrdinary:
			// an ordinary row under the protected category means classification drifted
			if g.classifier.Classify(f.Category) {
				return nil, fmt.Errorf("%w: unprotected fact under protected category", ErrAggregateIntegrity)
			}
			admitted = append(admitted, f)
		default:
			return nil, fmt.Errorf("%w: unclassified fact", ErrAggregateIntegrity)
		}
	}
	return admitted, nil
}

// Summarize builds a tenant summary from admitted facts only.
func (g *Guard) Summarize(tenantID string, facts []Fact) (Summary, error) {
	admitted, err := g.Admit(facts)
	if err != nil {
		return Summary{}, err
	}
	summary := Summary{
		TenantID:   tenantID,
		ByStatus:   make(map[domain.ReportStatus]int, len(domain.AllStatuses)),
		ByCategory: make(map[domain.Category]int),
		BySeverity: make(map[domain.Severity]int),
	}
	for _, status := range domain.AllStatuses {
		summary.ByStatus[status] = 0
	}
	for _, category := range g.classifier.PublicCategories() {
		summary.ByCategory[category] = 0
	}
	for _, f := range admitted {
		if f.TenantID != tenantID {
			continue
		}
		summary.TotalTickets++
		summary.ByStatus[f.Status]++
		summary.ByCategory[f.Category]++
		if f.Severity != "" {
			summary.BySeverity[f.Severity]++
		}
		if isResolved(f.Status) {
			summary.Resolved++
		}
	}
	// the protected label is never a key, not even with a zero count
	delete(summary.ByCategory, g.classifier.Marker())
	summary.ResolutionRate = rate(summary.Resolved, summary.TotalTickets)
	return summary, nil
}

// Heatmap buckets admitted, located facts by geohash. Buckets smaller than k are
// merged into the largest qualifying neighbour, or dropped when none qualifies.
// Every emitted cell therefore represents at least k reports.
func (g *Guard) Heatmap(facts []Fact) ([]HeatCell, error) {
	admitted, err := g.Admit(facts)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, f := range admitted {
		if f.Location == nil || !f.Location.Valid() {
			continue
		}
		counts[geohash.EncodeWithPrecision(f.Location.Lat, f.Location.Lng, g.precision)]++
	}

	merged := make(map[string]int)
	var small []string
	for hash, count := range counts {
		if count >= g.k {
			merged[hash] = count
		} else {
			small = append(small, hash)
		}
	}
	sort.Strings(small)

	for _, hash := range small {
		target := ""
		best := 0
		for _, neighbour := range geohash.Neighbors(hash) {
			count := counts[neighbour]
			if count < g.k {
				continue
			}
			if count > best || (count == best && neighbour < target) {
				target, best = neighbour, count
			}
		}
		if target != "" {
			merged[target] += counts[hash]
		}
	}

	cells := make([]HeatCell, 0, len(merged))
	for hash, count := range merged {
		lat, lng := geohash.DecodeCenter(hash)
		cells = append(cells, HeatCell{Geohash: hash, Lat: lat, Lng: lng, Count: count})
	}
	sort.Slice(cells, func(i, j int) bool { return cells[i].Geohash < cells[j].Geohash })
	return cells, nil
}

// Compare builds cross-tenant totals from admitted facts, ordered by tenant.
func (g *Guard) Compare(facts []Fact) ([]TenantTotals, error) {
	admitted, err := g.Admit(facts)
	if err != nil {
		return nil, err
	}
	byTenant := make(map[string]*TenantTotals)
	for _, f := range admitted {
		totals, ok := byTenant[f.TenantID]
		if !ok {
			totals = &TenantTotals{TenantID: f.TenantID}
			byTenant[f.TenantID] = totals
		}
		totals.TotalTickets++
		if isResolved(f.Status) {
			totals.Resolved++
		}
	}
	out := make([]TenantTotals, 0, len(byTenant))
	for _, totals := range byTenant {
		totals.ResolutionRate = rate(totals.Resolved, totals.TotalTickets)
		out = append(out, *totals)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TenantID < out[j].TenantID })
	return out, nil
}

// ClassificationCounts is a system-wide tally of reports by classification.
type ClassificationCounts struct {
	Ordinary     int
	Protected    int
	Unclassified int
}

// SystemSensitiveTotal counts protected facts across all tenants. It is only for
// product-approved system-wide surfaces; there is no per-tenant variant.
func (g *Guard) SystemSensitiveTotal(facts []Fact) (SensitiveTotal, error) {
	var counts ClassificationCounts
	for _, f := range facts {
		switch f.Sensitivity {
		case SensitivityProtected:
			counts.Protected++
		case SensitivityOrdinary:
			counts.Ordinary++
		default:
			counts.Unclassified++
		}
	}
	return g.SensitiveTotalOf(counts)
}

// SensitiveTotalOf applies the suppression threshold to pre-computed counts.
func (g *Guard) SensitiveTotalOf(counts ClassificationCounts) (SensitiveTotal, error) {
	if counts.Unclassified > 0 {
		return SensitiveTotal{}, fmt.Errorf("%w: %d unclassified reports", ErrAggregateIntegrity, counts.Unclassified)
	}
	if counts.Protected < g.k {
		return SensitiveTotal{Suppressed: true}, nil
	}
	return SensitiveTotal{Count: counts.Protected}, nil
}

func isResolved(status domain.ReportStatus) bool {
	return status == domain.StatusResolved || status == domain.StatusClosed
}

func rate(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(part)/float64(total)*10000) / 100
}

package dto

// SummaryResponse is a public tenant breakdown.
type SummaryResponse struct {
	TenantID       string         `json:"tenant_id"`
	TotalTickets   int            `json:"total_tickets"`
	Resolved       int            `json:"resolved"`
	ResolutionRate float64        `json:"resolution_rate"`
	ByStatus       map[string]int `json:"by_status"`
	ByCategory     map[string]int `json:"by_category"`
	BySeverity     map[string]int `json:"by_severity"`
}

// HeatCellResponse is one heatmap bucket.
type HeatCellResponse struct {
	Geohash string  `json:"geohash"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Count   int     `json:"count"`
}

// TenantTotalsResponse is one comparison row.
type TenantTotalsResponse struct {
	TenantID       string  `json:"tenant_id"`
	TotalTickets   int     `json:"total_tickets"`
	Resolved       int     `json:"resolved"`
	ResolutionRate float64 `json:"resolution_rate"`
}

// SensitiveTotalResponse omits the count when it is suppressed.
type SensitiveTotalResponse struct {
	Count      *int `json:"count,omitempty"`
	Suppressed bool `json:"suppressed"`
}

package domain

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TrackingPrefix starts every tracking number.
const TrackingPrefix = "TKT-"

var trackingPattern = regexp.MustCompile(`^TKT-\d{8}-[A-F0-9]{6}$`)

// NewTrackingNumber builds a TKT-YYYYMMDD-XXXXXX tracking number for the given
// submission time. The suffix is random and carries no report attributes.
func NewTrackingNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return TrackingPrefix + now.UTC().Format("20060102") + "-" + suffix
}

// ValidTrackingNumber reports whether s matches the tracking number format and
// carries a real calendar date.
func ValidTrackingNumber(s string) bool {
	if !trackingPattern.MatchString(s) {
		return false
	}
	_, err := time.Parse("20060102", s[len(TrackingPrefix):len(TrackingPrefix)+8])
	return err == nil
}

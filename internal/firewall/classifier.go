package firewall

import (
	"fmt"

	"github.com/civic-kit/report-service/internal/domain"
)

// DefaultSensitiveCategory is the reserved category protected by the firewall.
const DefaultSensitiveCategory = domain.CategoryGBVAbuse

// Classifier decides, once at creation, whether a report is sensitive.
type Classifier struct {
	marker domain.Category
}

// NewClassifier builds a classifier for the given marker. An empty marker selects
// the default; a marker outside the category list is rejected.
func NewClassifier(marker string) (Classifier, error) {
	if marker == "" {
		return Classifier{marker: DefaultSensitiveCategory}, nil
	}
	category := domain.Category(marker)
	if !category.Valid() {
		return Classifier{}, fmt.Errorf("sensitive category %q is not a known category", marker)
	}
	return Classifier{marker: category}, nil
}

// Classify reports whether category equals the sensitive marker. The match is exact
// and case-sensitive. Input validation happens before this is called.
func (c Classifier) Classify(category domain.Category) bool {
	return category == c.Marker()
}

// Marker returns the protected category.
func (c Classifier) Marker() domain.Category {
	if c.marker == "" {
		return DefaultSensitiveCategory
	}
	return c.marker
}

// PublicCategories returns every category that may appear as a public breakdown key.
func (c Classifier) PublicCategories() []domain.Category {
	out := make([]domain.Category, 0, len(domain.AllCategories))
	for _, category := range domain.AllCategories {
		if c.Classify(category) {
			continue
		}
		out = append(out, category)
	}
	return out
}

package enums

import "fmt"

// BusinessCategory is the fixed set offered as buttons during
// onboarding.
type BusinessCategory string

const (
	BusinessCategoryElectronics BusinessCategory = "electronics"
	BusinessCategoryFood        BusinessCategory = "food"
	BusinessCategoryTechnology  BusinessCategory = "technology"
)

var validBusinessCategories = []BusinessCategory{
	BusinessCategoryElectronics,
	BusinessCategoryFood,
	BusinessCategoryTechnology,
}

// AllBusinessCategories returns the selectable categories in menu order.
func AllBusinessCategories() []BusinessCategory {
	out := make([]BusinessCategory, len(validBusinessCategories))
	copy(out, validBusinessCategories)
	return out
}

// String implements fmt.Stringer.
func (b BusinessCategory) String() string {
	return string(b)
}

// IsValid reports whether the value is a known BusinessCategory.
func (b BusinessCategory) IsValid() bool {
	for _, candidate := range validBusinessCategories {
		if candidate == b {
			return true
		}
	}
	return false
}

// ParseBusinessCategory converts raw input into a BusinessCategory.
func ParseBusinessCategory(value string) (BusinessCategory, error) {
	for _, candidate := range validBusinessCategories {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid business category %q", value)
}

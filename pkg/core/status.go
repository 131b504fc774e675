package core

// Severity is the coverage tier used for recommendations and exit status.
type Severity int

const (
	SeverityNone      Severity = iota // No elements to measure
	SeverityCritical                  // Below 50%
	SeverityWarning                   // Below 75%
	SeverityGood                      // Below 90%
	SeverityExcellent                 // 90% and above
)

// SeverityFor returns the tier for an overall coverage percentage.
func SeverityFor(percentage int) Severity {
	switch {
	case percentage < 50:
		return SeverityCritical
	case percentage < 75:
		return SeverityWarning
	case percentage < 90:
		return SeverityGood
	default:
		return SeverityExcellent
	}
}

// String returns the string representation of Severity
func (s Severity) String() string {
	switch s {
	case SeverityNone:
		return "none"
	case SeverityCritical:
		return "critical"
	case SeverityWarning:
		return "warning"
	case SeverityGood:
		return "good"
	case SeverityExcellent:
		return "excellent"
	default:
		return "unknown"
	}
}

// IsActionable returns true if the tier calls for more tests
func (s Severity) IsActionable() bool {
	return s == SeverityCritical || s == SeverityWarning
}

// ErrorCategory classifies the type of error for better debugging and reporting
type ErrorCategory int

const (
	ErrCategoryNone          ErrorCategory = iota // No error
	ErrCategorySelectorParse                      // Selector did not match any known pattern
	ErrCategoryPersistence                        // Coverage file unreadable or unwritable
	ErrCategoryElement                            // Single element failed during a batch
	ErrCategoryConfig                             // Invalid configuration
	ErrCategoryDiscovery                          // Discoverer could not produce elements
)

// String returns the string representation of ErrorCategory
func (c ErrorCategory) String() string {
	switch c {
	case ErrCategoryNone:
		return "none"
	case ErrCategorySelectorParse:
		return "selector_parse"
	case ErrCategoryPersistence:
		return "persistence"
	case ErrCategoryElement:
		return "element"
	case ErrCategoryConfig:
		return "config"
	case ErrCategoryDiscovery:
		return "discovery"
	default:
		return "unknown"
	}
}

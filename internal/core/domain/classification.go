package domain

// Category is the verdict of classifying an ErrorReport.
type Category string

const (
	CategoryValidError    Category = "valid-error"
	CategoryFalsePositive Category = "false-positive"
)

// ClassificationResult is derived from (ErrorReport, ServiceCapabilityDescriptor) and never stored as state.
type ClassificationResult struct {
	IsValidError bool     `json:"isValidError"`
	Category     Category `json:"category"`
	Reason       string   `json:"reason"`
}

package models

type LineType string

const (
	LineTypeMobile   LineType = "Mobile"
	LineTypeLandline LineType = "Landline"
	LineTypeInvalid  LineType = "Invalid"
	LineTypeError    LineType = "Error"
	LineTypeUnknown  LineType = "Unknown"
)

// NormalizedPhone is the outcome of normalizing one scraped phone string.
// Formatted holds E.164 text when IsValid, otherwise the original input.
type NormalizedPhone struct {
	Formatted string   `json:"formatted_number"`
	IsValid   bool     `json:"is_valid"`
	LineType  LineType `json:"line_type"`
}

package models

import "strings"

const (
	DecisionKeep    = "KEEP"
	DecisionDiscard = "DISCARD"
)

const (
	ConfidenceHigh   = "High"
	ConfidenceMedium = "Medium"
	ConfidenceLow    = "Low"
)

// ClassificationDecision is the classifier verdict for one batch index.
// Empty fields mean the service did not provide (or provided an unrecognised) value.
type ClassificationDecision struct {
	Decision        string `json:"decision"`
	DoctorName      string `json:"doctor_name"`
	ConfidenceScore string `json:"confidence_score"`
}

// NormalizeDecision maps free-form service output onto KEEP, DISCARD or "".
func NormalizeDecision(value string) string {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case DecisionKeep:
		return DecisionKeep
	case DecisionDiscard:
		return DecisionDiscard
	default:
		return ""
	}
}

// NormalizeConfidence maps free-form service output onto High, Medium, Low or "".
func NormalizeConfidence(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "high":
		return ConfidenceHigh
	case "medium":
		return ConfidenceMedium
	case "low":
		return ConfidenceLow
	default:
		return ""
	}
}

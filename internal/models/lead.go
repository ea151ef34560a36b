package models

// LeadColumns is the column order of every tabular lead export.
var LeadColumns = []string{
	"clinic_name",
	"doctor_name",
	"phone_number",
	"line_type",
	"address",
	"website",
	"maps_link",
	"confidence_score",
	"decision",
}

// Lead is a classified listing ready for export.
type Lead struct {
	RunID           string `json:"run_id,omitempty"`
	Index           int    `json:"index"`
	ClinicName      string `json:"clinic_name"`
	DoctorName      string `json:"doctor_name"`
	PhoneNumber     string `json:"phone_number"`
	LineType        string `json:"line_type"`
	Address         string `json:"address"`
	Website         string `json:"website"`
	MapsLink        string `json:"maps_link"`
	ConfidenceScore string `json:"confidence_score"`
	Decision        string `json:"decision"`
}

// Record returns the lead's values in LeadColumns order.
func (l Lead) Record() []string {
	return []string{
		l.ClinicName,
		l.DoctorName,
		l.PhoneNumber,
		l.LineType,
		l.Address,
		l.Website,
		l.MapsLink,
		l.ConfidenceScore,
		l.Decision,
	}
}

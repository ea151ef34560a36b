package models

import "testing"

func TestLeadRecordFollowsColumnOrder(t *testing.T) {
	lead := Lead{
		ClinicName:      "clinic_name",
		DoctorName:      "doctor_name",
		PhoneNumber:     "phone_number",
		LineType:        "line_type",
		Address:         "address",
		Website:         "website",
		MapsLink:        "maps_link",
		ConfidenceScore: "confidence_score",
		Decision:        "decision",
	}

	record := lead.Record()
	if len(record) != len(LeadColumns) {
		t.Fatalf("expected %d values, got %d", len(LeadColumns), len(record))
	}
	for i, column := range LeadColumns {
		if record[i] != column {
			t.Fatalf("column %d: expected %q got %q", i, column, record[i])
		}
	}
}

func TestNormalizeDecisionAndConfidence(t *testing.T) {
	tests := []struct {
		in       string
		decision string
		conf     string
	}{
		{"KEEP", DecisionKeep, ""},
		{" keep ", DecisionKeep, ""},
		{"Discard", DecisionDiscard, ""},
		{"maybe", "", ""},
		{"high", "", ConfidenceHigh},
		{"MEDIUM", "", ConfidenceMedium},
		{"Low", "", ConfidenceLow},
		{"", "", ""},
	}
	for _, tc := range tests {
		if got := NormalizeDecision(tc.in); got != tc.decision {
			t.Fatalf("NormalizeDecision(%q): expected %q got %q", tc.in, tc.decision, got)
		}
		if got := NormalizeConfidence(tc.in); got != tc.conf {
			t.Fatalf("NormalizeConfidence(%q): expected %q got %q", tc.in, tc.conf, got)
		}
	}
}

package models

// RawListing is one map result as read from its detail view, before classification.
type RawListing struct {
	ClinicName  string `json:"clinic_name"`
	DoctorName  string `json:"doctor_name"`
	PhoneNumber string `json:"phone_number"`
	Website     string `json:"website"`
	MapsLink    string `json:"maps_link"`
	Address     string `json:"address"`
}

// ExtractionResult carries the listings of one extraction run together with what happened on the way.
type ExtractionResult struct {
	Query         string       `json:"query"`
	Listings      []RawListing `json:"listings"`
	ResultLinks   int          `json:"result_links"`
	ScrollSteps   int          `json:"scroll_steps"`
	ListingErrors int          `json:"listing_errors"`
	Transitions   []string     `json:"transitions"`
}

// Names returns the clinic names of the listings in order.
func (r *ExtractionResult) Names() []string {
	names := make([]string, len(r.Listings))
	for i, listing := range r.Listings {
		names[i] = listing.ClinicName
	}
	return names
}

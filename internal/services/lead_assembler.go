package services

import (
	"clinic-leads-collector/internal/interfaces"
	"clinic-leads-collector/internal/models"

	"golang.org/x/sync/errgroup"
)

type leadAssembler struct {
	normalizer  interfaces.PhoneNormalizer
	sentinel    string
	concurrency int
}

// NewLeadAssembler creates an assembler that replaces unusable phone numbers with sentinel and
// normalizes up to concurrency numbers at a time.
func NewLeadAssembler(normalizer interfaces.PhoneNormalizer, sentinel string, concurrency int) interfaces.LeadAssembler {
	if concurrency < 1 {
		concurrency = 1
	}
	return &leadAssembler{
		normalizer:  normalizer,
		sentinel:    sentinel,
		concurrency: concurrency,
	}
}

// Assemble joins raw listings with decisions by batch index. Listings without a decision are
// dropped; the rest keep their input order.
func (a *leadAssembler) Assemble(raw []models.RawListing, decisions map[int]models.ClassificationDecision) []models.Lead {
	kept := make([]int, 0, len(decisions))
	for i := range raw {
		if _, ok := decisions[i]; ok {
			kept = append(kept, i)
		}
	}
	if len(kept) == 0 {
		return []models.Lead{}
	}

	phones := make([]models.NormalizedPhone, len(kept))
	var g errgroup.Group
	g.SetLimit(a.concurrency)
	for slot, index := range kept {
		g.Go(func() error {
			phones[slot] = a.normalizer.Normalize(raw[index].PhoneNumber)
			return nil
		})
	}
	_ = g.Wait()

	leads := make([]models.Lead, 0, len(kept))
	for slot, index := range kept {
		listing := raw[index]
		decision := decisions[index]

		lead := models.Lead{
			Index:           index,
			ClinicName:      listing.ClinicName,
			DoctorName:      decision.DoctorName,
			Address:         listing.Address,
			Website:         listing.Website,
			MapsLink:        listing.MapsLink,
			ConfidenceScore: decision.ConfidenceScore,
			Decision:        decision.Decision,
		}
		if lead.ConfidenceScore == "" {
			lead.ConfidenceScore = models.ConfidenceLow
		}

		if phone := phones[slot]; phone.IsValid {
			lead.PhoneNumber = phone.Formatted
			lead.LineType = string(phone.LineType)
		} else {
			lead.PhoneNumber = a.sentinel
		}

		leads = append(leads, lead)
	}

	return leads
}

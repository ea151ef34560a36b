package services

import (
	"strings"

	"clinic-leads-collector/internal/interfaces"
	"clinic-leads-collector/internal/models"

	"github.com/nyaruka/phonenumbers"
)

type phoneNormalizer struct {
	region string
}

// NewPhoneNormalizer returns a normalizer that reads numbers as dialed within region (ISO 3166 alpha-2).
func NewPhoneNormalizer(region string) interfaces.PhoneNormalizer {
	return &phoneNormalizer{region: strings.ToUpper(region)}
}

// Normalize parses raw against the configured numbering plan. Valid numbers come back in E.164 with a
// Mobile/Landline line type; anything else keeps the raw text and reports why it is unusable.
func (p *phoneNormalizer) Normalize(raw string) models.NormalizedPhone {
	if raw == "" {
		return models.NormalizedPhone{LineType: models.LineTypeUnknown}
	}

	number, err := phonenumbers.Parse(raw, p.region)
	if err != nil {
		return models.NormalizedPhone{Formatted: raw, LineType: models.LineTypeError}
	}

	if !phonenumbers.IsValidNumber(number) {
		return models.NormalizedPhone{Formatted: raw, LineType: models.LineTypeInvalid}
	}

	lineType := models.LineTypeLandline
	if phonenumbers.GetNumberType(number) == phonenumbers.MOBILE {
		lineType = models.LineTypeMobile
	}

	return models.NormalizedPhone{
		Formatted: phonenumbers.Format(number, phonenumbers.E164),
		IsValid:   true,
		LineType:  lineType,
	}
}

package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"clinic-leads-collector/internal/common"
	"clinic-leads-collector/internal/interfaces"
	"clinic-leads-collector/internal/metrics"
	"clinic-leads-collector/internal/models"

	"github.com/ternarybob/arbor"
)

const classificationPromptTemplate = `You are an expert Egyptian medical directory auditor.
Analyze the following list of medical entity names: %s

STRICT FILTERING RULES:
1. KEEP: Only Solo/Group Private Clinics (Iyada).
   Note: "Dr. [Name] Center" is usually a private clinic.
2. DISCARD: Hospitals (Mustashfa), Multi-specialty Corporate Centers (e.g., "Cairo Medical Center"), Labs (Ma3mal), and Pharmacies.

TASK:
- Determine if we should KEEP or DISCARD.
- If KEEP: Extract the 'doctor_name' from the clinic title if a personal name is present.
- Assign a 'confidence_score':
    - High: Explicitly "Clinic" or "Dr. [Name]".
    - Medium: "Center" but associated with a single doctor's name.
    - Low: Ambiguous names.

OUTPUT FORMAT:
Return a JSON object where the key is the 'id' and the value is an object:
{"0": {"decision": "KEEP", "doctor_name": "Ahmed", "confidence_score": "High"}, ...}
Respond ONLY with JSON.
`

type clinicClassifier struct {
	service interfaces.ClassifierService
	logger  arbor.ILogger
}

// NewClinicClassifier creates a classifier that sends a whole batch of names in one service call.
func NewClinicClassifier(service interfaces.ClassifierService, logger arbor.ILogger) interfaces.ClinicClassifier {
	return &clinicClassifier{
		service: service,
		logger:  logger,
	}
}

func (c *clinicClassifier) Classify(ctx context.Context, names []string) map[int]models.ClassificationDecision {
	decisions, err := c.ClassifyBatch(ctx, names)
	if err != nil {
		return map[int]models.ClassificationDecision{}
	}
	return decisions
}

func (c *clinicClassifier) ClassifyBatch(ctx context.Context, names []string) (map[int]models.ClassificationDecision, error) {
	if len(names) == 0 {
		metrics.ClassifierRequests.WithLabelValues("skipped").Inc()
		return map[int]models.ClassificationDecision{}, nil
	}

	c.logger.Info().Int("names", len(names)).Msg("Classifying listing batch")

	text, err := c.service.Generate(ctx, BuildClassificationPrompt(names))
	if err != nil {
		metrics.ClassifierRequests.WithLabelValues("service_error").Inc()
		c.logger.Error().Err(err).Int("names", len(names)).Msg("Classifier service call failed, discarding batch")
		return map[int]models.ClassificationDecision{},
			common.WrapError(err, common.ErrorTypeClassification, "service_failed", "classifier service call failed")
	}

	decisions, err := ParseClassificationResponse(text, len(names))
	if err != nil {
		metrics.ClassifierRequests.WithLabelValues("parse_error").Inc()
		c.logger.Error().Err(err).Str("response", truncateBody(text)).Msg("Classifier response unreadable, discarding batch")
		return map[int]models.ClassificationDecision{},
			common.WrapError(err, common.ErrorTypeClassification, "malformed_response", "classifier response could not be parsed")
	}

	metrics.ClassifierRequests.WithLabelValues("success").Inc()
	c.logger.Info().
		Int("names", len(names)).
		Int("decisions", len(decisions)).
		Msg("Batch classified")

	return decisions, nil
}

// BuildClassificationPrompt embeds every name tagged with its batch index.
func BuildClassificationPrompt(names []string) string {
	lines := make([]string, len(names))
	for i, name := range names {
		lines[i] = fmt.Sprintf("%d. %s", i, name)
	}
	listing, _ := json.Marshal(strings.Join(lines, "\n"))
	return fmt.Sprintf(classificationPromptTemplate, listing)
}

type rawDecision struct {
	Decision        *string `json:"decision"`
	DoctorName      *string `json:"doctor_name"`
	ConfidenceScore *string `json:"confidence_score"`
}

// ParseClassificationResponse decodes a reply keyed by batch index. Keys that are not indices in
// [0, batchSize) and null entries are ignored; anything that does not decode as an object of
// decision objects fails the whole batch.
func ParseClassificationResponse(text string, batchSize int) (map[int]models.ClassificationDecision, error) {
	body := normalizeJSONBlock(text)
	if body == "" {
		return nil, fmt.Errorf("empty classifier response")
	}

	var raw map[string]*rawDecision
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return nil, fmt.Errorf("decode classifier response: %w", err)
	}

	decisions := make(map[int]models.ClassificationDecision, len(raw))
	for key, entry := range raw {
		if entry == nil {
			continue
		}
		index, err := strconv.Atoi(strings.TrimSpace(key))
		if err != nil || index < 0 || index >= batchSize {
			continue
		}
		decisions[index] = models.ClassificationDecision{
			Decision:        models.NormalizeDecision(deref(entry.Decision)),
			DoctorName:      strings.TrimSpace(deref(entry.DoctorName)),
			ConfidenceScore: models.NormalizeConfidence(deref(entry.ConfidenceScore)),
		}
	}

	return decisions, nil
}

// normalizeJSONBlock strips markdown fences and any prose around the outermost object.
func normalizeJSONBlock(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```")
		if idx := strings.IndexRune(trimmed, '\n'); idx >= 0 {
			trimmed = trimmed[idx+1:]
		}
		trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	}
	trimmed = strings.TrimSpace(trimmed)
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start >= 0 && end >= start {
		return strings.TrimSpace(trimmed[start : end+1])
	}
	return trimmed
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"clinic-leads-collector/internal/common"
	"clinic-leads-collector/internal/models"
)

type fakeClassifierService struct {
	reply   string
	err     error
	calls   int
	prompts []string
}

func (f *fakeClassifierService) Generate(ctx context.Context, prompt string) (string, error) {
	f.calls++
	f.prompts = append(f.prompts, prompt)
	return f.reply, f.err
}

var scenarioNames = []string{"Dr. Amr Clinic", "Cairo General Hospital", "Dr. Nour Dental Center"}

const scenarioReply = `{"0": {"decision":"KEEP","doctor_name":"Amr","confidence_score":"High"}, "2": {"decision":"KEEP","doctor_name":"Nour","confidence_score":"Medium"}}`

func TestClassifyOmittedIndexIsAbsent(t *testing.T) {
	service := &fakeClassifierService{reply: scenarioReply}
	classifier := NewClinicClassifier(service, testLogger())

	decisions := classifier.Classify(context.Background(), scenarioNames)

	if len(decisions) != 2 {
		t.Fatalf("expected 2 decisions, got %d: %+v", len(decisions), decisions)
	}
	if _, ok := decisions[1]; ok {
		t.Fatalf("index 1 was omitted by the service and must be absent")
	}
	if got := decisions[0]; got != (models.ClassificationDecision{Decision: "KEEP", DoctorName: "Amr", ConfidenceScore: "High"}) {
		t.Fatalf("unexpected decision 0: %+v", got)
	}
	if got := decisions[2]; got.DoctorName != "Nour" || got.ConfidenceScore != "Medium" {
		t.Fatalf("unexpected decision 2: %+v", got)
	}
	if service.calls != 1 {
		t.Fatalf("expected one batched call, got %d", service.calls)
	}
}

func TestClassifyPromptTagsEveryNameWithItsIndex(t *testing.T) {
	service := &fakeClassifierService{reply: "{}"}
	NewClinicClassifier(service, testLogger()).Classify(context.Background(), scenarioNames)

	prompt := service.prompts[0]
	for _, want := range []string{`0. Dr. Amr Clinic`, `1. Cairo General Hospital`, `2. Dr. Nour Dental Center`, "KEEP", "DISCARD", "confidence_score"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt is missing %q:\n%s", want, prompt)
		}
	}
}

func TestClassifyEmptyBatchSkipsService(t *testing.T) {
	service := &fakeClassifierService{reply: scenarioReply}
	classifier := NewClinicClassifier(service, testLogger())

	decisions, err := classifier.ClassifyBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(decisions) != 0 || decisions == nil {
		t.Fatalf("expected an empty non-nil mapping, got %#v", decisions)
	}
	if service.calls != 0 {
		t.Fatalf("expected no service call, got %d", service.calls)
	}
}

func TestClassifyFailsClosed(t *testing.T) {
	tests := []struct {
		name    string
		service *fakeClassifierService
	}{
		{"service error", &fakeClassifierService{err: &ServiceError{Provider: "gemini", StatusCode: 503}}},
		{"not json", &fakeClassifierService{reply: "I cannot help with that."}},
		{"array instead of object", &fakeClassifierService{reply: `[{"decision":"KEEP"}]`}},
		{"entry is not an object", &fakeClassifierService{reply: `{"0": "KEEP"}`}},
		{"empty reply", &fakeClassifierService{reply: "   "}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			classifier := NewClinicClassifier(tc.service, testLogger())

			if decisions := classifier.Classify(context.Background(), scenarioNames); len(decisions) != 0 {
				t.Fatalf("expected no decisions, got %+v", decisions)
			}

			decisions, err := classifier.ClassifyBatch(context.Background(), scenarioNames)
			if len(decisions) != 0 {
				t.Fatalf("expected no decisions, got %+v", decisions)
			}
			if !common.IsErrorType(err, common.ErrorTypeClassification) {
				t.Fatalf("expected a classification error, got %v", err)
			}
		})
	}
}

func TestParseClassificationResponse(t *testing.T) {
	reply := "```json\n" + `{
		"0": {"decision": "keep", "doctor_name": " Amr ", "confidence_score": "high"},
		"1": null,
		"2": {"decision": "DISCARD"},
		"3": {"decision": "KEEP"},
		"-1": {"decision": "KEEP"},
		"x": {"decision": "KEEP"}
	}` + "\n```"

	decisions, err := ParseClassificationResponse(reply, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(decisions) != 2 {
		t.Fatalf("expected only in-range non-null indices, got %+v", decisions)
	}
	if got := decisions[0]; got.Decision != models.DecisionKeep || got.DoctorName != "Amr" || got.ConfidenceScore != models.ConfidenceHigh {
		t.Fatalf("unexpected decision 0: %+v", got)
	}
	if got := decisions[2]; got.Decision != models.DecisionDiscard || got.DoctorName != "" || got.ConfidenceScore != "" {
		t.Fatalf("unexpected decision 2: %+v", got)
	}
}

func TestClassifyRecordsServiceCause(t *testing.T) {
	cause := errors.New("quota exhausted")
	classifier := NewClinicClassifier(&fakeClassifierService{err: cause}, testLogger())

	_, err := classifier.ClassifyBatch(context.Background(), scenarioNames)
	if !errors.Is(err, cause) {
		t.Fatalf("expected the service error to be wrapped, got %v", err)
	}
}

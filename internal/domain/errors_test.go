package domain

import (
	"errors"
	"testing"
	"time"
)

func TestOncoprintError(t *testing.T) {
	tests := []struct {
		name      string
		code      string
		message   string
		details   string
		requestID string
	}{
		{
			name:      "Basic error",
			code:      ErrInvalidInput,
			message:   "Invalid heatmap track group",
			details:   "The heatmap_track_groups parameter has no profile id",
			requestID: "req-123",
		},
		{
			name:      "Export error",
			code:      ErrExportUnavailable,
			message:   "PDF export unavailable",
			details:   "The attached renderer cannot produce PDF",
			requestID: "req-456",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewOncoprintError(tt.code, tt.message, tt.details, tt.requestID)

			if err.Code != tt.code {
				t.Errorf("Expected code %s, got %s", tt.code, err.Code)
			}

			if err.Message != tt.message {
				t.Errorf("Expected message %s, got %s", tt.message, err.Message)
			}

			if err.Details != tt.details {
				t.Errorf("Expected details %s, got %s", tt.details, err.Details)
			}

			if err.RequestID != tt.requestID {
				t.Errorf("Expected requestID %s, got %s", tt.requestID, err.RequestID)
			}

			if time.Since(err.Timestamp) > time.Minute {
				t.Errorf("Timestamp should be recent, got %v", err.Timestamp)
			}

			expectedError := tt.code + ": " + tt.message
			if err.Error() != expectedError {
				t.Errorf("Expected error string %s, got %s", expectedError, err.Error())
			}
		})
	}
}

func TestValidationError(t *testing.T) {
	tests := []struct {
		name    string
		field   string
		message string
		value   interface{}
	}{
		{
			name:    "String validation error",
			field:   "molecularProfileId",
			message: "must not be empty",
			value:   "",
		},
		{
			name:    "Integer validation error",
			field:   "horzZoom",
			message: "must be positive",
			value:   -1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewValidationError(tt.field, tt.message, tt.value)

			if err.Field != tt.field {
				t.Errorf("Expected field %s, got %s", tt.field, err.Field)
			}

			if err.Value != tt.value {
				t.Errorf("Expected value %v, got %v", tt.value, err.Value)
			}

			expectedError := "validation error for field '" + tt.field + "': " + tt.message
			if err.Error() != expectedError {
				t.Errorf("Expected error string %s, got %s", expectedError, err.Error())
			}
		})
	}
}

func TestInvariantError(t *testing.T) {
	err := InvariantError("%d heatmap rows for sample %s", 2, "S1")

	if !errors.Is(err, ErrInvariant) {
		t.Fatalf("Expected error to wrap ErrInvariant, got %v", err)
	}
	if err.Error() != "invariant violation: 2 heatmap rows for sample S1" {
		t.Errorf("Unexpected error string %q", err.Error())
	}
}

func TestColumnModeCapitalized(t *testing.T) {
	if got := ColumnModeSample.Capitalized(); got != "Sample" {
		t.Errorf("Expected Sample, got %s", got)
	}
	if got := ColumnModePatient.Capitalized(); got != "Patient" {
		t.Errorf("Expected Patient, got %s", got)
	}
}

func TestCaseCoverageProfiledIn(t *testing.T) {
	coverage := CaseCoverage{
		ByGene: map[string][]GenePanelDatum{
			"TP53": {{MolecularProfileID: "study_mutations", GenePanelID: "IMPACT341", Profiled: true}},
		},
		AllGenes: []GenePanelDatum{{MolecularProfileID: "study_gistic", Profiled: true}},
	}

	if !coverage.ProfiledIn("study_mutations") {
		t.Error("Expected case to be profiled in study_mutations")
	}
	if !coverage.ProfiledIn("study_gistic") {
		t.Error("Expected case to be profiled in study_gistic")
	}
	if coverage.ProfiledIn("study_mrna") {
		t.Error("Expected case not to be profiled in study_mrna")
	}
}

package validation

import (
	"errors"
	"strings"
	"testing"
)

type sampleRow struct {
	Channel string   `json:"channel" validate:"required"`
	Score   *float64 `json:"trend_score,omitempty" validate:"omitempty,gte=0,lte=100"`
}

type sampleRequest struct {
	Budget float64     `json:"total_budget" validate:"gt=0"`
	Rows   []sampleRow `json:"channels" validate:"min=1,dive"`
}

func TestValidateStruct(t *testing.T) {
	score := 150.0
	tests := []struct {
		name      string
		input     sampleRequest
		wantField string
	}{
		{
			name:  "Valid",
			input: sampleRequest{Budget: 1, Rows: []sampleRow{{Channel: "naver"}}},
		},
		{
			name:      "Non-positive budget",
			input:     sampleRequest{Budget: 0, Rows: []sampleRow{{Channel: "naver"}}},
			wantField: "total_budget",
		},
		{
			name:      "Empty rows",
			input:     sampleRequest{Budget: 1},
			wantField: "channels",
		},
		{
			name:      "Missing channel",
			input:     sampleRequest{Budget: 1, Rows: []sampleRow{{}}},
			wantField: "channels[0].channel",
		},
		{
			name:      "Score out of range",
			input:     sampleRequest{Budget: 1, Rows: []sampleRow{{Channel: "meta", Score: &score}}},
			wantField: "channels[0].trend_score",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(&tt.input)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("ValidateStruct() unexpected error: %v", err)
				}
				return
			}
			var structErr *StructError
			if !errors.As(err, &structErr) {
				t.Fatalf("ValidateStruct() expected *StructError, got %v", err)
			}
			found := false
			for _, f := range structErr.Fields {
				if f.Field == tt.wantField {
					found = true
				}
			}
			if !found {
				t.Fatalf("expected field %s in %+v", tt.wantField, structErr.Fields)
			}
			if !strings.Contains(err.Error(), tt.wantField) {
				t.Errorf("expected message to mention %s, got %q", tt.wantField, err.Error())
			}
		})
	}
}

package errors

import (
	"strings"
	"testing"
)

func TestValidateIntent(t *testing.T) {
	tests := []struct {
		name    string
		intent  string
		wantErr bool
	}{
		{"simple", "draw a login flow", false},
		{"multiline", "step one\nstep two\tindented", false},
		{"empty", "", true},
		{"whitespace only", "  \n\t ", true},
		{"control character", "draw\x00this", true},
		{"too long", strings.Repeat("a", MaxIntentLength+1), true},
		{"at limit", strings.Repeat("a", MaxIntentLength), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateIntent(tt.intent)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateIntent() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !Is(err, ErrCodeInvalidInput) {
				t.Errorf("code = %v, want %v", GetCode(err), ErrCodeInvalidInput)
			}
		})
	}
}

func TestValidateRecordID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{"uuid", "3f2b8a4e-4a53-4b5e-9d1c-1f0a2b3c4d5e", false},
		{"empty", "", true},
		{"traversal", "../../etc/passwd", true},
		{"garbage", "not-a-uuid", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateRecordID(tt.id); (err != nil) != tt.wantErr {
				t.Errorf("ValidateRecordID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
			}
		})
	}
}

package validation

import (
	"strings"
	"testing"
)

func TestValidateVolumeName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		// Valid names
		{"valid simple name", "myvolume", false},
		{"valid with numbers", "volume123", false},
		{"valid with underscore", "my_volume", false},
		{"valid with dot", "my.volume", false},
		{"valid with hyphen", "my-volume", false},
		{"valid mixed", "my-volume_123.test", false},
		{"valid minimum length", "ab", false},
		{"valid 255 chars", strings.Repeat("a", 255), false},
		{"valid starts with number", "1volume", false},

		// Invalid names - too short
		{"too short - 1 char", "a", true},
		{"too short - empty", "", true},

		// Invalid names - too long
		{"too long - 256 chars", strings.Repeat("a", 256), true},

		// Invalid names - bad characters
		{"starts with underscore", "_volume", true},
		{"starts with hyphen", "-volume", true},
		{"starts with dot", ".volume", true},
		{"contains space", "my volume", true},
		{"contains slash", "my/volume", true},
		{"contains colon", "my:volume", true},
		{"contains at sign", "my@volume", true},
		{"contains special chars", "my$volume", true},
		{"dot dot alone", "..", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateVolumeName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateVolumeName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestIsVolumeName(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"data", true},
		{"web-content", true},
		{"lost+found", false},
		{".snapshots", false},
		{"a", false},
	}

	for _, tt := range tests {
		if got := IsVolumeName(tt.input); got != tt.want {
			t.Errorf("IsVolumeName(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

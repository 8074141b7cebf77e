package procmounts

import (
	"reflect"
	"strings"
	"testing"
)

func TestParseTable(t *testing.T) {
	input := strings.Join([]string{
		"/dev/sda1 / ext4 rw,relatime 0 0",
		"proc /proc proc rw,nosuid,nodev,noexec 0 0",
		"/dev/sdb1 /mnt/with\\040space ext4 rw 0 0",
		"tmpfs /run tmpfs rw,nosuid,nodev 0 0",
		"short line",
		"",
	}, "\n")

	want := []Entry{
		{Device: "/dev/sda1", MountPoint: "/", FSType: "ext4", Options: "rw,relatime"},
		{Device: "proc", MountPoint: "/proc", FSType: "proc", Options: "rw,nosuid,nodev,noexec"},
		{Device: "/dev/sdb1", MountPoint: "/mnt/with space", FSType: "ext4", Options: "rw"},
		{Device: "tmpfs", MountPoint: "/run", FSType: "tmpfs", Options: "rw,nosuid,nodev"},
	}

	got, err := parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("parse() error = %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("parse() = %+v, want %+v", got, want)
	}
}

func TestUnescape(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"no escapes", "/mnt/data", "/mnt/data"},
		{"space", "/mnt/my\\040disk", "/mnt/my disk"},
		{"tab", "a\\011b", "a\tb"},
		{"newline", "a\\012b", "a\nb"},
		{"backslash", "a\\134b", "a\\b"},
		{"multiple", "\\040\\040", "  "},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Unescape(tt.input); got != tt.want {
				t.Errorf("Unescape(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

package optstr

import (
	"reflect"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []Option
	}{
		// Basic forms
		{"empty string", "", nil},
		{"single flag", "ro", []Option{{Name: "ro"}}},
		{"two flags", "ro,noexec", []Option{{Name: "ro"}, {Name: "noexec"}}},
		{"name with value", "uid=1000", []Option{{Name: "uid", Value: "1000", HasValue: true}}},
		{"empty value kept", "subdir=", []Option{{Name: "subdir", Value: "", HasValue: true}}},
		{"mixed", "rw,uid=0,noatime", []Option{
			{Name: "rw"},
			{Name: "uid", Value: "0", HasValue: true},
			{Name: "noatime"},
		}},

		// Empty elements
		{"leading comma", ",ro", []Option{{Name: "ro"}}},
		{"double comma", "ro,,rw", []Option{{Name: "ro"}, {Name: "rw"}}},
		{"trailing comma", "ro,", []Option{{Name: "ro"}}},

		// Quoting
		{"quoted value", `subdir="data"`, []Option{{Name: "subdir", Value: `"data"`, HasValue: true}}},
		{"quoted value with comma", `subdir="a,b",ro`, []Option{
			{Name: "subdir", Value: `"a,b"`, HasValue: true},
			{Name: "ro"},
		}},
		{"unterminated quote swallows rest", `subdir="a,ro`, []Option{
			{Name: "subdir", Value: `"a,ro`, HasValue: true},
		}},
		{"quote in name does not protect", `a"b,ro`, []Option{
			{Name: `a"b`},
			{Name: "ro"},
		}},

		// Values containing '='
		{"second equals stays in value", "opt=a=b", []Option{{Name: "opt", Value: "a=b", HasValue: true}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.input)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Parse(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestGet(t *testing.T) {
	tests := []struct {
		name      string
		optstr    string
		option    string
		wantValue string
		wantFound bool
	}{
		{"present with value", "rw,X-mount.subdir=data,noexec", "X-mount.subdir", "data", true},
		{"present without value", "rw,X-mount.subdir,noexec", "X-mount.subdir", "", true},
		{"present empty value", "X-mount.subdir=", "X-mount.subdir", "", true},
		{"absent", "rw,noexec", "X-mount.subdir", "", false},
		{"quoted value kept raw", `X-mount.subdir="data/current"`, "X-mount.subdir", `"data/current"`, true},
		{"first occurrence wins", "opt=1,opt=2", "opt", "1", true},
		{"name is not a prefix match", "X-mount.subdirectory=x", "X-mount.subdir", "", false},
		{"empty optstr", "", "X-mount.subdir", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, found := Get(tt.optstr, tt.option)
			if value != tt.wantValue || found != tt.wantFound {
				t.Errorf("Get(%q, %q) = (%q, %v), want (%q, %v)",
					tt.optstr, tt.option, value, found, tt.wantValue, tt.wantFound)
			}
		})
	}
}

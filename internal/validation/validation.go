package validation

import (
	"fmt"
	"regexp"
)

const (
	// MinNameLength is the minimum length for a volume name
	MinNameLength = 2
	// MaxNameLength is the maximum length for a volume name. Volume
	// names become directory names on the backing filesystem, so the
	// bound is the usual NAME_MAX.
	MaxNameLength = 255
)

// namePattern matches Docker's naming requirements:
// Must start with alphanumeric, followed by alphanumeric, underscore, dot, or hyphen
// See: https://github.com/moby/moby/blob/master/daemon/names/names.go
var namePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]*$`)

// ValidateVolumeName validates that a volume name meets all requirements:
// - Matches Docker naming pattern (alphanumeric start, alphanumeric/underscore/dot/hyphen continuation)
// - Between 2 and 255 characters
// A name passing the pattern is a single path element, so it cannot
// escape the backing filesystem root.
func ValidateVolumeName(name string) error {
	if len(name) < MinNameLength {
		return fmt.Errorf("volume name must be at least %d characters", MinNameLength)
	}

	if len(name) > MaxNameLength {
		return fmt.Errorf("volume name must be at most %d characters", MaxNameLength)
	}

	if !namePattern.MatchString(name) {
		return fmt.Errorf("volume name must start with alphanumeric and contain only alphanumeric, underscore, dot, or hyphen characters")
	}

	return nil
}

// IsVolumeName reports whether name is usable as a volume name. The
// driver uses it to skip foreign directory entries such as lost+found
// when listing the backing filesystem.
func IsVolumeName(name string) bool {
	return ValidateVolumeName(name) == nil
}

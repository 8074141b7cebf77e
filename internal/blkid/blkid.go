// Package blkid resolves block device specs such as UUID=... or
// LABEL=... to device node paths, by shelling out to the blkid binary
// or by querying udisksd over DBus.
package blkid

import (
	"fmt"
	"strings"
)

// ProbeInfo holds the identification data read from a block device
// superblock and its partition table entry.
type ProbeInfo struct {
	// Device is the device node the probe ran against
	Device string
	// Type is the detected filesystem type (e.g. "ext4"), if any
	Type string
	// UUID is the filesystem UUID
	UUID string
	// Label is the filesystem label
	Label string
	// PartUUID is the partition UUID from the partition table
	PartUUID string
	// PartLabel is the partition name from the partition table
	PartLabel string
}

// Resolver defines the interface for turning fstab-style device specs
// into device node paths
type Resolver interface {
	// Resolve returns the device node for the given spec. A spec is
	// either a tag such as UUID=abcd or LABEL=data, or a plain path,
	// which is passed through untouched.
	// Returns ErrNotFound when no device carries the tag.
	Resolve(spec string) (string, error)

	// Probe returns the identification data for the given device node.
	// Returns ErrNotFound when the device is unknown or carries no
	// recognizable signature.
	Probe(device string) (*ProbeInfo, error)
}

// ErrNotFound is returned when no device matches a spec
var ErrNotFound = fmt.Errorf("device not found")

// knownTags lists the NAME=value spec forms understood by Resolve
var knownTags = map[string]bool{
	"UUID":      true,
	"LABEL":     true,
	"PARTUUID":  true,
	"PARTLABEL": true,
}

// splitTag splits a NAME=value device spec into its tag name and value.
// ok is false when spec is not a recognized tag, i.e. a plain path.
func splitTag(spec string) (tag, value string, ok bool) {
	name, val, found := strings.Cut(spec, "=")
	if !found || !knownTags[name] {
		return "", "", false
	}
	return name, val, true
}

// NewResolver creates a Resolver based on the specified backend
func NewResolver(backend string) (Resolver, error) {
	switch backend {
	case "blkid":
		return NewExecResolver(), nil
	case "udisks":
		return NewUDisksResolver()
	default:
		return nil, fmt.Errorf("unknown resolver backend: %s (use 'blkid' or 'udisks')", backend)
	}
}

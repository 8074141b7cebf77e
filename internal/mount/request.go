package mount

import (
	"fmt"
	"strings"

	"github.com/submount/submount/internal/procmounts"
)

// Origin says how a mount request was specified.
type Origin int

const (
	// OriginCommandLine marks an ad-hoc request built from bare arguments.
	// Userspace X-* options are not honored on such requests.
	OriginCommandLine Origin = iota

	// OriginTable marks a request carrying an fstab-style entry.
	OriginTable
)

// Request describes one mount operation. The target is mutable so pipeline
// hooks can redirect and later restore it; the option string is read-only.
type Request struct {
	source  string
	target  string
	fstype  string
	options string
	origin  Origin
}

// NewRequest builds a request from its parts.
func NewRequest(source, target, fstype, options string, origin Origin) *Request {
	return &Request{
		source:  source,
		target:  target,
		fstype:  fstype,
		options: options,
		origin:  origin,
	}
}

// ParseEntry parses one fstab-style entry of the form
//
//	source target fstype options [freq passno]
//
// Octal escapes (\040 and friends) in the source, target, and options
// fields are decoded. The freq and passno fields are accepted and ignored.
// The result is a table-originated request.
func ParseEntry(line string) (*Request, error) {
	s := strings.TrimSpace(line)
	if s == "" || strings.HasPrefix(s, "#") {
		return nil, fmt.Errorf("no mount entry in %q", line)
	}

	fields := strings.Fields(s)
	if len(fields) < 4 || len(fields) > 6 {
		return nil, fmt.Errorf("malformed entry %q: expected 4 to 6 fields, got %d", line, len(fields))
	}

	return &Request{
		source:  procmounts.Unescape(fields[0]),
		target:  procmounts.Unescape(fields[1]),
		fstype:  fields[2],
		options: procmounts.Unescape(fields[3]),
		origin:  OriginTable,
	}, nil
}

// Source returns the device or filesystem source spec.
func (r *Request) Source() string { return r.source }

// SetSource replaces the source, typically after tag resolution turned a
// UUID= or LABEL= spec into a device path.
func (r *Request) SetSource(source string) { r.source = source }

// Target returns the current mount target.
func (r *Request) Target() string { return r.target }

// SetTarget redirects the mount target.
func (r *Request) SetTarget(target string) { r.target = target }

// FSType returns the filesystem type, possibly empty.
func (r *Request) FSType() string { return r.fstype }

// Options returns the full option string as specified.
func (r *Request) Options() string { return r.options }

// Origin reports how this request was specified.
func (r *Request) Origin() Origin { return r.origin }

package blkid

import (
	"bufio"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/submount/submount/internal/log"
)

// ExecResolver implements Resolver using the blkid binary
type ExecResolver struct{}

// NewExecResolver creates a new Resolver backed by the blkid binary
func NewExecResolver() *ExecResolver {
	return &ExecResolver{}
}

// blkid runs a blkid command and returns the output
func (r *ExecResolver) blkid(args ...string) ([]byte, error) {
	cmd := exec.Command("blkid", args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return output, fmt.Errorf("blkid %s: %w (output: %q)", strings.Join(args, " "), err, string(output))
	}
	return output, nil
}

// notFound reports whether err carries the blkid exit status meaning no
// match: blkid exits 2 when a lookup or probe finds nothing usable
func notFound(err error) bool {
	var exitErr *exec.ExitError
	return errors.As(err, &exitErr) && exitErr.ExitCode() == 2
}

// Resolve returns the device node matching the given spec
func (r *ExecResolver) Resolve(spec string) (string, error) {
	tag, value, ok := splitTag(spec)
	if !ok {
		return spec, nil
	}

	log.Debug("resolving device spec", "tag", tag, "value", value)

	output, err := r.blkid("-l", "-o", "device", "-t", tag+"="+value)
	if err != nil {
		if notFound(err) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("resolve %s: %w", spec, err)
	}

	device := strings.TrimSpace(string(output))
	if device == "" {
		return "", ErrNotFound
	}

	return device, nil
}

// Probe returns the identification data for the given device
func (r *ExecResolver) Probe(device string) (*ProbeInfo, error) {
	log.Debug("probing device", "device", device)

	output, err := r.blkid("-o", "export", device)
	if err != nil {
		if notFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("probe %s: %w", device, err)
	}

	info := parseExport(string(output))
	if info.Device == "" {
		info.Device = device
	}

	return info, nil
}

// parseExport parses the KEY=value output of blkid -o export
// Example output:
// DEVNAME=/dev/vdb1
// LABEL=data
// UUID=3144a810-a368-45e5-9e13-a1ba9f9e4442
// TYPE=ext4
// PARTUUID=9e1ae99a-01
func parseExport(output string) *ProbeInfo {
	info := &ProbeInfo{}

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}

		switch key {
		case "DEVNAME":
			info.Device = value
		case "TYPE":
			info.Type = value
		case "UUID":
			info.UUID = value
		case "LABEL":
			info.Label = value
		case "PARTUUID":
			info.PartUUID = value
		case "PARTLABEL":
			info.PartLabel = value
		}
	}

	return info
}

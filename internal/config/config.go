package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

const (
	// DefaultConfigPath is the default location for the config file
	DefaultConfigPath = "/etc/containers/podman-volume-submount.conf"
	// DefaultSocketPath is the default Unix socket path for Podman
	DefaultSocketPath = "/run/podman/plugins/submount.sock"
	// DefaultMountPath is the default base directory for mounting volumes
	DefaultMountPath = "/var/lib/submount/volumes"
	// DefaultResolver is the default device resolver backend
	DefaultResolver = "blkid"
)

// Config holds the plugin configuration
type Config struct {
	// Device is the source spec for the backing filesystem, either a
	// device path or a tag such as UUID=... or LABEL=...
	Device string `toml:"device"`
	// FSType is the backing filesystem type. When empty, the type is
	// probed from the device at startup.
	FSType string `toml:"fstype"`
	// MountPath is the base directory for mounting volumes
	MountPath string `toml:"mount_path"`
	// SocketPath is the Unix socket path for the plugin
	SocketPath string `toml:"socket"`
	// Resolver is the device resolver backend: "blkid" or "udisks"
	Resolver string `toml:"resolver"`
	// RuntimeDir overrides the directory holding the temporary mount
	// target. Empty means the built-in default.
	RuntimeDir string `toml:"runtime_dir"`
}

// Load loads configuration from a TOML file. A missing file is fine for
// the default path only; an explicitly requested file must exist.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && path == DefaultConfigPath {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	return cfg, nil
}

// Merge overlays the set fields of other onto the config, so CLI flags
// take precedence over config file values. Empty fields are ignored.
func (c *Config) Merge(other *Config) {
	if other.Device != "" {
		c.Device = other.Device
	}
	if other.FSType != "" {
		c.FSType = other.FSType
	}
	if other.MountPath != "" {
		c.MountPath = other.MountPath
	}
	if other.SocketPath != "" {
		c.SocketPath = other.SocketPath
	}
	if other.Resolver != "" {
		c.Resolver = other.Resolver
	}
	if other.RuntimeDir != "" {
		c.RuntimeDir = other.RuntimeDir
	}
}

// ApplyDefaults applies default values for any unset fields
func (c *Config) ApplyDefaults() {
	if c.MountPath == "" {
		c.MountPath = DefaultMountPath
	}
	if c.SocketPath == "" {
		c.SocketPath = DefaultSocketPath
	}
	if c.Resolver == "" {
		c.Resolver = DefaultResolver
	}
}

// Validate validates the configuration for plugin use
// Note: device existence is validated at runtime by the resolver
func (c *Config) Validate() error {
	if c.Device == "" {
		return fmt.Errorf("device is required (use --device or set 'device' in config file)")
	}

	if c.Resolver != "blkid" && c.Resolver != "udisks" {
		return fmt.Errorf("resolver must be 'blkid' or 'udisks', got %q", c.Resolver)
	}

	if !filepath.IsAbs(c.MountPath) {
		return fmt.Errorf("mount_path must be absolute, got %q", c.MountPath)
	}

	if !filepath.IsAbs(c.SocketPath) {
		return fmt.Errorf("socket must be absolute, got %q", c.SocketPath)
	}

	if c.RuntimeDir != "" && !filepath.IsAbs(c.RuntimeDir) {
		return fmt.Errorf("runtime_dir must be absolute, got %q", c.RuntimeDir)
	}

	return nil
}

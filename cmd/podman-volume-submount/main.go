package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/docker/go-plugins-helpers/volume"
	"github.com/urfave/cli/v3"

	"github.com/submount/submount/internal/blkid"
	"github.com/submount/submount/internal/config"
	"github.com/submount/submount/internal/driver"
	"github.com/submount/submount/internal/log"
	"github.com/submount/submount/internal/mount"
	"github.com/submount/submount/internal/subdir"
	"github.com/submount/submount/internal/version"
)

func main() {
	cmd := &cli.Command{
		Name:  "podman-volume-submount",
		Usage: "A volume plugin that serves subdirectories of a single block device",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "device",
				Aliases: []string{"d"},
				Usage:   "Backing block device: a path or UUID=, LABEL=, PARTUUID=, PARTLABEL=",
			},
			&cli.StringFlag{
				Name:    "fstype",
				Aliases: []string{"t"},
				Usage:   "Filesystem type of the backing device (default: probed)",
			},
			&cli.StringFlag{
				Name:    "mount-path",
				Aliases: []string{"m"},
				Usage:   "Base directory for mounting volumes",
			},
			&cli.StringFlag{
				Name:    "socket",
				Aliases: []string{"s"},
				Usage:   "Unix socket path for the plugin",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Configuration file path",
				Value:   config.DefaultConfigPath,
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable debug logging",
			},
			&cli.StringFlag{
				Name:    "resolver",
				Aliases: []string{"r"},
				Usage:   "Device resolver: blkid or udisks",
			},
			&cli.StringFlag{
				Name:  "runtime-dir",
				Usage: "Directory holding the hidden mount target",
			},
			&cli.BoolFlag{
				Name:    "version",
				Aliases: []string{"V"},
				Usage:   "Print version information",
			},
		},
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	// Handle version flag
	if cmd.Bool("version") {
		fmt.Println(version.String())
		return nil
	}

	// Setup logging
	log.Setup(cmd.Bool("verbose"))

	// Load config file
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Merge CLI flags (CLI takes precedence)
	cfg.Merge(&config.Config{
		Device:     cmd.String("device"),
		FSType:     cmd.String("fstype"),
		MountPath:  cmd.String("mount-path"),
		SocketPath: cmd.String("socket"),
		Resolver:   cmd.String("resolver"),
		RuntimeDir: cmd.String("runtime-dir"),
	})

	// Apply defaults
	cfg.ApplyDefaults()

	// Validate config
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log.Info("starting volume plugin",
		"device", cfg.Device,
		"mount_path", cfg.MountPath,
		"socket", cfg.SocketPath,
		"resolver", cfg.Resolver,
	)

	// Ensure mount path exists
	if err := os.MkdirAll(cfg.MountPath, 0755); err != nil {
		return fmt.Errorf("create mount path: %w", err)
	}

	// Create components
	res, err := blkid.NewResolver(cfg.Resolver)
	if err != nil {
		return fmt.Errorf("create device resolver: %w", err)
	}
	mounter := mount.NewSyscallMounter()

	// Check the backing device exists and pin down its filesystem type
	device, fstype, err := resolveDevice(res, cfg)
	if err != nil {
		return err
	}

	log.Debug("backing device verified", "device", device, "fstype", fstype)

	var opts []subdir.Option
	if cfg.RuntimeDir != "" {
		opts = append(opts, subdir.WithRuntimeDir(cfg.RuntimeDir))
	}
	sub := subdir.New(opts...)

	// Create driver
	d := driver.NewDriver(
		device,
		fstype,
		cfg.MountPath,
		sub,
		mounter,
	)

	// Create handler
	h := volume.NewHandler(d)

	// Ensure socket directory exists
	socketDir := filepath.Dir(cfg.SocketPath)
	if err := os.MkdirAll(socketDir, 0755); err != nil {
		return fmt.Errorf("create socket directory: %w", err)
	}

	// Remove existing socket if present (stale from previous run)
	if err := os.Remove(cfg.SocketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing socket: %w", err)
	}

	// Clean up socket on exit
	defer func() {
		if err := os.Remove(cfg.SocketPath); err != nil && !os.IsNotExist(err) {
			log.Warn("failed to remove socket on shutdown", "path", cfg.SocketPath, "error", err)
		}
	}()

	log.Info("listening on socket", "path", cfg.SocketPath)
	return h.ServeUnix(cfg.SocketPath, 0)
}

// resolveDevice turns the configured device spec into a device node and
// settles the filesystem type, preferring the configured type over the
// probed one.
func resolveDevice(res blkid.Resolver, cfg *config.Config) (string, string, error) {
	device, err := res.Resolve(cfg.Device)
	if err != nil {
		if errors.Is(err, blkid.ErrNotFound) {
			return "", "", fmt.Errorf("device %s not found", cfg.Device)
		}
		return "", "", fmt.Errorf("resolve device: %w", err)
	}

	fstype := cfg.FSType
	info, err := res.Probe(device)
	switch {
	case err == nil:
		if fstype == "" {
			fstype = info.Type
		} else if info.Type != "" && info.Type != fstype {
			log.Warn("configured fstype differs from probed filesystem",
				"device", device, "configured", fstype, "probed", info.Type)
		}
	case errors.Is(err, blkid.ErrNotFound):
		log.Warn("device carries no recognizable filesystem signature", "device", device)
	default:
		return "", "", fmt.Errorf("probe device: %w", err)
	}

	if fstype == "" {
		return "", "", fmt.Errorf(
			"cannot determine filesystem type of %s (use --fstype or set 'fstype' in config file)", device)
	}

	return device, fstype, nil
}

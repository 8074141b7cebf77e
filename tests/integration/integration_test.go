//go:build integration

package integration

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/submount/submount/tests/integration/driverclient"
	"github.com/submount/submount/tests/integration/log"
	"github.com/submount/submount/tests/integration/vm"
)

const (
	socketPath    = "/run/podman/plugins/submount.sock"
	configPath    = "/etc/containers/podman-volume-submount.conf"
	mountBasePath = "/mnt/volumes"

	// The VM image provides /dev/loop0 as a scratch block device; setup
	// formats it with the backing filesystem all volumes live on.
	backingDevice     = "/dev/loop0"
	backingLabel      = "submount-test"
	backingScratchDir = "/tmp/submount-backing"

	// Where the plugin parks the backing filesystem while extracting a
	// subdirectory. Never allowed to stay mounted.
	tmpTargetPath = "/run/submount/tmptgt"

	systemdWaitTimeout = 30 * time.Second
	socketWaitTimeout  = 30 * time.Second
)

var (
	testVM     vm.VM
	testClient driverclient.DriverClient
)

// TestMain sets up a shared VM for all integration tests
func TestMain(m *testing.M) {
	// Handle interrupt signals for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fatalf("\nInterrupted, shutting down...")
	}()

	// Start VM
	ctx := context.Background()
	var err error
	testVM, err = vm.StartQEMUVM(ctx)
	if err != nil {
		fatalf("Failed to start VM: %v", err)
	}

	setupVM(ctx, testVM)

	// Create driver client
	testClient = driverclient.NewVMSocketDriverClient(testVM, socketPath)

	log.Status("Running tests...")

	// Run tests
	code := m.Run()

	// Cleanup and exit
	testVM.Stop()
	os.Exit(code)
}

// fatalf prints a formatted error message to stderr and exits with code 1.
// Use this in TestMain or setup code where *testing.T is not available.
func fatalf(format string, args ...any) {
	log.Status(format, args...)
	if testVM != nil {
		testVM.Stop()
	}
	os.Exit(1)
}

// waitForSystemdUnit polls until a systemd unit is active or timeout is reached.
func waitForSystemdUnit(v vm.VM, unit string) error {
	deadline := time.Now().Add(systemdWaitTimeout)
	for time.Now().Before(deadline) {
		if output, _ := v.Run(fmt.Sprintf("systemctl is-active %s", unit)); output == "active\n" {
			return nil
		}
		time.Sleep(500 * time.Millisecond)
	}
	return fmt.Errorf("%s service not active after %v", unit, systemdWaitTimeout)
}

func waitForSocket(v vm.VM, path string) error {
	deadline := time.Now().Add(socketWaitTimeout)
	for time.Now().Before(deadline) {
		if output, _ := v.Run(fmt.Sprintf("sudo test -S %s && echo -n ok", path)); output == "ok" {
			return nil
		}
		time.Sleep(500 * time.Millisecond)
	}
	return fmt.Errorf("plugin socket %s not created within %v", socketPath, socketWaitTimeout)
}

// installFile copies a local file into the VM and installs it at the given
// path with the given mode, via sudo
func installFile(v vm.VM, localPath, remotePath, mode string) error {
	staging := "/tmp/" + filepath.Base(remotePath)
	if err := v.CopyFile(localPath, staging); err != nil {
		return fmt.Errorf("copy %s: %w", localPath, err)
	}
	if output, err := v.Run(fmt.Sprintf("sudo install -D -m %s %s %s", mode, staging, remotePath)); err != nil {
		return fmt.Errorf("install %s: %w: %s", remotePath, err, output)
	}
	return nil
}

func setupVM(ctx context.Context, v vm.VM) {
	// Locate the binaries to test
	pluginBinary := os.Getenv("PLUGIN_BINARY")
	if pluginBinary == "" {
		pluginBinary = "../../build/dist/podman-volume-submount"
	}
	cliBinary := os.Getenv("SUBMOUNT_BINARY")
	if cliBinary == "" {
		cliBinary = "../../build/dist/submount"
	}

	for _, path := range []string{pluginBinary, cliBinary} {
		if _, err := os.Stat(path); err != nil {
			fatalf("Binary not found at %s. Run 'make build' first.", path)
		}
	}

	// Wait for SSH
	if err := v.WaitForSSH(ctx); err != nil {
		fatalf("Failed waiting for SSH: %v", err)
	}

	// Create the backing filesystem on the scratch block device
	log.Status("Formatting backing filesystem...")
	cmd := fmt.Sprintf("sudo mkfs.ext4 -q -F -L %s %s", backingLabel, backingDevice)
	if output, err := v.Run(cmd); err != nil {
		fatalf("Failed to format backing device: %v\n%s", err, output)
	}

	// Write the plugin configuration. The device is given by label so the
	// daemon exercises tag resolution at startup; fstype is left out so it
	// gets probed.
	log.Status("Writing plugin configuration...")
	conf := fmt.Sprintf("device = %q\nmount_path = %q\nsocket = %q\n",
		"LABEL="+backingLabel, mountBasePath, socketPath)
	if err := v.WriteFile("/tmp/submount.conf", []byte(conf), 0644); err != nil {
		fatalf("Failed to write config: %v", err)
	}
	if output, err := v.Run(fmt.Sprintf("sudo install -D -m 0644 /tmp/submount.conf %s", configPath)); err != nil {
		fatalf("Failed to install config: %v\n%s", err, output)
	}

	// Install both binaries
	log.Status("Installing binaries on VM...")
	if err := installFile(v, pluginBinary, "/usr/local/bin/podman-volume-submount", "0755"); err != nil {
		fatalf("Failed to install plugin binary: %v", err)
	}
	if err := installFile(v, cliBinary, "/usr/local/bin/submount", "0755"); err != nil {
		fatalf("Failed to install submount binary: %v", err)
	}

	// Start plugin via systemd
	log.Status("Starting plugin service...")
	if output, err := v.Run("sudo systemctl start podman-volume-submount"); err != nil {
		fatalf("Failed to start plugin service: %v\n%s", err, output)
	}

	// Wait for plugin to be ready
	log.Status("Waiting for plugin service to be ready...")
	if err := waitForSystemdUnit(v, "podman-volume-submount"); err != nil {
		fatalf("Failed to wait for the plugin: %v", err)
	}
	log.Status("Waiting for plugin socket...")
	if err := waitForSocket(v, socketPath); err != nil {
		fatalf("Failed to wait for the plugin: %v", err)
	}
}

//go:build integration

package integration

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/submount/submount/tests/integration/driverclient"
)

// uniqueVolumeName generates a unique volume name for a test
func uniqueVolumeName(t *testing.T) string {
	name := fmt.Sprintf("test-%s-%d", t.Name(), time.Now().UnixNano()%10000)
	// Subtest names carry slashes, which volume names cannot
	return strings.ReplaceAll(name, "/", "-")
}

// withBackingFS mounts the backing filesystem at a scratch path, runs the
// given shell commands against it, and unmounts again, returning the last
// command's output. This is the out-of-band view of the volume store: the
// plugin itself never exposes the backing filesystem root.
func withBackingFS(t *testing.T, cmds ...string) string {
	t.Helper()

	mountCmd := fmt.Sprintf("sudo mkdir -p %s && sudo mount %s %s",
		backingScratchDir, backingDevice, backingScratchDir)
	output, err := testVM.Run(mountCmd)
	require.NoError(t, err, "mount backing filesystem: %s", output)

	defer func() {
		_, _ = testVM.Run(fmt.Sprintf("sudo umount %s", backingScratchDir))
	}()

	var last string
	for _, cmd := range cmds {
		output, err := testVM.Run(cmd)
		require.NoError(t, err, "command %q failed: %s", cmd, output)
		last = output
	}
	return last
}

// cleanupVolume registers cleanup for a volume at test end
func cleanupVolume(t *testing.T, name string) {
	t.Cleanup(func() {
		// Unmount if mounted
		_, _ = testVM.Run(fmt.Sprintf("sudo umount %s/%s 2>/dev/null || true", mountBasePath, name))
		// Remove the volume directory out of band
		_, _ = testVM.Run(fmt.Sprintf(
			"sudo mkdir -p %[1]s && sudo mount %[2]s %[1]s && sudo rm -rf %[1]s/%[3]s; sudo umount %[1]s",
			backingScratchDir, backingDevice, name))
	})
}

// assertVolumeExists verifies a volume exists using Get
func assertVolumeExists(t *testing.T, name string) *driverclient.Volume {
	t.Helper()
	vol, err := testClient.Get(name)
	require.NoError(t, err, "volume %s should exist", name)
	require.NotNil(t, vol, "volume %s should not be nil", name)
	require.Equal(t, name, vol.Name, "volume name should match")
	return vol
}

// assertVolumeNotExists verifies a volume does not exist using Get
func assertVolumeNotExists(t *testing.T, name string) {
	t.Helper()
	_, err := testClient.Get(name)
	require.Error(t, err, "volume %s should not exist", name)
}

// assertVolumeInList verifies a volume appears in List
func assertVolumeInList(t *testing.T, name string) *driverclient.Volume {
	t.Helper()
	volumes, err := testClient.List()
	require.NoError(t, err, "list should succeed")

	for _, v := range volumes {
		if v.Name == name {
			return v
		}
	}
	t.Fatalf("volume %s not found in list", name)
	return nil
}

// assertVolumeNotInList verifies a volume does not appear in List
func assertVolumeNotInList(t *testing.T, name string) {
	t.Helper()
	volumes, err := testClient.List()
	require.NoError(t, err, "list should succeed")

	for _, v := range volumes {
		if v.Name == name {
			t.Fatalf("volume %s should not be in list", name)
		}
	}
}

// assertVolumeMounted verifies a volume is mounted at expected path using Get
func assertVolumeMounted(t *testing.T, name string, expectedPath string) {
	t.Helper()
	vol := assertVolumeExists(t, name)
	require.Equal(t, expectedPath, vol.Mountpoint, "volume should be mounted at %s", expectedPath)
}

// assertVolumeNotMounted verifies a volume is not mounted using Get
func assertVolumeNotMounted(t *testing.T, name string) {
	t.Helper()
	vol := assertVolumeExists(t, name)
	require.Empty(t, vol.Mountpoint, "volume should not be mounted")
}

// assertNoResidualTmpTarget verifies the temporary target is not mounted.
// Every pipeline run, successful or not, must tear it down.
func assertNoResidualTmpTarget(t *testing.T) {
	t.Helper()
	output, _ := testVM.Run(fmt.Sprintf("grep -c ' %s ' /proc/mounts || true", tmpTargetPath))
	require.Equal(t, "0\n", output, "temporary target still mounted")
}

// createVolume is a helper that creates a volume and registers cleanup
func createVolume(t *testing.T, name string, opts map[string]string) {
	t.Helper()
	cleanupVolume(t, name)
	err := testClient.Create(name, opts)
	require.NoError(t, err, "create volume %s should succeed", name)
}

// expectedMountPath returns the expected mount path for a volume
func expectedMountPath(name string) string {
	return fmt.Sprintf("%s/%s", mountBasePath, name)
}

//go:build integration

package integration

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMount_NonExistent(t *testing.T) {
	_, err := testClient.Mount("nonexistent-volume-12345", "test-container-1")
	assert.Error(t, err, "mount nonexistent volume should fail")

	// A failed mount must still tear the hidden target down
	assertNoResidualTmpTarget(t)
}

func TestMount_AlreadyMounted(t *testing.T) {
	name := uniqueVolumeName(t)
	cleanupVolume(t, name)

	// Create and mount
	createVolume(t, name, nil)

	mountpoint1, err := testClient.Mount(name, "container-1")
	require.NoError(t, err)

	// Mount again with same container ID (should be idempotent)
	mountpoint2, err := testClient.Mount(name, "container-1")
	require.NoError(t, err)
	assert.Equal(t, mountpoint1, mountpoint2, "remount should return same path")

	// Cleanup
	_ = testClient.Unmount(name, "container-1")
}

func TestMount_OnlySubdirVisible(t *testing.T) {
	name := uniqueVolumeName(t)
	createVolume(t, name, nil)

	// Plant a file in the volume and another at the backing root
	withBackingFS(t,
		fmt.Sprintf("echo inside | sudo tee %s/%s/marker.txt", backingScratchDir, name),
		fmt.Sprintf("echo outside | sudo tee %s/root-marker.txt", backingScratchDir),
	)

	mountpoint, err := testClient.Mount(name, "container-1")
	require.NoError(t, err)
	defer func() { _ = testClient.Unmount(name, "container-1") }()

	// The volume's own file is there
	output, err := testVM.Run(fmt.Sprintf("cat %s/marker.txt", mountpoint))
	require.NoError(t, err)
	assert.Contains(t, output, "inside")

	// The backing root is not reachable through the mountpoint
	output, _ = testVM.Run(fmt.Sprintf("ls %s", mountpoint))
	assert.NotContains(t, output, "root-marker.txt", "backing root leaked into the volume mount")
}

func TestMount_NoResidualTmpTarget(t *testing.T) {
	name := uniqueVolumeName(t)
	createVolume(t, name, nil)

	_, err := testClient.Mount(name, "container-1")
	require.NoError(t, err)

	assertNoResidualTmpTarget(t)

	// The backing device appears in the mount table only at the volume
	// mountpoint, nowhere else
	output, _ := testVM.Run(fmt.Sprintf("grep %s /proc/mounts | grep -cv ' %s/' || true", backingDevice, mountBasePath))
	assert.Equal(t, "0\n", output, "backing device mounted outside the volume tree")

	_ = testClient.Unmount(name, "container-1")
}

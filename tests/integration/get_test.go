//go:build integration

package integration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet_NonExistent(t *testing.T) {
	_, err := testClient.Get("nonexistent-volume-12345")
	assert.Error(t, err, "get nonexistent volume should fail")
}

func TestGet_Status(t *testing.T) {
	name := uniqueVolumeName(t)
	createVolume(t, name, nil)

	vol := assertVolumeExists(t, name)

	// CreatedAt comes from the directory timestamp
	_, err := time.Parse(time.RFC3339, vol.CreatedAt)
	require.NoError(t, err, "CreatedAt should be RFC3339, got %q", vol.CreatedAt)

	// Status reports the shared backing filesystem capacity
	require.NotNil(t, vol.Status, "status should be populated")
	assert.NotEmpty(t, vol.Status["device"], "status should name the backing device")
	for _, key := range []string{"total", "used", "free"} {
		assert.Contains(t, vol.Status, key, "status should report %s space", key)
	}
}

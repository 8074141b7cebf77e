//go:build integration

package integration

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreate_InvalidName_Empty(t *testing.T) {
	err := testClient.Create("", nil)
	assert.Error(t, err, "create with empty name should fail")
}

func TestCreate_InvalidName_TooLong(t *testing.T) {
	name := strings.Repeat("a", 256) // MaxNameLength is 255
	err := testClient.Create(name, nil)
	assert.Error(t, err, "create with name exceeding 255 chars should fail")
}

func TestCreate_InvalidName_SingleChar(t *testing.T) {
	err := testClient.Create("a", nil)
	assert.Error(t, err, "single character name should fail (min is 2)")
}

func TestCreate_InvalidName_SpecialChars(t *testing.T) {
	invalidNames := []string{
		"test/volume",
		"test:volume",
		"test\\volume",
		"../test",
		"lost+found",
		".hidden",
	}

	for _, name := range invalidNames {
		t.Run(name, func(t *testing.T) {
			err := testClient.Create(name, nil)
			assert.Error(t, err, "create with invalid name %q should fail", name)
		})
	}
}

func TestCreate_Duplicate(t *testing.T) {
	name := uniqueVolumeName(t)
	cleanupVolume(t, name)

	// Create first volume
	err := testClient.Create(name, nil)
	require.NoError(t, err, "first create should succeed")

	// Try to create duplicate - driver returns error for duplicates
	err = testClient.Create(name, nil)
	assert.Error(t, err, "duplicate create should fail")
}

func TestCreate_ValidName_MinLength(t *testing.T) {
	name := "ab" // Exactly 2 chars (minimum)
	cleanupVolume(t, name)
	err := testClient.Create(name, nil)
	require.NoError(t, err, "2 char name should succeed")
	_ = testClient.Remove(name)
}

func TestCreate_ValidName_MaxLength(t *testing.T) {
	name := strings.Repeat("a", 255) // Exactly MaxNameLength, also ext4's NAME_MAX
	cleanupVolume(t, name)
	err := testClient.Create(name, nil)
	require.NoError(t, err, "255 char name should succeed")
	_ = testClient.Remove(name)
}

func TestCreate_WithMode(t *testing.T) {
	name := uniqueVolumeName(t)
	createVolume(t, name, map[string]string{"mode": "0700"})

	// The permission bits are on the volume directory, visible out of band
	output := withBackingFS(t, fmt.Sprintf("sudo stat -c %%a %s/%s", backingScratchDir, name))
	assert.Equal(t, "700\n", output, "volume directory should have mode 0700")
}

func TestCreate_InvalidMode(t *testing.T) {
	name := uniqueVolumeName(t)
	cleanupVolume(t, name)

	err := testClient.Create(name, map[string]string{"mode": "rwx"})
	assert.Error(t, err, "create with unparseable mode should fail")
}

func TestCreate_LeavesNothingMounted(t *testing.T) {
	name := uniqueVolumeName(t)
	createVolume(t, name, nil)

	// The backing filesystem was only ever mounted inside the private
	// namespace window
	assertNoResidualTmpTarget(t)
	_ = testClient.Remove(name)
}

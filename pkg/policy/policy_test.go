package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storagebroker/service/pkg/errs"
	"github.com/storagebroker/service/pkg/types"
)

func TestParseScope(t *testing.T) {
	s, err := ParseScope("rclone", "User")
	require.NoError(t, err)
	assert.Equal(t, types.ScopeUser, s)

	_, err = ParseScope("rclone", "Bogus")
	require.Error(t, err)
	assert.Equal(t, errs.InvalidArgs, errs.As(err))
}

func TestValidateRemoteName(t *testing.T) {
	assert.NoError(t, ValidateRemoteName("rclone", "my-backup_1"))
	assert.Error(t, ValidateRemoteName("rclone", ""))
	assert.Error(t, ValidateRemoteName("rclone", "has space"))
	assert.Error(t, ValidateRemoteName("rclone", "slash/in/name"))
}

func TestDeviceIdentity_Matches(t *testing.T) {
	id := DeviceIdentity{Device: "/dev/sda", ID: "stable-id-1", ObjectPath: "/org/storagebroker/Service1/Disks/sda"}

	assert.True(t, id.Matches("/dev/sda"))
	assert.True(t, id.Matches("sda"))
	assert.True(t, id.Matches("stable-id-1"))
	assert.True(t, id.Matches("/org/storagebroker/Service1/Disks/sda"))
	assert.False(t, id.Matches("sdb"))
	assert.False(t, id.Matches(""))
}

func TestFindDevice(t *testing.T) {
	type disk struct {
		dev string
	}
	disks := []disk{{dev: "/dev/sda"}, {dev: "/dev/sdb"}}
	identity := func(d disk) DeviceIdentity { return DeviceIdentity{Device: d.dev} }

	found, err := FindDevice("disks", "sdb", disks, identity)
	require.NoError(t, err)
	assert.Equal(t, "/dev/sdb", found.dev)

	_, err = FindDevice("disks", "sdz", disks, identity)
	require.Error(t, err)
	assert.Equal(t, errs.NotFound, errs.As(err))
}

func TestStableDedupTokens(t *testing.T) {
	got := StableDedupTokens([]string{"noauto", "x-gvfs-show"}, []string{"noauto", "rw", ""})
	assert.Equal(t, []string{"noauto", "x-gvfs-show", "rw"}, got)
}

func TestActionName(t *testing.T) {
	assert.Equal(t, "org.storagebroker.filesystem-format", ActionName("filesystem", "format"))
}

package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storagebroker/service/pkg/adapter/udisks"
	"github.com/storagebroker/service/pkg/auth"
	"github.com/storagebroker/service/pkg/errs"
	"github.com/storagebroker/service/pkg/policy"
)

func newTestLogical(t *testing.T, daemon *udisks.Fake, denied ...string) *Logical {
	t.Helper()
	backend := auth.NewStubBackend()
	for _, a := range denied {
		backend.Denied[a] = true
	}
	return NewLogical(daemon, auth.New(backend, auth.StaticResolver{UID: 1000}))
}

func newTestBtrfs(t *testing.T, daemon *udisks.Fake, denied ...string) *Btrfs {
	t.Helper()
	backend := auth.NewStubBackend()
	for _, a := range denied {
		backend.Denied[a] = true
	}
	return NewBtrfs(daemon, auth.New(backend, auth.StaticResolver{UID: 1000}))
}

func TestLogical_CreateDeleteLogicalVolume(t *testing.T) {
	daemon := udisks.NewFake()
	h := newTestLogical(t, daemon)

	lv, err := h.CreateLogicalVolume(context.Background(), "/org/storagebroker/Service1/VG/data", "home", 10<<30)
	require.NoError(t, err)
	require.NoError(t, h.ActivateLogicalVolume(context.Background(), lv.ObjectPath))
	require.NoError(t, h.DeleteLogicalVolume(context.Background(), lv.ObjectPath))
}

func TestLogical_RequestSyncAction_ValidatesAction(t *testing.T) {
	daemon := udisks.NewFake()
	h := newTestLogical(t, daemon)

	_, err := h.RequestSyncAction(context.Background(), "/org/storagebroker/Service1/MD/md0", "bogus")
	require.Error(t, err)
	assert.Equal(t, errs.InvalidArgs, errs.As(err))
}

func TestLogical_StartArray_DeniedByGate(t *testing.T) {
	daemon := udisks.NewFake()
	h := newTestLogical(t, daemon, policy.ActionName(logicalDomain, "start-array"))

	err := h.StartArray(context.Background(), "/org/storagebroker/Service1/MD/md0")
	require.Error(t, err)
	assert.Equal(t, errs.NotAuthorized, errs.As(err))
}

func TestBtrfs_SubvolumeLifecycle(t *testing.T) {
	daemon := udisks.NewFake()
	h := newTestBtrfs(t, daemon)
	ctx := context.Background()

	require.NoError(t, h.CreateSubvolume(ctx, "/org/storagebroker/Service1/Volumes/sda1", "snapshots"))

	subs, err := h.ListSubvolumes(ctx, "/mnt/data")
	require.NoError(t, err)
	assert.Empty(t, subs)

	require.NoError(t, h.SetDefaultSubvolume(ctx, "/mnt/data", "snapshots"))
	def, err := h.GetDefaultSubvolume(ctx, "/mnt/data")
	require.NoError(t, err)
	assert.Equal(t, "snapshots", def)
}

func TestBtrfs_DeleteSubvolume_DeniedByGate(t *testing.T) {
	daemon := udisks.NewFake()
	h := newTestBtrfs(t, daemon, policy.ActionName(btrfsDomain, "delete-subvolume"))

	err := h.DeleteSubvolume(context.Background(), "/org/storagebroker/Service1/Volumes/sda1", "snapshots")
	require.Error(t, err)
	assert.Equal(t, errs.NotAuthorized, errs.As(err))
}

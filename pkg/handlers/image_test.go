package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storagebroker/service/pkg/adapter/udisks"
	"github.com/storagebroker/service/pkg/auth"
	"github.com/storagebroker/service/pkg/errs"
	"github.com/storagebroker/service/pkg/imageengine"
	"github.com/storagebroker/service/pkg/policy"
	"github.com/storagebroker/service/pkg/signalbus"
)

func newTestImage(t *testing.T, denied ...string) *Image {
	t.Helper()
	daemon := udisks.NewFake()
	bus := signalbus.New()
	bus.Start()
	t.Cleanup(bus.Stop)

	engine, err := imageengine.New(daemon, bus, nil)
	require.NoError(t, err)

	backend := auth.NewStubBackend()
	for _, action := range denied {
		backend.Denied[action] = true
	}
	gate := auth.New(backend, auth.StaticResolver{UID: 1000})
	return NewImage(engine, gate)
}

func TestImage_BackupDrive_DeniedByGate(t *testing.T) {
	h := newTestImage(t, policy.ActionName(imageDomain, "backup-drive"))

	_, err := h.BackupDrive(context.Background(), "/org/storagebroker/Service1/Disks/sda", "/tmp/out.img")
	require.Error(t, err)
	assert.Equal(t, errs.NotAuthorized, errs.As(err))
}

func TestImage_CancelOperation_UnknownIsNotFound(t *testing.T) {
	h := newTestImage(t)

	err := h.CancelOperation(context.Background(), "does-not-exist")
	require.Error(t, err)
	assert.Equal(t, errs.NotFound, errs.As(err))
}

func TestImage_GetOperationStatus_IsUngated(t *testing.T) {
	h := newTestImage(t, policy.ActionName(imageDomain, "backup-drive"))

	_, err := h.GetOperationStatus("does-not-exist")
	require.Error(t, err)
	assert.Equal(t, errs.NotFound, errs.As(err))
	assert.Empty(t, h.ListActiveOperations())
}

package handlers

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storagebroker/service/pkg/adapter/udisks"
	"github.com/storagebroker/service/pkg/auth"
	"github.com/storagebroker/service/pkg/errs"
	"github.com/storagebroker/service/pkg/metrics"
	"github.com/storagebroker/service/pkg/signalbus"
	"github.com/storagebroker/service/pkg/types"
)

func newTestLuks(t *testing.T, daemon *udisks.Fake, sys *fakeSys) *Luks {
	t.Helper()
	gate := auth.New(auth.NewStubBackend(), auth.StaticResolver{UID: 1000})
	bus := signalbus.New()
	bus.Start()
	t.Cleanup(bus.Stop)
	return NewLuks(daemon, sys, gate, bus)
}

func TestLuks_FormatRejectsUnknownVersion(t *testing.T) {
	daemon := udisks.NewFake()
	seedVolume(daemon)
	h := newTestLuks(t, daemon, newFakeSys())

	_, err := h.Format(context.Background(), "sda1", "hunter2", "luks3")
	require.Error(t, err)
	assert.Equal(t, errs.InvalidArgs, errs.As(err))
}

func TestLuks_FormatUnlockLockRoundTrip(t *testing.T) {
	daemon := udisks.NewFake()
	seedVolume(daemon)
	h := newTestLuks(t, daemon, newFakeSys())

	container, err := h.Format(context.Background(), "sda1", "hunter2", "luks2")
	require.NoError(t, err)
	assert.Equal(t, types.VariantCryptoContainer, container.Variant)

	before := testutil.ToFloat64(metrics.UnlockedContainersTotal)

	cleartext, err := h.Unlock(context.Background(), "sda1", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "/dev/sda1_crypt", cleartext)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.UnlockedContainersTotal))

	require.NoError(t, h.Lock(context.Background(), cleartext))
	assert.Equal(t, before, testutil.ToFloat64(metrics.UnlockedContainersTotal))
}

func TestLuks_SetEncryptionOptions_PersistsMarker(t *testing.T) {
	daemon := udisks.NewFake()
	seedVolume(daemon)
	sys := newFakeSys()
	h := newTestLuks(t, daemon, sys)

	err := h.SetEncryptionOptions(context.Background(), "sda1", types.EncryptionOptionsSettings{AuthRequired: true}, []string{"luks"})
	require.NoError(t, err)

	got, err := h.GetEncryptionOptions(context.Background(), "sda1")
	require.NoError(t, err)
	assert.Equal(t, []string{"/dev/sda1", "x-storagebroker-auth", "luks"}, got.RawOptions)
}

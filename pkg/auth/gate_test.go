package auth

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storagebroker/service/pkg/errs"
	"github.com/storagebroker/service/pkg/metrics"
)

func TestGate_Authorize_Success(t *testing.T) {
	g := New(NewStubBackend(), StaticResolver{UID: 1000})
	info, err := g.Authorize(context.Background(), "filesystems", "filesystem-format")
	require.NoError(t, err)
	assert.EqualValues(t, 1000, info.UID)
	assert.Equal(t, "filesystem-format", info.Action)
}

func TestGate_Authorize_Denied(t *testing.T) {
	backend := NewStubBackend()
	backend.Denied["disk-restore"] = true
	g := New(backend, StaticResolver{UID: 1000})

	_, err := g.Authorize(context.Background(), "image", "disk-restore")
	require.Error(t, err)
	assert.Equal(t, errs.NotAuthorized, errs.As(err))
}

func TestGate_Authorize_InteractiveUnresolvedIsDenied(t *testing.T) {
	backend := NewStubBackend()
	backend.AlwaysPrompt["disk-power-off"] = true
	g := New(backend, StaticResolver{UID: 1000})

	_, err := g.Authorize(context.Background(), "disks", "disk-power-off")
	require.Error(t, err)
	assert.Equal(t, errs.NotAuthorized, errs.As(err))
}

type erroringResolver struct{}

func (erroringResolver) CallerUID(context.Context) (uint32, error) {
	return 0, assertErr
}

var assertErr = assertError("resolver failure")

type assertError string

func (a assertError) Error() string { return string(a) }

func TestGate_Authorize_ResolverFailureIsInternal(t *testing.T) {
	g := New(NewStubBackend(), erroringResolver{})
	_, err := g.Authorize(context.Background(), "disks", "disk-read")
	require.Error(t, err)
	assert.Equal(t, errs.Internal, errs.As(err))
}

// TestGate_Authorize_RecordsMetrics exercises the Gate's own metrics
// wiring (the real caller of metrics.NewTimer) rather than the timer
// mechanics in isolation: every call, allowed or denied, bumps
// HandlerCallsTotal and times HandlerCallDuration, and a denial also
// bumps AuthDenialsTotal.
func TestGate_Authorize_RecordsMetrics(t *testing.T) {
	backend := NewStubBackend()
	backend.Denied["disk-eject"] = true
	g := New(backend, StaticResolver{UID: 1000})

	callsBefore := testutil.ToFloat64(metrics.HandlerCallsTotal.WithLabelValues("disks", "disk-eject", "denied"))
	denialsBefore := testutil.ToFloat64(metrics.AuthDenialsTotal.WithLabelValues("disk-eject"))

	_, err := g.Authorize(context.Background(), "disks", "disk-eject")
	require.Error(t, err)

	assert.Equal(t, callsBefore+1, testutil.ToFloat64(metrics.HandlerCallsTotal.WithLabelValues("disks", "disk-eject", "denied")))
	assert.Equal(t, denialsBefore+1, testutil.ToFloat64(metrics.AuthDenialsTotal.WithLabelValues("disk-eject")))
}

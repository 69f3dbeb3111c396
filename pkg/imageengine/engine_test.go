package imageengine

import (
	"bytes"
	"context"
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storagebroker/service/pkg/adapter"
	"github.com/storagebroker/service/pkg/errs"
	"github.com/storagebroker/service/pkg/signalbus"
)

// fakeDaemon backs only the image-engine entry points; every other
// BlockDaemon method panics if called, since the engine never touches
// them.
type fakeDaemon struct {
	adapter.BlockDaemon
	source     []byte
	restored   *bytes.Buffer
	destSize   uint64
	backupErr  error
	restoreErr error
}

func (f *fakeDaemon) OpenForBackup(ctx context.Context, objectPath string) (io.ReadCloser, uint64, error) {
	if f.backupErr != nil {
		return nil, 0, f.backupErr
	}
	return io.NopCloser(bytes.NewReader(f.source)), uint64(len(f.source)), nil
}

func (f *fakeDaemon) OpenForRestore(ctx context.Context, objectPath string) (io.WriteCloser, uint64, error) {
	if f.restoreErr != nil {
		return nil, 0, f.restoreErr
	}
	return nopWriteCloser{f.restored}, f.destSize, nil
}

type nopWriteCloser struct{ w io.Writer }

func (n nopWriteCloser) Write(p []byte) (int, error) { return n.w.Write(p) }
func (n nopWriteCloser) Close() error                 { return nil }

func knownBytes(n int) []byte {
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = byte(i % 251)
	}
	return buf
}

func waitForSignal(t *testing.T, sub signalbus.Subscriber, name signalbus.Name) *signalbus.Signal {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case sig := <-sub:
			if sig.Name == name {
				return sig
			}
		case <-deadline:
			t.Fatalf("timed out waiting for signal %s", name)
		}
	}
}

// TestEngine_BackupDrive_CompletesAndForgetsOperation verifies that a
// 10 MiB known-byte backup runs to completion, OperationCompleted(id,
// true, "") fires, and GetOperationStatus(id) returns NotFound
// immediately afterward.
func TestEngine_BackupDrive_CompletesAndForgetsOperation(t *testing.T) {
	const size = 10 * 1024 * 1024
	source := knownBytes(size)

	bus := signalbus.New()
	bus.Start()
	defer bus.Stop()
	sub := bus.Subscribe()
	defer bus.Unsubscribe(sub)

	daemon := &fakeDaemon{source: source}
	eng, err := New(daemon, bus, nil)
	require.NoError(t, err)

	dir := t.TempDir()
	dest := dir + "/backup.img"

	id, err := eng.BackupDrive(context.Background(), "/org/storagebroker/Service1/Disks/sda", dest)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	started := waitForSignal(t, sub, signalbus.OperationStarted)
	require.Equal(t, id, started.Args[0])

	var last *signalbus.Signal
	deadline := time.After(5 * time.Second)
loop:
	for {
		select {
		case sig := <-sub:
			if sig.Name == signalbus.OperationProgress {
				last = sig
			}
			if sig.Name == signalbus.OperationCompleted {
				last = sig
				break loop
			}
		case <-deadline:
			t.Fatal("timed out waiting for OperationCompleted")
		}
	}

	require.Equal(t, signalbus.OperationCompleted, last.Name)
	assert.Equal(t, id, last.Args[0])
	assert.Equal(t, true, last.Args[1])
	assert.Equal(t, "", last.Args[2])

	_, statusErr := eng.GetOperationStatus(id)
	require.Error(t, statusErr)
	assert.Equal(t, errs.NotFound, errs.As(statusErr))

	written, err := readFile(dest)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(source, written), "destination bytes must match source exactly")

	assert.Empty(t, eng.ListActiveOperations())
}

// TestEngine_RestoreDrive_CompletesWhenImageFitsDestination verifies a
// restore whose image is no larger than the destination device runs to
// completion and writes the image bytes through.
func TestEngine_RestoreDrive_CompletesWhenImageFitsDestination(t *testing.T) {
	const size = 4 * 1024 * 1024
	image := knownBytes(size)

	bus := signalbus.New()
	bus.Start()
	defer bus.Stop()
	sub := bus.Subscribe()
	defer bus.Unsubscribe(sub)

	dir := t.TempDir()
	imagePath := dir + "/restore.img"
	require.NoError(t, os.WriteFile(imagePath, image, 0o644))

	restored := &bytes.Buffer{}
	daemon := &fakeDaemon{restored: restored, destSize: size}
	eng, err := New(daemon, bus, nil)
	require.NoError(t, err)

	id, err := eng.RestoreDrive(context.Background(), "/org/storagebroker/Service1/Disks/sda", imagePath)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	waitForSignal(t, sub, signalbus.OperationCompleted)
	assert.True(t, bytes.Equal(image, restored.Bytes()), "destination bytes must match image exactly")
}

// TestEngine_RestoreDrive_FailsFastWhenImageExceedsDestination verifies
// that an oversized image is rejected before any operation is
// registered or any byte is copied.
func TestEngine_RestoreDrive_FailsFastWhenImageExceedsDestination(t *testing.T) {
	const imageSize = 4 * 1024 * 1024
	const destSize = imageSize - 1
	image := knownBytes(imageSize)

	bus := signalbus.New()
	bus.Start()
	defer bus.Stop()

	dir := t.TempDir()
	imagePath := dir + "/restore.img"
	require.NoError(t, os.WriteFile(imagePath, image, 0o644))

	restored := &bytes.Buffer{}
	daemon := &fakeDaemon{restored: restored, destSize: destSize}
	eng, err := New(daemon, bus, nil)
	require.NoError(t, err)

	id, err := eng.RestoreDrive(context.Background(), "/org/storagebroker/Service1/Disks/sda", imagePath)
	require.Error(t, err)
	assert.Empty(t, id)
	assert.Equal(t, errs.InvalidArgs, errs.As(err))
	assert.Zero(t, restored.Len(), "no bytes should be written when the image exceeds the destination")
	assert.Empty(t, eng.ListActiveOperations())
}

func TestEngine_CancelOperation_UnknownIDIsNotFound(t *testing.T) {
	bus := signalbus.New()
	bus.Start()
	defer bus.Stop()

	eng, err := New(&fakeDaemon{}, bus, nil)
	require.NoError(t, err)

	err = eng.CancelOperation("does-not-exist")
	require.Error(t, err)
	assert.Equal(t, errs.NotFound, errs.As(err))
}

func readFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// Package imageengine implements the long-running backup/restore
// operations: a registry of in-flight operations keyed by a generated
// id, each with its own cancellation function and a shared,
// mutex-guarded progress record, backed by a chunked-copy goroutine.
// The registry is a map[string]*operation, each entry holding its own
// context.CancelFunc; progress is pushed as signals from the copy loop.
package imageengine

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/storagebroker/service/pkg/adapter"
	"github.com/storagebroker/service/pkg/errs"
	"github.com/storagebroker/service/pkg/log"
	"github.com/storagebroker/service/pkg/metrics"
	"github.com/storagebroker/service/pkg/signalbus"
	"github.com/storagebroker/service/pkg/types"
)

const chunkSize = 4 << 20 // 4 MiB, matching typical block-copy buffer sizing

// operation is the engine's internal record for one in-flight or
// recently-finished image operation.
type operation struct {
	id          string
	kind        types.ImageOperationKind
	source      string
	destination string
	cancel      context.CancelFunc

	mu       sync.Mutex
	progress types.OperationProgress
	finished bool
	err      error
}

func (o *operation) snapshot() types.ImageOperationStatus {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

// snapshotLocked requires o.mu to already be held.
func (o *operation) snapshotLocked() types.ImageOperationStatus {
	p := o.progress
	p.ElapsedSeconds = uint64(time.Since(p.StartedAt).Seconds())
	return types.ImageOperationStatus{
		OperationID:       o.id,
		Kind:              o.kind,
		Source:            o.source,
		Destination:       o.destination,
		OperationProgress: p,
		IsFinished:        o.finished,
	}
}

// Engine owns the active-operations registry and an optional bbolt
// ledger recording the terminal status of every completed operation
// (entries are never removed) — an operational record, not durable user
// state; "the service persists nothing" is about configuration and
// volume state, not in-flight task bookkeeping (see DESIGN.md).
type Engine struct {
	daemon adapter.BlockDaemon
	bus    *signalbus.Bus
	ledger *bolt.DB

	mu   sync.Mutex
	ops  map[string]*operation
	stop chan struct{}
}

var ledgerBucket = []byte("operations")

// New builds an Engine. ledger may be nil to disable the operation
// ledger entirely (e.g. in tests).
func New(daemon adapter.BlockDaemon, bus *signalbus.Bus, ledger *bolt.DB) (*Engine, error) {
	if ledger != nil {
		err := ledger.Update(func(tx *bolt.Tx) error {
			_, err := tx.CreateBucketIfNotExists(ledgerBucket)
			return err
		})
		if err != nil {
			return nil, errs.Wrap(errs.Internal, "image", fmt.Errorf("init operation ledger: %w", err))
		}
	}
	return &Engine{daemon: daemon, bus: bus, ledger: ledger, ops: map[string]*operation{}, stop: make(chan struct{})}, nil
}

// Stop cancels every in-flight operation.
func (e *Engine) Stop() {
	close(e.stop)
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, op := range e.ops {
		op.cancel()
	}
}

func generateOperationID() string {
	return uuid.NewString()
}

// startOperation registers a new operation and launches its background
// copy goroutine. body is run with the operation's own cancellable
// context and progress record; it must call markFinished when done.
func (e *Engine) startOperation(ctx context.Context, kind types.ImageOperationKind, source, destination string, body func(ctx context.Context, op *operation)) string {
	opCtx, cancel := context.WithCancel(ctx)
	id := generateOperationID()
	op := &operation{
		id:          id,
		kind:        kind,
		source:      source,
		destination: destination,
		cancel:      cancel,
		progress:    types.OperationProgress{StartedAt: time.Now()},
	}

	e.mu.Lock()
	e.ops[id] = op
	e.mu.Unlock()

	metrics.OperationsActive.Inc()
	e.bus.Emit(signalbus.OperationStarted, "/org/storagebroker/Service1/Image", id, string(kind), source, destination)
	go body(opCtx, op)
	return id
}

// markFinished records the terminal outcome, removes the operation from
// the registry unconditionally, then emits OperationCompleted and
// writes a historical record to the ledger (if any), so a
// GetOperationStatus issued after OperationCompleted returns NotFound
// regardless of success, failure, or cancellation.
func (e *Engine) markFinished(op *operation, copyErr error) {
	op.mu.Lock()
	op.finished = true
	op.err = copyErr
	status := op.snapshotLocked()
	op.mu.Unlock()

	e.mu.Lock()
	delete(e.ops, op.id)
	e.mu.Unlock()

	success := copyErr == nil
	msg := ""
	if copyErr != nil {
		msg = copyErr.Error()
	}
	e.bus.Emit(signalbus.OperationCompleted, "/org/storagebroker/Service1/Image", op.id, success, msg)

	metrics.OperationsActive.Dec()
	result := "success"
	if !success {
		result = "error"
		if errs.As(copyErr) == errs.Cancelled {
			result = "cancelled"
		}
	}
	metrics.OperationsTotal.WithLabelValues(string(op.kind), result).Inc()
	metrics.OperationDuration.WithLabelValues(string(op.kind)).Observe(float64(status.ElapsedSeconds))
	metrics.OperationBytesTotal.WithLabelValues(string(op.kind)).Add(float64(status.Completed))

	if e.ledger != nil {
		_ = e.ledger.Update(func(tx *bolt.Tx) error {
			return tx.Bucket(ledgerBucket).Put([]byte(op.id), marshalStatus(status))
		})
	}
}

// copy performs the chunked read/write loop shared by backup and
// restore, reporting progress via the shared record and checking
// cancellation both mid-chunk and after.
func (e *Engine) copy(ctx context.Context, op *operation, dst io.Writer, src io.Reader, total uint64) error {
	op.mu.Lock()
	op.progress.Total = total
	op.mu.Unlock()

	buf := make([]byte, chunkSize)
	var completed uint64
	started := time.Now()

	for {
		select {
		case <-ctx.Done():
			return errs.New(errs.Cancelled, "image", "operation %s cancelled", op.id)
		default:
		}

		n, readErr := src.Read(buf)
		if n > 0 {
			if _, writeErr := dst.Write(buf[:n]); writeErr != nil {
				return errs.Wrap(errs.IOError, "image", fmt.Errorf("write: %w", writeErr))
			}
			completed += uint64(n)
			elapsed := time.Since(started).Seconds()
			var speed uint64
			if elapsed > 0 {
				speed = uint64(float64(completed) / elapsed)
			}
			op.mu.Lock()
			op.progress.Completed = completed
			op.progress.SpeedBps = speed
			op.mu.Unlock()
			e.bus.Emit(signalbus.OperationProgress, "/org/storagebroker/Service1/Image", op.id, completed, total, speed)
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return errs.Wrap(errs.IOError, "image", fmt.Errorf("read: %w", readErr))
		}

		select {
		case <-ctx.Done():
			return errs.New(errs.Cancelled, "image", "operation %s cancelled", op.id)
		default:
		}
	}
}

// BackupDrive reads objectPath's whole-disk device and writes it to
// destinationPath.
func (e *Engine) BackupDrive(ctx context.Context, objectPath, destinationPath string) (string, error) {
	return e.backup(ctx, types.OpBackupDrive, objectPath, destinationPath)
}

// BackupPartition reads a single partition/volume and writes it to
// destinationPath.
func (e *Engine) BackupPartition(ctx context.Context, objectPath, destinationPath string) (string, error) {
	return e.backup(ctx, types.OpBackupPartition, objectPath, destinationPath)
}

func (e *Engine) backup(ctx context.Context, kind types.ImageOperationKind, objectPath, destinationPath string) (string, error) {
	src, total, err := e.daemon.OpenForBackup(ctx, objectPath)
	if err != nil {
		return "", err
	}
	dst, err := createDestination(destinationPath)
	if err != nil {
		src.Close()
		return "", err
	}

	id := e.startOperation(ctx, kind, objectPath, destinationPath, func(opCtx context.Context, op *operation) {
		defer src.Close()
		defer dst.Close()
		logger := log.WithOperation(op.id)
		err := e.copy(opCtx, op, dst, src, total)
		if err != nil {
			logger.Error().Err(err).Msg("backup failed")
		} else {
			logger.Info().Msg("backup completed")
		}
		e.markFinished(op, err)
	})
	return id, nil
}

// RestoreDrive writes imagePath onto objectPath's whole-disk device.
func (e *Engine) RestoreDrive(ctx context.Context, objectPath, imagePath string) (string, error) {
	return e.restore(ctx, types.OpRestoreDrive, objectPath, imagePath)
}

// RestorePartition writes imagePath onto a single partition/volume.
func (e *Engine) RestorePartition(ctx context.Context, objectPath, imagePath string) (string, error) {
	return e.restore(ctx, types.OpRestorePartition, objectPath, imagePath)
}

func (e *Engine) restore(ctx context.Context, kind types.ImageOperationKind, objectPath, imagePath string) (string, error) {
	dst, destSize, err := e.daemon.OpenForRestore(ctx, objectPath)
	if err != nil {
		return "", err
	}
	src, total, err := openSource(imagePath)
	if err != nil {
		dst.Close()
		return "", err
	}
	if total > destSize {
		src.Close()
		dst.Close()
		return "", errs.New(errs.InvalidArgs, "image", "image is %d bytes, larger than destination %q's %d bytes", total, objectPath, destSize)
	}

	id := e.startOperation(ctx, kind, imagePath, objectPath, func(opCtx context.Context, op *operation) {
		defer src.Close()
		defer dst.Close()
		logger := log.WithOperation(op.id)
		err := e.copy(opCtx, op, dst, src, total)
		if err != nil {
			logger.Error().Err(err).Msg("restore failed")
		} else {
			logger.Info().Msg("restore completed")
		}
		e.markFinished(op, err)
	})
	return id, nil
}

// LoopSetup attaches imagePath as a loop device and returns the device
// name extracted from the returned object path's tail, mirroring
// image.rs's loop_setup.
func (e *Engine) LoopSetup(ctx context.Context, imagePath string) (string, error) {
	objectPath, err := e.daemon.LoopSetup(ctx, imagePath)
	if err != nil {
		return "", err
	}
	return tailOf(objectPath), nil
}

func tailOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}

// CancelOperation requests cancellation of an in-flight operation.
func (e *Engine) CancelOperation(operationID string) error {
	e.mu.Lock()
	op, ok := e.ops[operationID]
	e.mu.Unlock()
	if !ok {
		return errs.New(errs.NotFound, "image", "operation %q not found", operationID)
	}
	op.cancel()
	return nil
}

// GetOperationStatus returns the current status for operationID. A
// finished operation (success, failure, or cancellation) is removed
// from the registry the instant OperationCompleted is emitted, so this
// returns NotFound immediately afterward — it never falls back to the
// ledger, which is an audit-only historical record (see
// GetOperationHistory).
func (e *Engine) GetOperationStatus(operationID string) (types.ImageOperationStatus, error) {
	e.mu.Lock()
	op, ok := e.ops[operationID]
	e.mu.Unlock()
	if !ok {
		return types.ImageOperationStatus{}, errs.New(errs.NotFound, "image", "operation %q not found", operationID)
	}
	return op.snapshot(), nil
}

// GetOperationHistory looks up a finished operation's terminal status
// in the ledger, for callers that explicitly want post-hoc audit
// information rather than the live registry (GetOperationStatus).
// Returns NotFound if no ledger is configured or nothing was recorded.
func (e *Engine) GetOperationHistory(operationID string) (types.ImageOperationStatus, error) {
	if e.ledger == nil {
		return types.ImageOperationStatus{}, errs.New(errs.NotFound, "image", "no operation ledger configured")
	}
	var status types.ImageOperationStatus
	found := false
	err := e.ledger.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(ledgerBucket).Get([]byte(operationID))
		if data == nil {
			return nil
		}
		found = true
		return unmarshalStatus(data, &status)
	})
	if err != nil {
		return types.ImageOperationStatus{}, errs.Wrap(errs.Internal, "image", fmt.Errorf("read operation ledger: %w", err))
	}
	if !found {
		return types.ImageOperationStatus{}, errs.New(errs.NotFound, "image", "operation %q not found in ledger", operationID)
	}
	return status, nil
}

// ListActiveOperations returns status snapshots for every
// currently-registered operation (finished or not).
func (e *Engine) ListActiveOperations() []types.ImageOperationStatus {
	e.mu.Lock()
	ops := make([]*operation, 0, len(e.ops))
	for _, op := range e.ops {
		ops = append(ops, op)
	}
	e.mu.Unlock()

	out := make([]types.ImageOperationStatus, 0, len(ops))
	for _, op := range ops {
		out = append(out, op.snapshot())
	}
	return out
}

package imageengine

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/lima-vm/go-qcow2reader"

	"github.com/storagebroker/service/pkg/errs"
	"github.com/storagebroker/service/pkg/types"
)

// createDestination opens destinationPath for writing a fresh backup
// image, failing if it already exists (the CLI/UI layer is responsible
// for any overwrite confirmation prompt; the engine itself never
// silently clobbers a file).
func createDestination(destinationPath string) (*os.File, error) {
	f, err := os.OpenFile(destinationPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, errs.New(errs.InvalidArgs, "image", "destination %q already exists", destinationPath)
		}
		return nil, errs.Wrap(errs.IOError, "image", fmt.Errorf("create %s: %w", destinationPath, err))
	}
	return f, nil
}

// sourceHandle wraps whichever reader backs an image file (raw or
// qcow2) along with its close hook.
type sourceHandle struct {
	r      readAtCloser
	closer func() error
}

type readAtCloser interface {
	Read(p []byte) (int, error)
}

func (s sourceHandle) Read(p []byte) (int, error) { return s.r.Read(p) }
func (s sourceHandle) Close() error                { return s.closer() }

// openSource opens imagePath for reading during a restore, detecting
// qcow2-formatted images via lima-vm/go-qcow2reader and falling back to
// a raw file read otherwise, so RestoreDrive/RestorePartition accept
// either format.
func openSource(imagePath string) (sourceHandle, uint64, error) {
	f, err := os.Open(imagePath)
	if err != nil {
		return sourceHandle{}, 0, errs.Wrap(errs.IOError, "image", fmt.Errorf("open %s: %w", imagePath, err))
	}

	img, err := qcow2reader.Open(f)
	if err != nil {
		// Not a recognized qcow2 image: treat as a raw image file.
		info, statErr := f.Stat()
		if statErr != nil {
			f.Close()
			return sourceHandle{}, 0, errs.Wrap(errs.IOError, "image", fmt.Errorf("stat %s: %w", imagePath, statErr))
		}
		return sourceHandle{r: f, closer: f.Close}, uint64(info.Size()), nil
	}

	return sourceHandle{
		r:      &qcow2Reader{img: img},
		closer: f.Close,
	}, uint64(img.Size()), nil
}

// qcow2Reader adapts qcow2reader's ReaderAt-shaped image into an
// io.Reader for the engine's sequential chunked-copy loop.
type qcow2Reader struct {
	img    interface {
		ReadAt(p []byte, off int64) (int, error)
		Size() int64
	}
	offset int64
}

func (r *qcow2Reader) Read(p []byte) (int, error) {
	n, err := r.img.ReadAt(p, r.offset)
	r.offset += int64(n)
	return n, err
}

func marshalStatus(s types.ImageOperationStatus) []byte {
	data, _ := json.Marshal(s)
	return data
}

func unmarshalStatus(data []byte, out *types.ImageOperationStatus) error {
	return json.Unmarshal(data, out)
}

package infer

import (
	"io"

	"github.com/spf13/afero"

	"github.com/teranos/vidmask/errors"
)

// MaxTuningFileSize bounds tuning file reads (1 MiB)
const MaxTuningFileSize = 1 << 20

// ReadTuningFile reads a tuning file, rejecting anything larger than
// MaxTuningFileSize. The schema is opaque here; runtimes parse it.
func ReadTuningFile(fs afero.Fs, path string) ([]byte, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open tuning file %s", path)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxTuningFileSize+1))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read tuning file %s", path)
	}
	if len(data) > MaxTuningFileSize {
		return nil, errors.WithHint(
			errors.NewInvalidRequestError("tuning file %s exceeds %d bytes", path, MaxTuningFileSize),
			"tuning files are small JSON documents; check the path points at the right file")
	}
	return data, nil
}

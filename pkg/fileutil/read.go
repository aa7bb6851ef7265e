package fileutil

import (
	"encoding/json"
	"io"
	"os"

	"github.com/benoistlaurent/autobackup/internal/errors"
)

// Read limits by kind of file.
const (
	// ConfigLimit bounds hand-written files: settings and workstation files.
	ConfigLimit int64 = 1 << 20

	// ManifestLimit bounds snapshot manifests and run records, which grow
	// with the number of files in a tree.
	ManifestLimit int64 = 256 << 20
)

// ErrFileTooLarge indicates a file exceeded the read limit.
var ErrFileTooLarge = errors.New("file exceeds the size limit")

// ReadFile reads path, failing with ErrFileTooLarge beyond limit bytes.
// Open errors are wrapped so errors.Is(err, fs.ErrNotExist) holds.
func ReadFile(path string, limit int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening file")
	}
	defer f.Close()

	if info, err := f.Stat(); err == nil && info.Size() > limit {
		return nil, errors.Wrapf(ErrFileTooLarge, "%s is %d bytes, limit %d", path, info.Size(), limit)
	}

	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, errors.Wrap(err, "reading file")
	}
	if int64(len(data)) > limit {
		return nil, errors.Wrapf(ErrFileTooLarge, "%s exceeds %d bytes", path, limit)
	}
	return data, nil
}

// ReadJSON decodes a JSON file of at most limit bytes into v.
func ReadJSON(path string, limit int64, v any) error {
	data, err := ReadFile(path, limit)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrapf(err, "parsing %s", path)
	}
	return nil
}

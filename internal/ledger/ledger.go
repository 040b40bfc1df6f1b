package ledger

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// PartialSuffix marks an incomplete download next to its final path.
const PartialSuffix = ".part"

// IOError is a local filesystem failure while handling a download artifact.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// IsIOError returns true if err is, or wraps, an IOError
func IsIOError(err error) bool {
	var ioe *IOError
	return errors.As(err, &ioe)
}

func PartialPath(finalPath string) string {
	return finalPath + PartialSuffix
}

// CurrentLength returns the size of the partial file for finalPath, or 0 when
// there is none.
func CurrentLength(finalPath string) (int64, error) {
	info, err := os.Stat(PartialPath(finalPath))
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, &IOError{Op: "stat", Path: PartialPath(finalPath), Err: err}
	}
	if info.IsDir() {
		return 0, &IOError{Op: "stat", Path: PartialPath(finalPath), Err: errors.New("partial path is a directory")}
	}
	return info.Size(), nil
}

// OpenForWrite opens the partial file for finalPath. An offset of 0 creates or
// truncates it; a positive offset appends and requires the file to hold exactly
// offset bytes.
func OpenForWrite(finalPath string, offset int64) (*os.File, error) {
	partPath := PartialPath(finalPath)
	if offset == 0 {
		if dir := filepath.Dir(partPath); dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, &IOError{Op: "mkdir", Path: dir, Err: err}
			}
		}
		f, err := os.OpenFile(partPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if err != nil {
			return nil, &IOError{Op: "create", Path: partPath, Err: err}
		}
		log.Debug().Str("op", "ledger/open").Msgf("Opened %s for fresh write", partPath)
		return f, nil
	}
	if offset < 0 {
		return nil, &IOError{Op: "open", Path: partPath, Err: fmt.Errorf("negative offset %d", offset)}
	}
	f, err := os.OpenFile(partPath, os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, &IOError{Op: "open", Path: partPath, Err: err}
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, &IOError{Op: "stat", Path: partPath, Err: err}
	}
	if info.Size() != offset {
		f.Close()
		return nil, &IOError{Op: "open", Path: partPath, Err: fmt.Errorf("partial holds %d bytes, expected %d", info.Size(), offset)}
	}
	log.Debug().Str("op", "ledger/open").Msgf("Opened %s for append at offset %d", partPath, offset)
	return f, nil
}

// Promote renames the completed partial file onto finalPath.
func Promote(finalPath string) error {
	if err := os.Rename(PartialPath(finalPath), finalPath); err != nil {
		return &IOError{Op: "rename", Path: finalPath, Err: err}
	}
	log.Debug().Str("op", "ledger/promote").Msgf("Promoted partial file to %s", finalPath)
	return nil
}

// Discard removes the partial file for finalPath. A missing file is not an error.
func Discard(finalPath string) error {
	err := os.Remove(PartialPath(finalPath))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &IOError{Op: "remove", Path: PartialPath(finalPath), Err: err}
	}
	return nil
}

// Clean removes every partial file directly inside dir and returns the removed
// paths.
func Clean(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &IOError{Op: "readdir", Path: dir, Err: err}
	}
	var removed []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), PartialSuffix) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := os.Remove(path); err != nil {
			return removed, &IOError{Op: "remove", Path: path, Err: err}
		}
		removed = append(removed, path)
	}
	log.Debug().Str("op", "ledger/clean").Msgf("Removed %d partial files from %s", len(removed), dir)
	return removed, nil
}

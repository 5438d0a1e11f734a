package vectorindex

import (
	"encoding/gob"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	hierrors "github.com/jpdrecourt/hibikido-go/internal/errors"
)

// gobIndex is the on-disk representation. Persisted as gob rather than a
// bespoke binary format.
type gobIndex struct {
	Dimensions int
	Vectors    [][]float64
}

// Save atomically persists the index to path: write to path+".tmp", then
// rename, so a crash mid-write never corrupts the last good index (spec.md
// §6 "overwritten atomically on save"). A cross-process flock on
// path+".lock" guards against a concurrent writer racing the same file.
func (idx *Index) Save(path string) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return hierrors.IndexError("create index directory", err)
		}
	}

	fl := flock.New(path + ".lock")
	if err := fl.Lock(); err != nil {
		return hierrors.IndexError("acquire index lock", err)
	}
	defer fl.Unlock()

	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return hierrors.IndexError("create temp index file", err)
	}

	enc := gob.NewEncoder(f)
	payload := gobIndex{Dimensions: idx.dimensions, Vectors: idx.vectors}
	if err := enc.Encode(payload); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return hierrors.IndexError("encode index", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return hierrors.IndexError("close temp index file", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return hierrors.IndexError("rename index file", err)
	}

	return nil
}

// Load restores the index from path, replacing any in-memory state.
func (idx *Index) Load(path string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	fl := flock.New(path + ".lock")
	if err := fl.Lock(); err != nil {
		return hierrors.IndexError("acquire index lock", err)
	}
	defer fl.Unlock()

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // fresh start, nothing to load
		}
		return hierrors.IndexError("open index file", err)
	}
	defer f.Close()

	var payload gobIndex
	if err := gob.NewDecoder(f).Decode(&payload); err != nil {
		return hierrors.IndexError("decode index", err)
	}

	idx.dimensions = payload.Dimensions
	idx.vectors = payload.Vectors
	return nil
}

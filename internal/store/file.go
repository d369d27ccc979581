package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
)

const (
	fileFormatVersion = "1"
	lockTimeout       = 3 * time.Second
	lockRetryInterval = 50 * time.Millisecond
)

// fileData is the on-disk layout of a File store.
type fileData struct {
	Version   string     `json:"version"`
	UpdatedAt time.Time  `json:"updated_at"`
	Documents []Document `json:"documents"`
}

// File keeps every collection in one JSON file. Each operation holds an
// exclusive lock on a sibling ".lock" file for its whole read-modify-write,
// so several processes may share the same file.
type File struct {
	path string
	lock *flock.Flock
	now  func() time.Time

	// flock does not exclude goroutines sharing one handle.
	mu sync.Mutex
}

// OpenFile returns a store backed by the JSON file at path. The file is
// created on the first write.
func OpenFile(path string) (*File, error) {
	if path == "" {
		return nil, errors.New("file store: path is empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}
	return &File{
		path: path,
		lock: flock.New(path + ".lock"),
		now:  time.Now,
	}, nil
}

func (f *File) List(ctx context.Context, collection string) ([]Document, error) {
	var docs []Document
	err := f.withLock(ctx, false, func(data *fileData) error {
		docs = []Document{}
		for _, doc := range data.Documents {
			if doc.Collection == collection {
				docs = append(docs, doc)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	return docs, nil
}

func (f *File) Get(ctx context.Context, collection, id string) (Document, error) {
	var doc Document
	err := f.withLock(ctx, false, func(data *fileData) error {
		i := data.index(collection, id)
		if i < 0 {
			return notFound(collection, id)
		}
		doc = data.Documents[i]
		return nil
	})
	return doc, err
}

func (f *File) Create(ctx context.Context, collection string, fields map[string]any) (Document, error) {
	// Round-trip through JSON so the returned fields match what List reads back.
	raw, err := encodeFields(fields)
	if err != nil {
		return Document{}, err
	}
	decoded, err := decodeFields(raw)
	if err != nil {
		return Document{}, err
	}

	now := f.now().UTC()
	doc := Document{
		ID:         uuid.NewString(),
		Collection: collection,
		Fields:     decoded,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err = f.withLock(ctx, true, func(data *fileData) error {
		data.Documents = append(data.Documents, doc)
		return nil
	})
	if err != nil {
		return Document{}, fmt.Errorf("create %s: %w", collection, err)
	}
	return doc, nil
}

func (f *File) Update(ctx context.Context, collection, id string, patch map[string]any) error {
	raw, err := encodeFields(patch)
	if err != nil {
		return err
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("decode patch: %w", err)
	}

	return f.withLock(ctx, true, func(data *fileData) error {
		i := data.index(collection, id)
		if i < 0 {
			return notFound(collection, id)
		}
		doc := &data.Documents[i]
		doc.Fields = mergePatch(doc.Fields, decoded)
		doc.UpdatedAt = f.now().UTC()
		return nil
	})
}

func (f *File) Delete(ctx context.Context, collection, id string) error {
	return f.withLock(ctx, true, func(data *fileData) error {
		i := data.index(collection, id)
		if i < 0 {
			return notFound(collection, id)
		}
		data.Documents = slices.Delete(data.Documents, i, i+1)
		return nil
	})
}

func (f *File) DeleteMany(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	remove := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		remove[id] = struct{}{}
	}

	err := f.withLock(ctx, true, func(data *fileData) error {
		data.Documents = slices.DeleteFunc(data.Documents, func(doc Document) bool {
			_, ok := remove[doc.ID]
			return ok && doc.Collection == collection
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete %d from %s: %w", len(ids), collection, err)
	}
	return nil
}

// Close removes the lock file.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.lock.Close(); err != nil {
		return err
	}
	if err := os.Remove(f.lock.Path()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// withLock loads the file under the lock, runs fn and, for writes, saves the
// result atomically. fn errors abort the write.
func (f *File) withLock(ctx context.Context, write bool, fn func(*fileData) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	lockCtx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()

	locked, err := f.lock.TryLockContext(lockCtx, lockRetryInterval)
	if err != nil {
		return fmt.Errorf("acquire file lock: %w", err)
	}
	if !locked {
		return errors.New("could not acquire file lock")
	}
	defer func() { _ = f.lock.Unlock() }()

	data, err := f.load()
	if err != nil {
		return err
	}
	if err := fn(data); err != nil {
		return err
	}
	if !write {
		return nil
	}

	data.UpdatedAt = f.now().UTC()
	return f.save(data)
}

func (f *File) load() (*fileData, error) {
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) || (err == nil && len(raw) == 0) {
		return &fileData{Version: fileFormatVersion, Documents: []Document{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read store file: %w", err)
	}

	var data fileData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parse store file: %w", err)
	}
	for i := range data.Documents {
		if data.Documents[i].Fields == nil {
			data.Documents[i].Fields = map[string]any{}
		}
	}
	return &data, nil
}

func (f *File) save(data *fileData) error {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("encode store file: %w", err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

func (d *fileData) index(collection, id string) int {
	return slices.IndexFunc(d.Documents, func(doc Document) bool {
		return doc.ID == id && doc.Collection == collection
	})
}

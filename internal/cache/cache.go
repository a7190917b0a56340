// Package cache stores generated task objects on disk, keyed by the
// fingerprint of everything that determines their content.
//
// Layout:
//
//	{dir}/
//	  {key[0:2]}/
//	    {key}        zstd-compressed object
package cache

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/klauspost/compress/zstd"
	"github.com/spf13/afero"

	oerrors "github.com/opmodel/lto2/internal/errors"
	"github.com/opmodel/lto2/internal/output"
)

// AddBufferFunc hands a complete task object to the output.
type AddBufferFunc func(task int, data []byte) error

// Lookup results recorded per task.
const (
	StatusHit  = "hit"
	StatusMiss = "miss"
)

// Stats counts cache lookups.
type Stats struct {
	Hits   int64
	Misses int64
}

// Cache is a directory of compressed objects. It is safe for concurrent use.
type Cache struct {
	fs        afero.Fs
	dir       string
	addBuffer AddBufferFunc

	enc *zstd.Encoder
	dec *zstd.Decoder

	hits   atomic.Int64
	misses atomic.Int64

	mu     sync.Mutex
	status map[int]string
}

// New opens the cache rooted at dir, creating it if needed. Objects found
// or produced by Fetch are passed to addBuffer. Close releases the codec.
func New(fs afero.Fs, dir string, addBuffer AddBufferFunc) (*Cache, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, oerrors.NewIOError(dir, "failed to create cache", err)
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		_ = enc.Close()
		return nil, err
	}

	return &Cache{
		fs:        fs,
		dir:       dir,
		addBuffer: addBuffer,
		enc:       enc,
		dec:       dec,
		status:    make(map[int]string),
	}, nil
}

// Fetch emits the object stored under key for task. On a miss it calls
// produce, stores the result and emits it. Unreadable entries count as
// misses and are replaced.
func (c *Cache) Fetch(task int, key string, produce func() ([]byte, error)) error {
	if data, ok := c.load(key); ok {
		c.hits.Add(1)
		c.record(task, StatusHit)
		output.Debug("cache hit", "task", task, "key", key)
		return c.addBuffer(task, data)
	}

	c.misses.Add(1)
	c.record(task, StatusMiss)
	output.Debug("cache miss", "task", task, "key", key)

	data, err := produce()
	if err != nil {
		return err
	}
	if err := c.store(key, data); err != nil {
		return err
	}
	return c.addBuffer(task, data)
}

// Stats returns the lookup counters.
func (c *Cache) Stats() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load()}
}

// TaskStatus returns StatusHit or StatusMiss for a task fetched through
// the cache, or "" if it never was.
func (c *Cache) TaskStatus(task int) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status[task]
}

func (c *Cache) record(task int, status string) {
	c.mu.Lock()
	c.status[task] = status
	c.mu.Unlock()
}

// Close releases the compression codec.
func (c *Cache) Close() error {
	c.dec.Close()
	return c.enc.Close()
}

func (c *Cache) entryPath(key string) string {
	prefix := key
	if len(prefix) > 2 {
		prefix = prefix[:2]
	}
	return filepath.Join(c.dir, prefix, key)
}

func (c *Cache) load(key string) ([]byte, bool) {
	path := c.entryPath(key)
	compressed, err := afero.ReadFile(c.fs, path)
	if err != nil {
		if !os.IsNotExist(err) {
			output.Warn("unreadable cache entry", "path", path, "err", err)
		}
		return nil, false
	}
	data, err := c.dec.DecodeAll(compressed, nil)
	if err != nil {
		output.Warn("corrupt cache entry", "path", path, "err", err)
		return nil, false
	}
	return data, true
}

// store writes the entry to a temporary file and renames it into place so
// readers never observe a partial entry.
func (c *Cache) store(key string, data []byte) error {
	path := c.entryPath(key)
	parent := filepath.Dir(path)
	if err := c.fs.MkdirAll(parent, 0o755); err != nil {
		return oerrors.NewIOError(parent, "creating cache directory", err)
	}

	tmp, err := afero.TempFile(c.fs, parent, "tmp-"+key+"-")
	if err != nil {
		return oerrors.NewIOError(parent, "creating cache entry", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = c.fs.Remove(tmp.Name())
		}
	}()

	if _, err := tmp.Write(c.enc.EncodeAll(data, nil)); err != nil {
		_ = tmp.Close()
		return oerrors.NewIOError(tmp.Name(), "writing cache entry", err)
	}
	if err := tmp.Close(); err != nil {
		return oerrors.NewIOError(tmp.Name(), "writing cache entry", err)
	}
	if err := c.fs.Rename(tmp.Name(), path); err != nil {
		return oerrors.NewIOError(path, "committing cache entry", err)
	}
	committed = true
	return nil
}

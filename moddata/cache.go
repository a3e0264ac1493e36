package moddata

import (
	"crypto/sha256"
	"encoding/hex"
	stderrors "errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
)

// snapshotSchema is bumped whenever fileModel changes shape.
const snapshotSchema uint16 = 1

type snapshot struct {
	Schema uint16
	Model  fileModel
}

// Cache stores decoded compatibility lists keyed by the hash of their source.
type Cache struct {
	dir string
	mu  sync.RWMutex
}

// OpenCache returns a cache rooted at dir, creating it if needed.
func OpenCache(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Cache{dir: dir}, nil
}

func (c *Cache) pathFor(sum [sha256.Size]byte) string {
	return filepath.Join(c.dir, "moddata", hex.EncodeToString(sum[:])+".mp")
}

// Load returns the database in path, using the snapshot when the file is
// unchanged. A nil cache behaves like LoadFile.
func (c *Cache) Load(path string) (*Database, error) {
	if c == nil {
		return LoadFile(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return LoadFile(path)
	}
	sum := sha256.Sum256(data)

	if model, ok := c.get(sum); ok {
		Logger().Debug("compatibility list loaded from cache", zap.String("path", path))
		return model.compile()
	}

	model, err := decodeTOML(string(data))
	if err != nil {
		return nil, err
	}
	db, err := model.compile()
	if err != nil {
		return nil, err
	}
	if err := c.put(sum, model); err != nil {
		Logger().Warn("failed to write compatibility cache", zap.Error(err))
	}
	return db, nil
}

func (c *Cache) get(sum [sha256.Size]byte) (*fileModel, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	f, err := os.Open(c.pathFor(sum))
	if err != nil {
		if !stderrors.Is(err, os.ErrNotExist) {
			Logger().Debug("compatibility cache unreadable", zap.Error(err))
		}
		return nil, false
	}
	defer f.Close()

	var snap snapshot
	if err := msgpack.NewDecoder(f).Decode(&snap); err != nil || snap.Schema != snapshotSchema {
		return nil, false
	}
	return &snap.Model, true
}

func (c *Cache) put(sum [sha256.Size]byte, model *fileModel) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.pathFor(sum)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())

	if err := msgpack.NewEncoder(f).Encode(&snapshot{Schema: snapshotSchema, Model: *model}); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), p)
}

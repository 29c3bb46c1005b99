package regrid

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/couchcryptid/emissions-regrid/internal/observability"
)

// WeightStore is a content-addressed cache of computed weight sets, keyed
// by grid-pair signature. Entries live in memory for the life of the
// process and, when dir is non-empty, persist as gob blobs under dir so
// later process runs skip the geometry pass entirely.
//
// The load-or-compute contract is explicit: a key is either served from
// memory, loaded from disk, or computed exactly once and stored both
// places. The store lock is held across computation, which doubles as the
// one-time barrier the pipeline relies on before fanning units out.
type WeightStore struct {
	dir     string
	logger  *slog.Logger
	metrics *observability.Metrics

	mu  sync.Mutex
	mem map[string]*Weights
}

// NewWeightStore creates a weight store persisting under dir. An empty dir
// disables on-disk persistence.
func NewWeightStore(dir string, logger *slog.Logger, metrics *observability.Metrics) *WeightStore {
	return &WeightStore{
		dir:     dir,
		logger:  logger,
		metrics: metrics,
		mem:     make(map[string]*Weights),
	}
}

// LoadOrCompute returns the weight set for key, computing and storing it if
// no cached copy exists. The returned weights are shared and must be
// treated as read-only by callers.
func (s *WeightStore) LoadOrCompute(key string, compute func() (*Weights, error)) (*Weights, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if w, ok := s.mem[key]; ok {
		s.metrics.WeightCache.WithLabelValues("memory").Inc()
		return w, nil
	}

	if w, err := s.loadFromDisk(key); err == nil {
		s.metrics.WeightCache.WithLabelValues("disk").Inc()
		s.mem[key] = w
		return w, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		// A corrupt or unreadable blob falls through to recomputation.
		s.logger.Warn("weight cache read failed, recomputing", "key", key, "error", err)
	}

	s.metrics.WeightCache.WithLabelValues("computed").Inc()
	s.logger.Info("computing regrid weights", "key", key)
	start := time.Now()
	w, err := compute()
	if err != nil {
		return nil, err
	}
	s.metrics.WeightComputeDuration.Observe(time.Since(start).Seconds())
	s.logger.Info("regrid weights computed", "key", key, "duration", time.Since(start))

	s.mem[key] = w
	if s.dir != "" {
		if err := s.saveToDisk(key, w); err != nil {
			// Persistence is an optimization for later runs; this run
			// already has the weights in memory.
			s.logger.Warn("weight cache write failed", "key", key, "error", err)
		}
	}
	return w, nil
}

func (s *WeightStore) path(key string) string {
	return filepath.Join(s.dir, key+".weights.gob")
}

func (s *WeightStore) loadFromDisk(key string) (*Weights, error) {
	if s.dir == "" {
		return nil, fs.ErrNotExist
	}
	f, err := os.Open(s.path(key))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	w := new(Weights)
	if err := gob.NewDecoder(f).Decode(w); err != nil {
		return nil, fmt.Errorf("decode weights %s: %w", s.path(key), err)
	}
	return w, nil
}

func (s *WeightStore) saveToDisk(key string, w *Weights) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	// Write-then-rename so a crash never leaves a truncated blob behind.
	tmp, err := os.CreateTemp(s.dir, key+".tmp")
	if err != nil {
		return err
	}
	if err := gob.NewEncoder(tmp).Encode(w); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path(key))
}

// Package querystore loads named SQL templates per database kind and caches
// them for the lifetime of the process.
//
// Templates live at <kind>/<name>.sql and contain :name placeholders that
// callers replace with literal SQL fragments. The substitution helpers do no
// escaping: values placed into IN clauses must be validated upstream, and
// production use should move these queries to bound parameters.
package querystore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Database kinds, also the template directory names.
const (
	KindOracle     = "oracledb"
	KindRedshift   = "redshift"
	KindClickHouse = "clickhouse"
)

// ErrNotFound is returned when a template file does not exist.
var ErrNotFound = errors.New("query template not found")

// Key identifies a cached template.
type Key struct {
	Kind string
	Name string
}

// Store reads templates from a filesystem and caches them by Key.
type Store struct {
	fsys   fs.FS
	logger zerolog.Logger

	mu    sync.RWMutex
	cache map[Key]string
}

// New creates a store reading from fsys.
func New(fsys fs.FS, logger zerolog.Logger) *Store {
	return &Store{
		fsys:   fsys,
		logger: logger.With().Str("component", "querystore").Logger(),
		cache:  make(map[Key]string),
	}
}

// NewDir creates a store over dir. When dir does not exist the embedded
// templates are used instead.
func NewDir(dir string, logger zerolog.Logger) *Store {
	if info, err := os.Stat(dir); err == nil && info.IsDir() {
		return New(os.DirFS(dir), logger)
	}
	logger.Info().Str("dir", dir).Msg("query directory not found, using built-in templates")
	return New(Embedded(), logger)
}

// Load returns the template text for (kind, name), reading it on first use.
func (s *Store) Load(kind, name string) (string, error) {
	key := Key{Kind: kind, Name: name}

	s.mu.RLock()
	q, ok := s.cache[key]
	s.mu.RUnlock()
	if ok {
		return q, nil
	}

	file := path.Join(kind, name+".sql")
	data, err := fs.ReadFile(s.fsys, file)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Error().Str("file", file).Msg("query file not found")
			return "", fmt.Errorf("%w: %s", ErrNotFound, file)
		}
		s.logger.Error().Err(err).Str("file", file).Msg("query load failed")
		return "", fmt.Errorf("read query %s: %w", file, err)
	}

	q = string(data)
	s.mu.Lock()
	s.cache[key] = q
	s.mu.Unlock()

	s.logger.Info().Str("file", file).Msg("query loaded")
	return q, nil
}

// LoadAll returns every template for kind keyed by name. A missing kind
// directory yields an empty map and a warning.
func (s *Store) LoadAll(kind string) (map[string]string, error) {
	names, err := s.Names(kind)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(names))
	for _, name := range names {
		q, err := s.Load(kind, name)
		if err != nil {
			return nil, err
		}
		out[name] = q
	}
	return out, nil
}

// Names lists template names for kind in sorted order.
func (s *Store) Names(kind string) ([]string, error) {
	entries, err := fs.ReadDir(s.fsys, kind)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn().Str("kind", kind).Msg("query directory not found")
			return nil, nil
		}
		return nil, fmt.Errorf("list queries for %s: %w", kind, err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, strings.TrimSuffix(e.Name(), ".sql"))
		}
	}
	sort.Strings(names)
	return names, nil
}

// Cached reports whether (kind, name) is already in the cache.
func (s *Store) Cached(kind, name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.cache[Key{Kind: kind, Name: name}]
	return ok
}

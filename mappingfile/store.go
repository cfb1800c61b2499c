package mappingfile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"sigs.k8s.io/yaml"

	"github.com/zalando/hostrouter/logging"
	"github.com/zalando/hostrouter/metrics"
)

// Mapping associates hostnames with file paths.
type Mapping map[string]string

// Snapshot is an immutable version of the mapping.
type Snapshot struct {
	// Version is 0 for the initial, empty snapshot, and increases by
	// one with every successful load.
	Version int64

	// Source is the name of the file the mapping was loaded from.
	Source string

	// Loaded is the time of the load.
	Loaded time.Time

	Mapping Mapping
}

// Options for the store.
type Options struct {
	// FileName is the path of the mapping file.
	FileName string

	// Log receives the reload messages. Defaults to the application
	// log.
	Log logging.Logger

	// Metrics receives the reload counters and the entry gauge.
	Metrics metrics.Metrics
}

// Store holds the current mapping snapshot.
type Store struct {
	options Options
	current atomic.Pointer[Snapshot]
	loadMu  sync.Mutex
	log     logging.Logger
	metrics metrics.Metrics
}

var errNotObject = errors.New("mapping must be a JSON object")

// Parse decodes the content of a mapping file. The content is a JSON
// object of hostnames to file paths. YAML mappings are accepted too, as
// the content is converted to JSON first. Values other than strings are
// an error, while null and empty values are skipped.
func Parse(data []byte) (Mapping, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("empty mapping file")
	}

	j, err := yaml.YAMLToJSON(data)
	if err != nil {
		return nil, fmt.Errorf("invalid mapping: %w", err)
	}

	var raw map[string]*string
	if err := json.Unmarshal(j, &raw); err != nil {
		return nil, fmt.Errorf("invalid mapping: %w", err)
	}

	if raw == nil {
		return nil, errNotObject
	}

	m := make(Mapping, len(raw))
	for host, p := range raw {
		if p == nil || *p == "" {
			continue
		}

		m[host] = *p
	}

	return m, nil
}

// New creates a store with the empty initial snapshot. Call Load to
// read the file.
func New(o Options) *Store {
	s := &Store{options: o, log: o.Log, metrics: o.Metrics}
	if s.log == nil {
		s.log = logging.New().WithFields(map[string]interface{}{"file": o.FileName})
	}

	if s.metrics == nil {
		s.metrics = metrics.NewVoid()
	}

	s.current.Store(&Snapshot{Source: o.FileName, Mapping: Mapping{}})
	return s
}

func (s *Store) fail(err error) error {
	s.metrics.IncMappingReloadFailures()
	s.log.Errorf("failed to load mapping file %s: %v", s.options.FileName, err)
	return err
}

// Load reads and parses the mapping file, and replaces the current
// snapshot. On failure, the current snapshot is kept.
func (s *Store) Load() error {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	data, err := os.ReadFile(s.options.FileName)
	if err != nil {
		return s.fail(err)
	}

	m, err := Parse(data)
	if err != nil {
		return s.fail(err)
	}

	next := &Snapshot{
		Version: s.current.Load().Version + 1,
		Source:  s.options.FileName,
		Loaded:  time.Now(),
		Mapping: m,
	}

	s.current.Store(next)
	s.metrics.IncMappingReloads()
	s.metrics.UpdateMappingEntries(len(m))
	s.log.Infof("mapping reloaded, version: %d, entries: %d", next.Version, len(m))
	return nil
}

// Snapshot returns the current snapshot. It must not be modified.
func (s *Store) Snapshot() *Snapshot {
	return s.current.Load()
}

// Lookup returns the file path mapped to the host, if any.
func (s *Store) Lookup(host string) (string, bool) {
	p, ok := s.current.Load().Mapping[host]
	return p, ok
}

package mappingfile

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zalando/hostrouter/logging/loggingtest"
	"github.com/zalando/hostrouter/metrics/metricstest"
)

func TestParse(t *testing.T) {
	for _, tt := range []struct {
		name     string
		content  string
		expected Mapping
		fail     bool
	}{{
		name:     "empty object",
		content:  `{}`,
		expected: Mapping{},
	}, {
		name:    "entries",
		content: `{"a.test": "pages/a.html", "b.test": "pages/b.html"}`,
		expected: Mapping{
			"a.test": "pages/a.html",
			"b.test": "pages/b.html",
		},
	}, {
		name:     "empty and null values are ignored",
		content:  `{"a.test": "pages/a.html", "b.test": "", "c.test": null}`,
		expected: Mapping{"a.test": "pages/a.html"},
	}, {
		name:     "hostnames with port are kept as is",
		content:  `{"a.test:8080": "pages/a.html"}`,
		expected: Mapping{"a.test:8080": "pages/a.html"},
	}, {
		name:     "yaml mapping",
		content:  "a.test: pages/a.html\nb.test: pages/b.html\n",
		expected: Mapping{"a.test": "pages/a.html", "b.test": "pages/b.html"},
	}, {
		name:    "empty file",
		content: " \n",
		fail:    true,
	}, {
		name:    "null",
		content: "null",
		fail:    true,
	}, {
		name:    "array",
		content: `["a.test"]`,
		fail:    true,
	}, {
		name:    "number value",
		content: `{"a.test": 42}`,
		fail:    true,
	}, {
		name:    "bool value",
		content: `{"a.test": true}`,
		fail:    true,
	}, {
		name:    "array value",
		content: `{"a.test": []}`,
		fail:    true,
	}, {
		name:    "yaml bool value",
		content: "a.test: yes\n",
		fail:    true,
	}, {
		name:    "object value",
		content: `{"a.test": {"file": "pages/a.html"}}`,
		fail:    true,
	}, {
		name:    "truncated",
		content: `{"a.test": "pages/a.html"`,
		fail:    true,
	}} {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Parse([]byte(tt.content))
			if tt.fail {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			if !cmp.Equal(tt.expected, m) {
				t.Error(cmp.Diff(tt.expected, m))
			}
		})
	}
}

func writeFile(t *testing.T, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(name, []byte(content), 0o644))
}

func TestStoreInitialSnapshot(t *testing.T) {
	s := New(Options{FileName: "mappings.json"})

	snap := s.Snapshot()
	assert.Equal(t, int64(0), snap.Version)
	assert.Empty(t, snap.Mapping)

	_, ok := s.Lookup("a.test")
	assert.False(t, ok)
}

func TestStoreLoad(t *testing.T) {
	name := filepath.Join(t.TempDir(), "mappings.json")
	writeFile(t, name, `{"a.test": "pages/a.html"}`)

	lt := loggingtest.New()
	defer lt.Close()

	m := &metricstest.MockMetrics{}
	s := New(Options{FileName: name, Log: lt, Metrics: m})

	require.NoError(t, s.Load())
	snap := s.Snapshot()
	assert.Equal(t, int64(1), snap.Version)
	assert.Equal(t, name, snap.Source)
	assert.False(t, snap.Loaded.IsZero())

	p, ok := s.Lookup("a.test")
	assert.True(t, ok)
	assert.Equal(t, "pages/a.html", p)

	_, ok = s.Lookup("b.test")
	assert.False(t, ok)

	require.NoError(t, lt.WaitFor("mapping reloaded, version: 1, entries: 1", time.Second))

	reloads, _ := m.Counter("mapping.reloads")
	assert.Equal(t, int64(1), reloads)
	entries, _ := m.Gauge("mapping.entries")
	assert.Equal(t, float64(1), entries)
}

func TestStoreReplacesWholesale(t *testing.T) {
	name := filepath.Join(t.TempDir(), "mappings.json")
	writeFile(t, name, `{"a.test": "pages/a.html", "b.test": "pages/b.html"}`)

	s := New(Options{FileName: name, Log: loggingtest.NewNop()})
	require.NoError(t, s.Load())

	writeFile(t, name, `{"c.test": "pages/c.html"}`)
	require.NoError(t, s.Load())

	expected := Mapping{"c.test": "pages/c.html"}
	if got := s.Snapshot().Mapping; !cmp.Equal(expected, got) {
		t.Error(cmp.Diff(expected, got))
	}

	assert.Equal(t, int64(2), s.Snapshot().Version)
}

func TestStoreKeepsPreviousOnFailure(t *testing.T) {
	for _, tt := range []struct {
		name   string
		update func(t *testing.T, name string)
	}{{
		name: "invalid json",
		update: func(t *testing.T, name string) {
			writeFile(t, name, `{"a.test": `)
		},
	}, {
		name: "removed file",
		update: func(t *testing.T, name string) {
			require.NoError(t, os.Remove(name))
		},
	}, {
		name: "invalid value",
		update: func(t *testing.T, name string) {
			writeFile(t, name, `{"a.test": true}`)
		},
	}, {
		name: "number value",
		update: func(t *testing.T, name string) {
			writeFile(t, name, `{"a.test": 1}`)
		},
	}, {
		name: "nested object value",
		update: func(t *testing.T, name string) {
			writeFile(t, name, `{"a.test": {"file": "pages/b.html"}}`)
		},
	}} {
		t.Run(tt.name, func(t *testing.T) {
			name := filepath.Join(t.TempDir(), "mappings.json")
			writeFile(t, name, `{"a.test": "pages/a.html"}`)

			lt := loggingtest.New()
			defer lt.Close()

			m := &metricstest.MockMetrics{}
			s := New(Options{FileName: name, Log: lt, Metrics: m})
			require.NoError(t, s.Load())
			before := s.Snapshot()

			tt.update(t, name)
			assert.Error(t, s.Load())
			assert.Same(t, before, s.Snapshot())
			assert.Equal(t, int64(1), s.Snapshot().Version)

			p, ok := s.Lookup("a.test")
			assert.True(t, ok)
			assert.Equal(t, "pages/a.html", p)

			require.NoError(t, lt.WaitFor("failed to load mapping file", time.Second))
			failures, _ := m.Counter("mapping.reloadfailures")
			assert.Equal(t, int64(1), failures)
		})
	}
}

func TestStoreMissingFileAtStartup(t *testing.T) {
	s := New(Options{FileName: filepath.Join(t.TempDir(), "missing.json"), Log: loggingtest.NewNop()})
	assert.Error(t, s.Load())
	assert.Equal(t, int64(0), s.Snapshot().Version)
	assert.Empty(t, s.Snapshot().Mapping)
}

func TestStoreConcurrentLoads(t *testing.T) {
	name := filepath.Join(t.TempDir(), "mappings.json")
	writeFile(t, name, `{"a.test": "pages/a.html"}`)

	s := New(Options{FileName: name, Log: loggingtest.NewNop()})

	const loaders = 16
	var wg sync.WaitGroup
	versions := make(chan int64, 1024)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1024; i++ {
			versions <- s.Snapshot().Version
		}
	}()

	for i := 0; i < loaders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Load())
		}()
	}

	wg.Wait()
	<-done
	close(versions)

	assert.Equal(t, int64(loaders), s.Snapshot().Version)

	var last int64
	for v := range versions {
		assert.GreaterOrEqual(t, v, last, "version went backwards")
		last = v
	}
}

func TestStoreDefaultLogHasFileField(t *testing.T) {
	out := log.StandardLogger().Out
	defer log.SetOutput(out)

	var buf bytes.Buffer
	log.SetOutput(&buf)

	name := filepath.Join(t.TempDir(), "mappings.json")
	writeFile(t, name, `{"a.test": 42}`)

	s := New(Options{FileName: name})
	assert.Error(t, s.Load())
	assert.Contains(t, buf.String(), "failed to load mapping file")
	assert.Contains(t, buf.String(), "file="+name)
}

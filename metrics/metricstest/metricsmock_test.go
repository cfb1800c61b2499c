package metricstest

import (
	"testing"
	"testing/synctest"
	"time"
)

func TestMockMetrics(t *testing.T) {
	m := &MockMetrics{}

	t.Run("test-measure-serve", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			start := time.Now()
			time.Sleep(2 * time.Second)
			m.MeasureServe("file", "a.test", "GET", 200, start)

			d, ok := m.Timer("serve.file.GET.200")
			if !ok {
				t.Fatal("Failed to find the serve measure")
			}

			if len(d) != 1 || d[0] != 2*time.Second {
				t.Fatalf("Failed to get one measurement of 2s, got: %v", d)
			}

			if _, ok := m.Timer("servehost.a_test.GET.200"); !ok {
				t.Fatal("Failed to find the serve host measure")
			}
		})
	})

	t.Run("test-counters", func(t *testing.T) {
		m.IncMappingReloads()
		m.IncMappingReloads()
		m.IncMappingReloadFailures()
		m.IncErrorsBackend("b.test")
		m.IncErrorsStatic("a.test")

		for key, exp := range map[string]int64{
			"mapping.reloads":        2,
			"mapping.reloadfailures": 1,
			"errors.backend.b_test":  1,
			"errors.static.a_test":   1,
		} {
			if v, ok := m.Counter(key); !ok || v != exp {
				t.Fatalf("Failed to get counter %s, want: %d, got: %d", key, exp, v)
			}
		}
	})

	t.Run("test-gauge", func(t *testing.T) {
		m.UpdateMappingEntries(4)
		m.UpdateMappingEntries(2)
		if v, ok := m.Gauge("mapping.entries"); !ok || v != 2 {
			t.Fatalf("Failed to get the gauge value, got: %v", v)
		}
	})

	t.Run("test-prefix", func(t *testing.T) {
		p := &MockMetrics{Prefix: "hostrouter."}
		p.IncMappingReloads()
		if _, ok := p.Counter("hostrouter.mapping.reloads"); !ok {
			t.Fatal("Failed to find the prefixed counter")
		}
	})
}

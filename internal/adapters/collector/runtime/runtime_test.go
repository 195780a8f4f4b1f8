package runtime

import (
	"context"
	"runtime"
	"strings"
	"testing"
	"time"

	metrics "github.com/rcrowley/go-metrics"
)

func pollCount(c *Collector) int64 {
	return c.pollCount.Count()
}

func waitForPollCount(c *Collector, want int64, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if pollCount(c) >= want {
			return true
		}
		time.Sleep(1 * time.Millisecond)
	}
	return false
}

func TestCollector_RegistersRuntimeGauges(t *testing.T) {
	type testCase struct {
		name       string
		ticks      int64
		interval   time.Duration
		requireAll bool
	}
	tests := []testCase{
		{
			name:       "one_tick_minimal_keys",
			ticks:      1,
			interval:   5 * time.Millisecond,
			requireAll: false,
		},
		{
			name:       "two_ticks_all_keys",
			ticks:      2,
			interval:   4 * time.Millisecond,
			requireAll: true,
		},
	}

	allKeys := []string{
		MAlloc, MBuckHashSys, MFrees, MGCCPUFraction, MGCSys,
		MHeapAlloc, MHeapIdle, MHeapInuse, MHeapObjects, MHeapReleased,
		MHeapSys, MLastGC, MLookups, MMCacheInuse, MMCacheSys,
		MMSpanInuse, MMSpanSys, MMallocs, MNextGC, MNumForcedGC,
		MNumGC, MNumGoroutine, MOtherSys, MPauseTotalNs, MStackInuse,
		MStackSys, MSys, MTotalAlloc,
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			reg := metrics.NewRegistry()
			c := New(reg)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			if err := c.Start(ctx, tc.interval); err != nil {
				t.Fatalf("Start error: %v", err)
			}
			if ok := waitForPollCount(c, tc.ticks, 500*time.Millisecond); !ok {
				c.Stop()
				t.Fatalf("timeout waiting for PollCount >= %d", tc.ticks)
			}
			c.Stop()

			if got := reg.Get(MPollCount); got == nil {
				t.Fatal("PollCount not registered")
			}

			minKeys := []string{MAlloc, MHeapAlloc, MSys}
			keys := minKeys
			if tc.requireAll {
				keys = allKeys
			}
			for _, k := range keys {
				if reg.Get(k) == nil {
					t.Fatalf("gauge %q not registered", k)
				}
			}
			if _, ok := reg.Get(MGCCPUFraction).(metrics.GaugeFloat64); !ok {
				t.Fatalf("%s should be a float gauge", MGCCPUFraction)
			}
			if g, ok := reg.Get(MAlloc).(metrics.Gauge); !ok || g.Value() <= 0 {
				t.Fatalf("%s not sampled", MAlloc)
			}
		})
	}
}

func TestCollector_StopsAndNoFurtherIncrements(t *testing.T) {
	tests := []struct {
		name     string
		interval time.Duration
		ticks    int64
	}{
		{"stop_after_3_ticks_5ms", 5 * time.Millisecond, 3},
		{"stop_after_5_ticks_2ms", 2 * time.Millisecond, 5},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := New(nil)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			if err := c.Start(ctx, tc.interval); err != nil {
				t.Fatalf("Start error: %v", err)
			}
			if ok := waitForPollCount(c, tc.ticks, 500*time.Millisecond); !ok {
				c.Stop()
				t.Fatalf("timeout waiting for PollCount >= %d", tc.ticks)
			}

			c.Stop()
			before := pollCount(c)
			time.Sleep(3 * tc.interval)
			if after := pollCount(c); after != before {
				t.Fatalf("PollCount grew after Stop(): before=%d after=%d", before, after)
			}
			c.Stop()
		})
	}
}

func TestCollector_SystemGaugesPresent(t *testing.T) {
	reg := metrics.NewRegistry()
	c := New(reg)

	interval := 5 * time.Millisecond
	if err := c.Start(t.Context(), interval); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	deadline := time.Now().Add(time.Second)
	for reg.Get(TotalMemory) == nil && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(4 * interval)
	c.Stop()

	if reg.Get(TotalMemory) == nil {
		t.Fatalf("gauge %q not set", TotalMemory)
	}
	if reg.Get(FreeMemory) == nil {
		t.Fatalf("gauge %q not set", FreeMemory)
	}

	foundCPU := false
	reg.Each(func(name string, m any) {
		if !strings.HasPrefix(name, CPUutilization) {
			return
		}
		foundCPU = true
		g, ok := m.(metrics.GaugeFloat64)
		if !ok {
			t.Errorf("%s should be a float gauge", name)
			return
		}
		if v := g.Value(); v < 0.0 || v > 100.0 {
			t.Errorf("%s out of range [0,100]: %v", name, v)
		}
	})
	if !foundCPU {
		t.Fatalf("no cpu.<n>.utilization gauges found")
	}
}

func TestCollector_GCPauseAndCycle(t *testing.T) {
	reg := metrics.NewRegistry()
	c := New(reg)

	runtime.GC()
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	c.sampleMemStats(&ms)
	if c.gcPause.Count() == 0 {
		t.Fatal("expected GC pauses to be recorded")
	}
	recorded := c.gcPause.Count()
	c.sampleMemStats(&ms)
	if c.gcPause.Count() != recorded {
		t.Fatal("pauses must not be recorded twice")
	}

	c.RecordCycle(15 * time.Millisecond)
	tm, ok := reg.Get(MCycleDuration).(metrics.Timer)
	if !ok || tm.Count() != 1 {
		t.Fatalf("cycle timer not updated")
	}
	if c.Registry() != reg {
		t.Fatal("Registry() must return the injected registry")
	}
}

// Package runtime samples Go runtime stats and host CPU/RAM usage into a
// go-metrics registry.
package runtime

import (
	"context"
	"runtime"
	"strconv"
	"sync"
	"time"

	metrics "github.com/rcrowley/go-metrics"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Collector periodically samples runtime and host metrics.
type Collector struct {
	reg       metrics.Registry
	pollCount metrics.Counter
	gcPause   metrics.Histogram
	cycle     metrics.Timer
	stop      chan struct{}
	wg        sync.WaitGroup
	lastNumGC uint32
}

// New registers the collector's counter, histogram and timer in reg.
func New(reg metrics.Registry) *Collector {
	if reg == nil {
		reg = metrics.NewRegistry()
	}
	return &Collector{
		reg:       reg,
		pollCount: metrics.GetOrRegisterCounter(MPollCount, reg),
		gcPause:   metrics.GetOrRegisterHistogram(MGCPause, reg, metrics.NewUniformSample(1028)),
		cycle:     metrics.GetOrRegisterTimer(MCycleDuration, reg),
		stop:      make(chan struct{}),
	}
}

// Registry returns the registry the collector writes to.
func (c *Collector) Registry() metrics.Registry { return c.reg }

// Start launches background goroutines that sample at the given interval.
func (c *Collector) Start(ctx context.Context, interval time.Duration) error {
	t := time.NewTicker(interval)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer t.Stop()
		var ms runtime.MemStats
		for {
			select {
			case <-ctx.Done():
				return
			case <-c.stop:
				return
			case <-t.C:
				runtime.ReadMemStats(&ms)
				c.sampleMemStats(&ms)
			}
		}
	}()

	tSys := time.NewTicker(interval)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer tSys.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-c.stop:
				return
			case <-tSys.C:
				c.sampleHost()
			}
		}
	}()

	return nil
}

func (c *Collector) sampleMemStats(ms *runtime.MemStats) {
	c.gauge(MAlloc, int64(ms.Alloc))
	c.gauge(MBuckHashSys, int64(ms.BuckHashSys))
	c.gauge(MFrees, int64(ms.Frees))
	c.gaugeFloat(MGCCPUFraction, ms.GCCPUFraction)
	c.gauge(MGCSys, int64(ms.GCSys))
	c.gauge(MHeapAlloc, int64(ms.HeapAlloc))
	c.gauge(MHeapIdle, int64(ms.HeapIdle))
	c.gauge(MHeapInuse, int64(ms.HeapInuse))
	c.gauge(MHeapObjects, int64(ms.HeapObjects))
	c.gauge(MHeapReleased, int64(ms.HeapReleased))
	c.gauge(MHeapSys, int64(ms.HeapSys))
	c.gauge(MLastGC, int64(ms.LastGC))
	c.gauge(MLookups, int64(ms.Lookups))
	c.gauge(MMCacheInuse, int64(ms.MCacheInuse))
	c.gauge(MMCacheSys, int64(ms.MCacheSys))
	c.gauge(MMSpanInuse, int64(ms.MSpanInuse))
	c.gauge(MMSpanSys, int64(ms.MSpanSys))
	c.gauge(MMallocs, int64(ms.Mallocs))
	c.gauge(MNextGC, int64(ms.NextGC))
	c.gauge(MNumForcedGC, int64(ms.NumForcedGC))
	c.gauge(MNumGC, int64(ms.NumGC))
	c.gauge(MNumGoroutine, int64(runtime.NumGoroutine()))
	c.gauge(MOtherSys, int64(ms.OtherSys))
	c.gauge(MPauseTotalNs, int64(ms.PauseTotalNs))
	c.gauge(MStackInuse, int64(ms.StackInuse))
	c.gauge(MStackSys, int64(ms.StackSys))
	c.gauge(MSys, int64(ms.Sys))
	c.gauge(MTotalAlloc, int64(ms.TotalAlloc))

	// PauseNs is a ring buffer of the last 256 pauses.
	n := ms.NumGC - c.lastNumGC
	if n > uint32(len(ms.PauseNs)) {
		n = uint32(len(ms.PauseNs))
	}
	for i := uint32(0); i < n; i++ {
		idx := (ms.NumGC - i + 255) % uint32(len(ms.PauseNs))
		c.gcPause.Update(int64(ms.PauseNs[idx]))
	}
	c.lastNumGC = ms.NumGC

	c.pollCount.Inc(1)
}

func (c *Collector) sampleHost() {
	if vm, err := mem.VirtualMemory(); err == nil && vm != nil {
		c.gauge(TotalMemory, int64(vm.Total))
		c.gauge(FreeMemory, int64(vm.Free))
	}
	if pct, err := cpu.Percent(0, true); err == nil {
		for i, p := range pct {
			c.gaugeFloat(CPUutilization+strconv.Itoa(i+1)+cpuSuffix, p)
		}
	}
}

// RecordCycle feeds the duration of one reporting cycle into the timer.
func (c *Collector) RecordCycle(d time.Duration) {
	c.cycle.Update(d)
}

func (c *Collector) gauge(name string, v int64) {
	metrics.GetOrRegisterGauge(name, c.reg).Update(v)
}

func (c *Collector) gaugeFloat(name string, v float64) {
	metrics.GetOrRegisterGaugeFloat64(name, c.reg).Update(v)
}

// Stop signals every collector goroutine to halt and waits for them to finish.
func (c *Collector) Stop() {
	select {
	case <-c.stop:
	default:
		close(c.stop)
	}
	c.wg.Wait()
}

package runtime

// Registry names of the sampled values.
const (
	MAlloc         = "runtime.Alloc"
	MBuckHashSys   = "runtime.BuckHashSys"
	MFrees         = "runtime.Frees"
	MGCCPUFraction = "runtime.GCCPUFraction"
	MGCSys         = "runtime.GCSys"
	MHeapAlloc     = "runtime.HeapAlloc"
	MHeapIdle      = "runtime.HeapIdle"
	MHeapInuse     = "runtime.HeapInuse"
	MHeapObjects   = "runtime.HeapObjects"
	MHeapReleased  = "runtime.HeapReleased"
	MHeapSys       = "runtime.HeapSys"
	MLastGC        = "runtime.LastGC"
	MLookups       = "runtime.Lookups"
	MMCacheInuse   = "runtime.MCacheInuse"
	MMCacheSys     = "runtime.MCacheSys"
	MMSpanInuse    = "runtime.MSpanInuse"
	MMSpanSys      = "runtime.MSpanSys"
	MMallocs       = "runtime.Mallocs"
	MNextGC        = "runtime.NextGC"
	MNumForcedGC   = "runtime.NumForcedGC"
	MNumGC         = "runtime.NumGC"
	MNumGoroutine  = "runtime.NumGoroutine"
	MOtherSys      = "runtime.OtherSys"
	MPauseTotalNs  = "runtime.PauseTotalNs"
	MStackInuse    = "runtime.StackInuse"
	MStackSys      = "runtime.StackSys"
	MSys           = "runtime.Sys"
	MTotalAlloc    = "runtime.TotalAlloc"

	MPollCount = "collector.PollCount"
	// MGCPause is a histogram of the most recent GC pauses in nanoseconds.
	MGCPause = "runtime.GCPause"

	TotalMemory = "host.TotalMemory"
	FreeMemory  = "host.FreeMemory"
	// CPUutilization is followed by the 1-based core index: cpu.<n>.utilization.
	CPUutilization = "cpu."
	cpuSuffix      = ".utilization"

	// MCycleDuration times every reporting cycle.
	MCycleDuration = "reporter.CycleDuration"
)

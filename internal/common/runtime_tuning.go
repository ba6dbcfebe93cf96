package common

import (
	"os"
	"runtime"
	"runtime/debug"

	"github.com/rs/zerolog/log"
)

// Runtime profiles by server size. The quote path leans on sync.Pool for
// search arenas and on long-lived graph snapshots, so a high GOGC keeps
// pooled objects warm between requests; GOMEMLIMIT is the safety net.
const (
	smallServerGOGC     = 500
	smallServerMemLimit = int64(2.5 * 1024 * 1024 * 1024)

	mediumServerGOGC     = 800
	mediumServerMemLimit = int64(8 * 1024 * 1024 * 1024)

	largeServerGOGC     = 1000
	largeServerMemLimit = int64(16 * 1024 * 1024 * 1024)
)

func detectServerProfile() (gogc int, memLimit int64, maxProcs int) {
	totalCPU := runtime.NumCPU()
	switch {
	case totalCPU <= 2:
		// Leave a core for the OS on tiny boxes.
		return smallServerGOGC, smallServerMemLimit, 1
	case totalCPU <= 8:
		return mediumServerGOGC, mediumServerMemLimit, totalCPU / 2
	default:
		return largeServerGOGC, largeServerMemLimit, totalCPU / 2
	}
}

// InitRuntime applies the detected profile unless the standard environment
// variables (GOGC, GOMAXPROCS, GOMEMLIMIT) override it.
func InitRuntime() {
	defaultGOGC, defaultMemLimit, defaultMaxProcs := detectServerProfile()

	if os.Getenv("GOGC") == "" {
		debug.SetGCPercent(defaultGOGC)
		log.Info().Int("GOGC", defaultGOGC).Msg("[runtime] set GOGC")
	}

	if os.Getenv("GOMAXPROCS") == "" {
		if defaultMaxProcs < 1 {
			defaultMaxProcs = 1
		}
		runtime.GOMAXPROCS(defaultMaxProcs)
		log.Info().
			Int("GOMAXPROCS", defaultMaxProcs).
			Int("total_cpu", runtime.NumCPU()).
			Msg("[runtime] set GOMAXPROCS")
	}

	if os.Getenv("GOMEMLIMIT") == "" {
		debug.SetMemoryLimit(defaultMemLimit)
		log.Info().
			Int64("GOMEMLIMIT_bytes", defaultMemLimit).
			Msg("[runtime] set memory limit")
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	log.Info().
		Int("num_cpu", runtime.NumCPU()).
		Int("gomaxprocs", runtime.GOMAXPROCS(0)).
		Uint64("heap_sys_mb", memStats.HeapSys/1024/1024).
		Str("go_version", runtime.Version()).
		Msg("[runtime] current runtime settings")
}

package memory

import (
	"math"
	"os"
	"runtime/debug"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"smoothy/internal/logging"
)

// DefaultRatio is the share of the container limit given to the Go heap.
// ffmpeg children are charged to the same cgroup and need the rest.
const DefaultRatio = 0.25

// cgroupMemoryMax is the cgroup v2 limit file. Tests point it elsewhere.
var cgroupMemoryMax = "/sys/fs/cgroup/memory.max"

// Result describes what ConfigureFromEnv did.
type Result struct {
	Configured bool
	// Source is "GOMEMLIMIT", "MEMORY_LIMIT", "cgroup" or "none".
	Source         string
	ContainerLimit int64
	GoMemLimit     int64
	Ratio          float64
}

// ConfigureFromEnv sets GOMEMLIMIT to a fraction of the container memory
// limit. startup.LoadConfig calls it once, before the server accepts uploads.
//
// Environment variables:
//   - GOMEMLIMIT: if set, left alone
//   - MEMORY_LIMIT: container limit, in bytes or with a unit ("2GiB")
//   - MEMORY_RATIO: share of the limit for the Go heap (default 0.25)
//
// Without MEMORY_LIMIT the cgroup v2 memory.max file is used when present.
func ConfigureFromEnv() Result {
	if env := os.Getenv("GOMEMLIMIT"); env != "" {
		limit := debug.SetMemoryLimit(-1)
		logging.Info("  GOMEMLIMIT set via environment: %s", env)
		return Result{
			Configured: limit > 0 && limit < math.MaxInt64,
			Source:     "GOMEMLIMIT",
			GoMemLimit: limit,
		}
	}

	limit, source := containerLimit()
	if limit <= 0 {
		logging.Info("  No container memory limit found, GOMEMLIMIT not configured")
		return Result{Source: "none"}
	}

	ratio := ratioFromEnv()
	goLimit := int64(float64(limit) * ratio)
	debug.SetMemoryLimit(goLimit)

	logging.Info("  Configured GOMEMLIMIT: %s (%.0f%% of %s from %s)",
		humanize.IBytes(uint64(goLimit)), ratio*100, humanize.IBytes(uint64(limit)), source)

	return Result{
		Configured:     true,
		Source:         source,
		ContainerLimit: limit,
		GoMemLimit:     goLimit,
		Ratio:          ratio,
	}
}

func containerLimit() (int64, string) {
	if raw := strings.TrimSpace(os.Getenv("MEMORY_LIMIT")); raw != "" {
		n, err := humanize.ParseBytes(raw)
		if err != nil || n == 0 || n > math.MaxInt64 {
			logging.Warn("Invalid MEMORY_LIMIT %q, ignoring", raw)
			return 0, ""
		}
		return int64(n), "MEMORY_LIMIT"
	}

	data, err := os.ReadFile(cgroupMemoryMax)
	if err != nil {
		return 0, ""
	}
	raw := strings.TrimSpace(string(data))
	if raw == "max" {
		return 0, ""
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n <= 0 {
		return 0, ""
	}
	return n, "cgroup"
}

func ratioFromEnv() float64 {
	raw := os.Getenv("MEMORY_RATIO")
	if raw == "" {
		return DefaultRatio
	}
	ratio, err := strconv.ParseFloat(raw, 64)
	if err != nil || ratio <= 0 || ratio > 1 {
		logging.Warn("Invalid MEMORY_RATIO %q (want 0-1), using %.2f", raw, DefaultRatio)
		return DefaultRatio
	}
	return ratio
}

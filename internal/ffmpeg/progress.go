package ffmpeg

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"time"
)

// Progress is one block of ffmpeg -progress output.
type Progress struct {
	OutTime time.Duration
	Speed   float64
	Done    bool
}

// Fraction returns how much of total has been processed, clamped to [0, 1].
func (p Progress) Fraction(total float64) float64 {
	if p.Done {
		return 1
	}
	if total <= 0 {
		return 0
	}
	f := p.OutTime.Seconds() / total
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}

// parseProgress reads key=value lines and calls fn at the end of every block.
// ffmpeg terminates each block with progress=continue or progress=end.
func parseProgress(r io.Reader, fn func(Progress)) error {
	scanner := bufio.NewScanner(r)
	var current Progress
	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok {
			continue
		}
		switch key {
		case "out_time_us", "out_time_ms":
			// out_time_ms is in microseconds as well.
			if us, err := strconv.ParseInt(value, 10, 64); err == nil && us >= 0 {
				current.OutTime = time.Duration(us) * time.Microsecond
			}
		case "out_time":
			if current.OutTime == 0 {
				if d, ok := parseClock(value); ok {
					current.OutTime = d
				}
			}
		case "speed":
			if s, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(value), "x"), 64); err == nil {
				current.Speed = s
			}
		case "progress":
			current.Done = value == "end"
			if fn != nil {
				fn(current)
			}
			current = Progress{}
		}
	}
	return scanner.Err()
}

// parseClock parses HH:MM:SS.micro.
func parseClock(value string) (time.Duration, bool) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) != 3 {
		return 0, false
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 {
		return 0, false
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 {
		return 0, false
	}
	s, err := strconv.ParseFloat(parts[2], 64)
	if err != nil || s < 0 {
		return 0, false
	}
	total := time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s*float64(time.Second))
	return total, true
}

package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"smoothy/internal/metrics"
)

// VideoInfo contains the metadata the pipeline needs about an upload.
type VideoInfo struct {
	Duration   float64 `json:"duration"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Codec      string  `json:"codec"`
	FormatName string  `json:"formatName"`
	SizeBytes  int64   `json:"sizeBytes"`
	HasVideo   bool    `json:"hasVideo"`
	HasAudio   bool    `json:"hasAudio"`
}

type probeOutput struct {
	Streams []probeStream `json:"streams"`
	Format  probeFormat   `json:"format"`
}

type probeStream struct {
	CodecName string `json:"codec_name"`
	CodecType string `json:"codec_type"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Duration  string `json:"duration"`
}

type probeFormat struct {
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
}

// ErrNotMedia is returned when ffprobe cannot read the file at all.
var ErrNotMedia = errors.New("file is not readable media")

// Prober runs ffprobe.
type Prober struct {
	binary string
}

// NewProber returns a Prober for the given ffprobe executable.
func NewProber(binary string) *Prober {
	if strings.TrimSpace(binary) == "" {
		binary = "ffprobe"
	}
	return &Prober{binary: binary}
}

// Probe retrieves duration, dimensions and codec information about a file.
func (p *Prober) Probe(ctx context.Context, path string) (*VideoInfo, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("ffprobe: empty path")
	}

	start := time.Now()
	defer func() {
		metrics.FFprobeDuration.Observe(time.Since(start).Seconds())
	}()

	cmd := exec.CommandContext(ctx, p.binary,
		"-v", "error",
		"-hide_banner",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		"--", path,
	)
	configureProcessGroup(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("ffprobe: %w", context.Cause(ctx))
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("%w: %s", ErrNotMedia, strings.TrimSpace(stderr.String()))
		}
		return nil, fmt.Errorf("ffprobe: %w", err)
	}

	return parseProbeOutput(stdout.Bytes())
}

func parseProbeOutput(data []byte) (*VideoInfo, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("ffprobe parse: %w", err)
	}

	info := &VideoInfo{
		FormatName: out.Format.FormatName,
		Duration:   parseSeconds(out.Format.Duration),
	}
	if size := parseSeconds(out.Format.Size); size > 0 {
		info.SizeBytes = int64(size)
	}

	var streamDuration float64
	for _, s := range out.Streams {
		switch strings.ToLower(s.CodecType) {
		case "video":
			if !info.HasVideo {
				info.HasVideo = true
				info.Codec = s.CodecName
				info.Width = s.Width
				info.Height = s.Height
			}
		case "audio":
			info.HasAudio = true
		}
		if d := parseSeconds(s.Duration); d > streamDuration {
			streamDuration = d
		}
	}

	// Some containers only report duration per stream.
	if info.Duration <= 0 {
		info.Duration = streamDuration
	}

	return info, nil
}

func parseSeconds(value string) float64 {
	value = strings.TrimSpace(value)
	if value == "" || value == "N/A" {
		return 0
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

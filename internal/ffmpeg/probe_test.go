package ffmpeg

import (
	"context"
	"errors"
	"testing"
)

func TestParseProbeOutput(t *testing.T) {
	data := []byte(`{
		"streams": [
			{"codec_type": "audio", "codec_name": "aac", "duration": "12.100000"},
			{"codec_type": "video", "codec_name": "h264", "width": 1920, "height": 1080, "duration": "12.000000"}
		],
		"format": {"format_name": "mov,mp4,m4a,3gp,3g2,mj2", "duration": "12.120000", "size": "5242880"}
	}`)

	info, err := parseProbeOutput(data)
	if err != nil {
		t.Fatalf("parseProbeOutput() error: %v", err)
	}

	if info.Duration != 12.12 {
		t.Errorf("Duration = %v, want 12.12", info.Duration)
	}
	if !info.HasVideo || !info.HasAudio {
		t.Errorf("HasVideo=%v HasAudio=%v, want both", info.HasVideo, info.HasAudio)
	}
	if info.Codec != "h264" || info.Width != 1920 || info.Height != 1080 {
		t.Errorf("unexpected video stream info: %+v", info)
	}
	if info.SizeBytes != 5242880 {
		t.Errorf("SizeBytes = %d", info.SizeBytes)
	}
}

func TestParseProbeOutputStreamDurationFallback(t *testing.T) {
	data := []byte(`{
		"streams": [{"codec_type": "video", "codec_name": "vp8", "duration": "31.5"}],
		"format": {"format_name": "matroska,webm", "duration": "N/A"}
	}`)

	info, err := parseProbeOutput(data)
	if err != nil {
		t.Fatalf("parseProbeOutput() error: %v", err)
	}
	if info.Duration != 31.5 {
		t.Errorf("Duration = %v, want 31.5", info.Duration)
	}
}

func TestParseProbeOutputNoVideo(t *testing.T) {
	info, err := parseProbeOutput([]byte(`{"streams":[{"codec_type":"audio"}],"format":{"duration":"3"}}`))
	if err != nil {
		t.Fatalf("parseProbeOutput() error: %v", err)
	}
	if info.HasVideo {
		t.Error("expected HasVideo=false")
	}
}

func TestParseProbeOutputInvalidJSON(t *testing.T) {
	if _, err := parseProbeOutput([]byte("not json")); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestParseSeconds(t *testing.T) {
	tests := map[string]float64{
		"":      0,
		"N/A":   0,
		"abc":   0,
		"-1":    0,
		"NaN":   0,
		"2.5":   2.5,
		" 30 ":  30,
		"30.01": 30.01,
	}
	for input, want := range tests {
		if got := parseSeconds(input); got != want {
			t.Errorf("parseSeconds(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestProbeWithFakeBinary(t *testing.T) {
	script := writeScript(t, "ffprobe", `echo '{"streams":[{"codec_type":"video","codec_name":"h264"}],"format":{"duration":"4.2"}}'`)

	info, err := NewProber(script).Probe(context.Background(), "/some/file.mp4")
	if err != nil {
		t.Fatalf("Probe() error: %v", err)
	}
	if info.Duration != 4.2 || !info.HasVideo {
		t.Errorf("unexpected info %+v", info)
	}
}

func TestProbeNotMedia(t *testing.T) {
	script := writeScript(t, "ffprobe", `echo "Invalid data found when processing input" >&2; exit 1`)

	_, err := NewProber(script).Probe(context.Background(), "/some/file.txt")
	if !errors.Is(err, ErrNotMedia) {
		t.Errorf("expected ErrNotMedia, got %v", err)
	}
}

func TestProbeEmptyPath(t *testing.T) {
	if _, err := NewProber("").Probe(context.Background(), " "); err == nil {
		t.Error("expected error for empty path")
	}
}

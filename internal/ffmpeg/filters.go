package ffmpeg

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Mode selects which filter chain is applied to an upload.
type Mode string

const (
	// ModeStabilize runs vidstabdetect then vidstabtransform with blending.
	ModeStabilize Mode = "stabilize"
	// ModeBlend runs a single temporal-blend pass without stabilization.
	ModeBlend Mode = "blend"
	// ModeConvert re-encodes to WebM without filters.
	ModeConvert Mode = "convert"
)

// Modes lists every supported mode.
var Modes = []Mode{ModeStabilize, ModeBlend, ModeConvert}

// ParseMode validates a mode name. Empty selects ModeStabilize.
func ParseMode(name string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(name))) {
	case "", ModeStabilize:
		return ModeStabilize, nil
	case ModeBlend:
		return ModeBlend, nil
	case ModeConvert:
		return ModeConvert, nil
	default:
		return "", fmt.Errorf("unknown mode %q (want stabilize, blend or convert)", name)
	}
}

// TwoPass reports whether the mode needs a detection pass first.
func (m Mode) TwoPass() bool {
	return m == ModeStabilize
}

// Pass names used for logging and metrics.
const (
	PassDetect    = "detect"
	PassTransform = "transform"
	PassEncode    = "encode"
)

// encoderArgs is the fixed WebM output configuration.
var encoderArgs = []string{
	"-c:v", "libvpx",
	"-b:v", "1.2M",
	"-c:a", "libvorbis",
	"-auto-alt-ref", "0",
	"-deadline", "good",
	"-cpu-used", "2",
	"-f", "webm",
}

// EncoderArgs returns a copy of the fixed output codec arguments.
func EncoderArgs() []string {
	return append([]string(nil), encoderArgs...)
}

const defaultFade = 0.5

// DetectArgs builds the vidstabdetect pass. It writes the transform
// descriptor to trfPath and discards the decoded frames.
func DetectArgs(input, trfPath string) []string {
	filter := "vidstabdetect=shakiness=8:accuracy=15:result=" + EscapeFilterValue(trfPath)
	return []string{
		"-i", input,
		"-vf", filter,
		"-an",
		"-f", "null",
		"-",
	}
}

// TransformArgs builds the second stabilization pass.
func TransformArgs(input, trfPath, output string, duration float64) []string {
	chain := []string{
		"vidstabtransform=input=" + EscapeFilterValue(trfPath) + ":smoothing=30:zoom=0:optzoom=1:interpol=bicubic",
		"unsharp=5:5:0.8:3:3:0.4",
		"tmix=frames=3:weights='1 2 1'",
		"hqdn3d=2:2:6:6",
		"eq=saturation=1.1:contrast=1.05",
	}
	chain = append(chain, fadeFilters(duration)...)
	return encodeArgs(input, output, strings.Join(chain, ","))
}

// BlendArgs builds the single-pass temporal blend.
func BlendArgs(input, output string, duration float64) []string {
	chain := []string{
		"tmix=frames=5:weights='1 2 3 2 1'",
		"hqdn3d=3:3:6:6",
		"eq=saturation=1.15:contrast=1.05",
	}
	chain = append(chain, fadeFilters(duration)...)
	return encodeArgs(input, output, strings.Join(chain, ","))
}

// ConvertArgs builds a plain re-encode.
func ConvertArgs(input, output string) []string {
	return encodeArgs(input, output, "")
}

func encodeArgs(input, output, filter string) []string {
	args := []string{"-i", input}
	if filter != "" {
		args = append(args, "-vf", filter)
	}
	args = append(args, encoderArgs...)
	return append(args, output)
}

// fadeFilters returns fade-in and fade-out filters that fit inside the clip.
func fadeFilters(duration float64) []string {
	if duration <= 0 || math.IsNaN(duration) {
		return nil
	}
	fade := math.Min(defaultFade, duration/4)
	outStart := math.Max(0, duration-fade)
	return []string{
		"fade=t=in:st=0:d=" + formatSeconds(fade),
		"fade=t=out:st=" + formatSeconds(outStart) + ":d=" + formatSeconds(fade),
	}
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

// EscapeFilterValue escapes a value for use as a filter option inside a
// filtergraph. Two levels apply: the option parser then the graph parser.
func EscapeFilterValue(value string) string {
	return escapeChars(escapeChars(value, `\':`), `\'[],;`)
}

func escapeChars(value, special string) string {
	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		if strings.ContainsRune(special, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

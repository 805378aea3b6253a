package ffmpeg

import (
	"slices"
	"strings"
	"testing"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		input   string
		want    Mode
		wantErr bool
	}{
		{"", ModeStabilize, false},
		{"stabilize", ModeStabilize, false},
		{" Blend ", ModeBlend, false},
		{"CONVERT", ModeConvert, false},
		{"sharpen", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseMode(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseMode(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseMode(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestTwoPass(t *testing.T) {
	if !ModeStabilize.TwoPass() {
		t.Error("stabilize should be two-pass")
	}
	if ModeBlend.TwoPass() || ModeConvert.TwoPass() {
		t.Error("blend and convert should be single-pass")
	}
}

func TestEscapeFilterValue(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"/tmp/work/abc/transform.trf", "/tmp/work/abc/transform.trf"},
		{"/tmp/a:b/transform.trf", `/tmp/a\\:b/transform.trf`},
		{"C:/x", `C\\:/x`},
		{"a,b", `a\,b`},
		{"it's", `it\\\'s`},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := EscapeFilterValue(tt.input); got != tt.want {
				t.Errorf("EscapeFilterValue(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestDetectArgs(t *testing.T) {
	args := DetectArgs("/w/input.mp4", "/w/transform.trf")

	if !slices.Contains(args, "/w/input.mp4") {
		t.Errorf("input missing from %v", args)
	}
	vf := argAfter(args, "-vf")
	if !strings.HasPrefix(vf, "vidstabdetect=") || !strings.Contains(vf, "result=/w/transform.trf") {
		t.Errorf("unexpected detect filter %q", vf)
	}
	if argAfter(args, "-f") != "null" {
		t.Errorf("detect pass should discard output, got %v", args)
	}
	if args[len(args)-1] != "-" {
		t.Errorf("last arg = %q, want -", args[len(args)-1])
	}
}

func TestTransformArgs(t *testing.T) {
	args := TransformArgs("/w/input.mp4", "/w/transform.trf", "/w/output.webm", 10)

	vf := argAfter(args, "-vf")
	for _, want := range []string{
		"vidstabtransform=input=/w/transform.trf",
		"unsharp=",
		"tmix=",
		"hqdn3d=",
		"eq=",
		"fade=t=in:st=0:d=0.500",
		"fade=t=out:st=9.500:d=0.500",
	} {
		if !strings.Contains(vf, want) {
			t.Errorf("filter %q missing %q", vf, want)
		}
	}
	assertEncoderArgs(t, args)
	if args[len(args)-1] != "/w/output.webm" {
		t.Errorf("output should be last, got %v", args)
	}
}

func TestBlendArgs(t *testing.T) {
	args := BlendArgs("in.mov", "out.webm", 2)
	vf := argAfter(args, "-vf")
	if strings.Contains(vf, "vidstab") {
		t.Errorf("blend must not stabilize: %q", vf)
	}
	if !strings.HasPrefix(vf, "tmix=") {
		t.Errorf("blend should start with tmix: %q", vf)
	}
	// 2s clip gets 0.5s fades
	if !strings.Contains(vf, "fade=t=out:st=1.500:d=0.500") {
		t.Errorf("unexpected fade-out in %q", vf)
	}
	assertEncoderArgs(t, args)
}

func TestConvertArgs(t *testing.T) {
	args := ConvertArgs("in.mov", "out.webm")
	if slices.Contains(args, "-vf") {
		t.Errorf("convert should have no filters: %v", args)
	}
	assertEncoderArgs(t, args)
}

func TestFadeFilters(t *testing.T) {
	if got := fadeFilters(0); got != nil {
		t.Errorf("fadeFilters(0) = %v, want nil", got)
	}

	short := fadeFilters(1)
	if len(short) != 2 {
		t.Fatalf("expected two fades, got %v", short)
	}
	if short[0] != "fade=t=in:st=0:d=0.250" || short[1] != "fade=t=out:st=0.750:d=0.250" {
		t.Errorf("short clip fades = %v", short)
	}
}

func TestEncoderArgsIsCopy(t *testing.T) {
	a := EncoderArgs()
	a[0] = "mutated"
	if EncoderArgs()[0] != "-c:v" {
		t.Error("EncoderArgs should return a copy")
	}
}

func assertEncoderArgs(t *testing.T, args []string) {
	t.Helper()
	want := map[string]string{
		"-c:v":          "libvpx",
		"-b:v":          "1.2M",
		"-c:a":          "libvorbis",
		"-auto-alt-ref": "0",
		"-deadline":     "good",
		"-cpu-used":     "2",
	}
	for flag, value := range want {
		if got := argAfter(args, flag); got != value {
			t.Errorf("%s = %q, want %q", flag, got, value)
		}
	}
}

func argAfter(args []string, flag string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

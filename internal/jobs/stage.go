package jobs

// Stage is the step a job is currently in.
type Stage string

const (
	StageQueued       Stage = "queued"
	StageUploading    Stage = "uploading"
	StageProbing      Stage = "probing"
	StageDetecting    Stage = "detecting"
	StageTransforming Stage = "transforming"
	StageEncoding     Stage = "encoding"
	StageStreaming    Stage = "streaming"
)

// window is the slice of the 0-100 progress range a stage reports into.
type window struct {
	start float64
	end   float64
}

var windows = map[Stage]window{
	StageQueued:       {0, 0},
	StageUploading:    {0, 20},
	StageProbing:      {20, 25},
	StageDetecting:    {25, 50},
	StageTransforming: {50, 95},
	StageEncoding:     {25, 95},
	StageStreaming:    {95, 100},
}

// Window returns the progress range owned by s.
func (s Stage) Window() (start, end float64) {
	w, ok := windows[s]
	if !ok {
		return 0, 0
	}
	return w.start, w.end
}

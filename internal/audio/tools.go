package audio

import (
	"fmt"
	"os/exec"
)

// ToolStatus reports where a required binary was found.
type ToolStatus struct {
	Name string
	Path string
	Err  error
}

// CheckTools verifies that ffmpeg and ffprobe can be executed. Empty paths
// fall back to the binary names looked up in PATH.
func CheckTools(ffmpegPath, ffprobePath string) ([]ToolStatus, error) {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}

	var firstErr error
	statuses := make([]ToolStatus, 0, 2)
	for _, name := range []string{ffmpegPath, ffprobePath} {
		st := ToolStatus{Name: name}
		path, err := exec.LookPath(name)
		if err != nil {
			st.Err = fmt.Errorf("%w: %s (install ffmpeg: https://ffmpeg.org/download.html, brew install ffmpeg, apt install ffmpeg)", ErrToolNotFound, name)
			if firstErr == nil {
				firstErr = st.Err
			}
		} else {
			st.Path = path
		}
		statuses = append(statuses, st)
	}
	return statuses, firstErr
}

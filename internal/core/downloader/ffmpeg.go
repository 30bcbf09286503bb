package downloader

import (
	"context"
	"fmt"

	"gopkg.in/vansante/go-ffprobe.v2"

	"github.com/sumannaidur/extractor/internal/shared"
)

// Prober verifies a downloaded artifact.
type Prober interface {
	Probe(ctx context.Context, path string) error
}

// FFprobe checks that an artifact carries an audio stream.
type FFprobe struct{}

func (FFprobe) Probe(ctx context.Context, path string) error {
	data, err := ffprobe.ProbeURL(ctx, path)
	if err != nil {
		return fmt.Errorf("ffprobe failed: %w", err)
	}
	stream := data.FirstAudioStream()
	if stream == nil {
		return fmt.Errorf("no audio stream in %s", path)
	}
	if stream.Channels != 1 {
		return fmt.Errorf("expected mono audio, got %d channels", stream.Channels)
	}
	return nil
}

// MissingTools returns the external binaries that are not available in PATH.
func MissingTools(ytDlpPath string, withProbe bool) []string {
	tools := []string{ytDlpPath, "ffmpeg"}
	if withProbe {
		tools = append(tools, "ffprobe")
	}
	var missing []string
	for _, tool := range tools {
		if !shared.LookupTool(tool) {
			missing = append(missing, tool)
		}
	}
	return missing
}

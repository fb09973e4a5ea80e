package media_service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/tidwall/gjson"
)

var (
	ErrNoDuration   = errors.New("media has no duration")
	ErrProbeTimeout = errors.New("media probe timed out")
)

// FFProbe reads media duration with the ffprobe binary. The stream is fed
// through stdin so nothing is written to disk.
type FFProbe struct {
	path string
}

// NewFFProbe create ffprobe wrapper; path defaults to "ffprobe" on PATH
func NewFFProbe(path string) *FFProbe {
	if path == "" {
		path = "ffprobe"
	}
	return &FFProbe{path: path}
}

// Duration returns the container duration in seconds. The process is
// killed when ctx ends.
func (p *FFProbe) Duration(ctx context.Context, r io.Reader) (float64, error) {
	cmd := exec.CommandContext(ctx, p.path,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "json",
		"-i", "pipe:0",
	)
	cmd.Stdin = r
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return 0, fmt.Errorf("%w: %w", ErrProbeTimeout, ctx.Err())
		}
		return 0, fmt.Errorf("ffprobe failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return ParseDuration(stdout.Bytes())
}

// ParseDuration extracts format.duration from ffprobe JSON output
func ParseDuration(output []byte) (float64, error) {
	if !gjson.ValidBytes(output) {
		return 0, fmt.Errorf("invalid ffprobe output: %q", truncate(output, 120))
	}
	duration := gjson.GetBytes(output, "format.duration")
	if !duration.Exists() {
		return 0, ErrNoDuration
	}
	seconds := duration.Float()
	if seconds <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrNoDuration, duration.String())
	}
	return seconds, nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}

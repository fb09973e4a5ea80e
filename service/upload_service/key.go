package upload_service

import (
	"fmt"
	"path"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// DefaultDirectory used when Init is called without a directory
const DefaultDirectory = "uploads"

// keyClock issues strictly increasing nanosecond stamps, even when the
// wall clock stalls or steps backwards
type keyClock struct {
	last atomic.Int64
	now  func() time.Time
}

func (c *keyClock) next() int64 {
	for {
		last := c.last.Load()
		stamp := c.now().UnixNano()
		if stamp <= last {
			stamp = last + 1
		}
		if c.last.CompareAndSwap(last, stamp) {
			return stamp
		}
	}
}

// cleanFileName reduces a client-supplied name to its base name
func cleanFileName(fileName string) (string, error) {
	name := path.Base(strings.ReplaceAll(strings.TrimSpace(fileName), `\`, "/"))
	if name == "" || name == "." || name == "/" || name == ".." {
		return "", fmt.Errorf("%w: file name %q", ErrInvalidArgument, fileName)
	}
	return name, nil
}

// cleanDirectory normalizes a directory to a relative slash path without
// leading/trailing slashes or parent references
func cleanDirectory(directory string) string {
	dir := strings.TrimPrefix(path.Clean("/"+strings.ReplaceAll(directory, `\`, "/")), "/")
	if dir == "" {
		return DefaultDirectory
	}
	return dir
}

// buildKey inserts the stamp before the last extension:
// ("uploads/videos", "clip.mp4", 42) -> "uploads/videos/clip-42.mp4"
func buildKey(directory, fileName string, stamp int64) string {
	ext := path.Ext(fileName)
	base := strings.TrimSuffix(fileName, ext)
	if base == "" {
		// dotfile such as ".env"
		base, ext = fileName, ""
	}
	return directory + "/" + base + "-" + strconv.FormatInt(stamp, 10) + ext
}

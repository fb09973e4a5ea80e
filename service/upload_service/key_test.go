package upload_service

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildKey(t *testing.T) {
	tests := []struct {
		directory string
		fileName  string
		want      string
	}{
		{"uploads/videos", "clip.mp4", "uploads/videos/clip-42.mp4"},
		{"uploads", "archive.tar.gz", "uploads/archive.tar-42.gz"},
		{"uploads", "README", "uploads/README-42"},
		{"uploads", ".env", "uploads/.env-42"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, buildKey(tt.directory, tt.fileName, 42), tt.fileName)
	}
}

func TestCleanDirectory(t *testing.T) {
	assert.Equal(t, DefaultDirectory, cleanDirectory(""))
	assert.Equal(t, DefaultDirectory, cleanDirectory("/"))
	assert.Equal(t, "a/b", cleanDirectory("/a/b/"))
	assert.Equal(t, "etc", cleanDirectory("../../etc"))
	assert.Equal(t, "a/b", cleanDirectory(`a\b`))
}

func TestCleanFileName(t *testing.T) {
	name, err := cleanFileName("../../secret/clip.mp4")
	require.NoError(t, err)
	assert.Equal(t, "clip.mp4", name)

	name, err = cleanFileName(`C:\Users\me\photo.jpg`)
	require.NoError(t, err)
	assert.Equal(t, "photo.jpg", name)

	for _, bad := range []string{"", "  ", "/", ".."} {
		_, err := cleanFileName(bad)
		assert.ErrorIs(t, err, ErrInvalidArgument, "%q", bad)
	}
}

func TestKeyClockIsStrictlyIncreasing(t *testing.T) {
	frozen := time.Unix(1700000000, 0)
	clock := &keyClock{now: func() time.Time { return frozen }}

	const n = 200
	stamps := make(chan int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			stamps <- clock.next()
		}()
	}
	wg.Wait()
	close(stamps)

	seen := map[int64]bool{}
	for s := range stamps {
		assert.False(t, seen[s])
		assert.GreaterOrEqual(t, s, frozen.UnixNano())
		seen[s] = true
	}
	assert.Len(t, seen, n)
}

func TestCoarseType(t *testing.T) {
	assert.Equal(t, "video", string(coarseType("video/mp4")))
	assert.Equal(t, "image", string(coarseType("IMAGE/PNG")))
	assert.Equal(t, "text", string(coarseType("text/plain; charset=utf-8")))
	assert.Equal(t, "application", string(coarseType("")))
}

package audio

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Artifact is a temporary audio file. Extractor creates it; Transcriber
// consumes and removes it.
type Artifact struct {
	Path string
	Size int64
}

// newArtifactPath returns a process-unique mp3 path under dir (os.TempDir when empty).
func newArtifactPath(dir string) string {
	if dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "bilibili_audio_"+uuid.NewString()+".mp3")
}

// Remove deletes the file. A file that is already gone is not an error.
func (a Artifact) Remove() error {
	if a.Path == "" {
		return nil
	}
	err := os.Remove(a.Path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("audio: artifact cleanup failed", slog.String("path", a.Path), slog.Any("error", err))
		return err
	}
	return nil
}

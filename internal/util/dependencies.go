package util

import (
	"fmt"
	"os/exec"

	"go.uber.org/zap"
)

// CheckDependencies verifies the fetch tool can be started. ffmpeg is only
// needed for merging formats and audio extraction, so its absence is a
// warning.
func CheckDependencies(ytdlpPath string, log *zap.Logger) error {
	path, err := exec.LookPath(ytdlpPath)
	if err != nil {
		return fmt.Errorf("%s not found (REQUIRED): %w", ytdlpPath, err)
	}
	log.Info("Found fetch tool", zap.String("path", path))

	if path, err := exec.LookPath("ffmpeg"); err != nil {
		log.Warn("ffmpeg not found, format merging and audio extraction will fail")
	} else {
		log.Info("Found ffmpeg", zap.String("path", path))
	}
	return nil
}

package util

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrNoArtifact = errors.New("no file with the expected prefix")

// EnsureScratchDir creates dir if needed and removes anything left over
// from a previous run.
func EnsureScratchDir(dir string, log *zap.Logger) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create scratch dir: %w", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read scratch dir: %w", err)
	}
	for _, e := range entries {
		p := filepath.Join(dir, e.Name())
		if err := os.RemoveAll(p); err != nil {
			log.Warn("Failed to remove leftover", zap.String("path", p), zap.Error(err))
		}
	}
	log.Info("Scratch dir ready", zap.String("dir", dir), zap.Int("cleared", len(entries)))
	return nil
}

// NewArtifactPrefix returns a collision-free file name prefix such as
// "media_0b7e...". Concurrent requests never share one.
func NewArtifactPrefix(tag string) string {
	return fmt.Sprintf("%s_%s", tag, uuid.NewString())
}

// IsPartialFile reports yt-dlp's in-progress and fragment files.
func IsPartialFile(name string) bool {
	return strings.HasSuffix(name, ".part") ||
		strings.Contains(name, ".part-Frag") ||
		strings.HasSuffix(name, ".ytdl") ||
		strings.HasSuffix(name, ".temp")
}

// FindArtifact returns the path of the first complete file in dir whose
// name starts with prefix. The fetch tool picks the extension, so the
// final name cannot be known in advance.
func FindArtifact(dir, prefix string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read scratch dir: %w", err)
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix) || IsPartialFile(name) {
			continue
		}
		return filepath.Join(dir, name), nil
	}
	return "", ErrNoArtifact
}

// RemoveByPrefix deletes every entry in dir starting with prefix,
// including partial files, and returns how many were removed.
func RemoveByPrefix(dir, prefix string, log *zap.Logger) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Warn("Cleanup could not read scratch dir", zap.String("dir", dir), zap.Error(err))
		return 0
	}
	cleaned := 0
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		p := filepath.Join(dir, e.Name())
		if err := os.RemoveAll(p); err != nil {
			log.Warn("Failed to remove artifact", zap.String("path", p), zap.Error(err))
			continue
		}
		cleaned++
	}
	return cleaned
}

// CleanupStale removes scratch entries older than maxAge. Requests clean
// up after themselves; this catches anything a crash left behind.
func CleanupStale(dir string, maxAge time.Duration, log *zap.Logger) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	now := time.Now()
	removed := 0
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) <= maxAge {
			continue
		}
		p := filepath.Join(dir, e.Name())
		if err := os.RemoveAll(p); err == nil {
			log.Info("Cleaned up old temp", zap.String("name", e.Name()))
			removed++
		}
	}

	if ds, err := GetDiskSpace(dir); err == nil {
		log.Debug("Disk space",
			zap.Float64("availGB", ds.AvailGB),
			zap.Float64("totalGB", ds.TotalGB),
			zap.Float64("usedGB", ds.UsedGB))
	}
	return removed
}

// StartCleanupInterval sweeps dir every interval until ctx is done.
func StartCleanupInterval(ctx context.Context, dir string, interval, maxAge time.Duration, log *zap.Logger) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				CleanupStale(dir, maxAge, log)
			}
		}
	}()
}

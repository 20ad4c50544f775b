package logging

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

const logDirCleanerInterval = time.Minute

var logDirCleanerCancel context.CancelFunc

// startLogDirCleanerLocked replaces the running cleaner. writerMu must be held.
func startLogDirCleanerLocked(logDir string, maxTotalSizeMB int, activePath string) {
	stopLogDirCleanerLocked()

	dir := strings.TrimSpace(logDir)
	if maxTotalSizeMB <= 0 || dir == "" {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	logDirCleanerCancel = cancel
	go runLogDirCleaner(ctx, filepath.Clean(dir), int64(maxTotalSizeMB)<<20, activePath)
}

func stopLogDirCleanerLocked() {
	if logDirCleanerCancel != nil {
		logDirCleanerCancel()
		logDirCleanerCancel = nil
	}
}

// runLogDirCleaner trims once immediately and then every logDirCleanerInterval.
func runLogDirCleaner(ctx context.Context, logDir string, maxBytes int64, activePath string) {
	ticker := time.NewTicker(logDirCleanerInterval)
	defer ticker.Stop()

	for {
		switch removed, err := trimLogDir(logDir, maxBytes, activePath); {
		case err != nil:
			log.WithError(err).Warn("logging: trim log directory")
		case removed > 0:
			log.Debugf("logging: trimmed %d rotated log file(s)", removed)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

type logFile struct {
	path    string
	size    int64
	modTime time.Time
}

// trimLogDir deletes the oldest rotated logs until the directory fits in maxBytes and
// returns how many were deleted. The file being written (activePath) always survives.
func trimLogDir(logDir string, maxBytes int64, activePath string) (int, error) {
	logDir = strings.TrimSpace(logDir)
	if maxBytes <= 0 || logDir == "" {
		return 0, nil
	}
	files, total, err := scanLogDir(filepath.Clean(logDir))
	if err != nil || total <= maxBytes {
		return 0, err
	}
	slices.SortFunc(files, func(a, b logFile) int { return a.modTime.Compare(b.modTime) })

	keep := filepath.Clean(activePath)
	removed := 0
	for _, f := range files {
		if total <= maxBytes {
			break
		}
		if activePath != "" && f.path == keep {
			continue
		}
		if errRemove := os.Remove(f.path); errRemove != nil {
			log.WithError(errRemove).Warnf("logging: cannot remove %s", filepath.Base(f.path))
			continue
		}
		total -= f.size
		removed++
	}
	return removed, nil
}

// scanLogDir lists regular *.log and *.log.gz files; a missing directory is empty.
func scanLogDir(dir string) (files []logFile, total int64, err error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}
	for _, entry := range entries {
		name := strings.ToLower(entry.Name())
		if !strings.HasSuffix(name, ".log") && !strings.HasSuffix(name, ".log.gz") {
			continue
		}
		info, errInfo := entry.Info()
		if errInfo != nil || !info.Mode().IsRegular() {
			continue
		}
		files = append(files, logFile{path: filepath.Join(dir, entry.Name()), size: info.Size(), modTime: info.ModTime()})
		total += info.Size()
	}
	return files, total, nil
}

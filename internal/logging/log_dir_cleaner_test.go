package logging

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"
)

func TestTrimLogDir(t *testing.T) {
	tests := []struct {
		name        string
		files       map[string]int
		maxBytes    int64
		wantRemoved int
		wantGone    []string
		wantKept    []string
	}{
		{
			name:        "oldest first",
			files:       map[string]int{"a-old.log": 60, "b-mid.log": 60, "userdesk.log": 60},
			maxBytes:    120,
			wantRemoved: 1,
			wantGone:    []string{"a-old.log"},
			wantKept:    []string{"b-mid.log", "userdesk.log"},
		},
		{
			name:        "active file kept even when oldest",
			files:       map[string]int{"userdesk.log": 200, "z-other.log.gz": 50},
			maxBytes:    100,
			wantRemoved: 1,
			wantGone:    []string{"z-other.log.gz"},
			wantKept:    []string{"userdesk.log"},
		},
		{
			name:        "non log files ignored",
			files:       map[string]int{"notes.txt": 500, "userdesk.log": 10},
			maxBytes:    100,
			wantRemoved: 0,
			wantKept:    []string{"notes.txt", "userdesk.log"},
		},
		{
			name:        "within limit",
			files:       map[string]int{"a.log": 10, "userdesk.log": 10},
			maxBytes:    100,
			wantRemoved: 0,
			wantKept:    []string{"a.log", "userdesk.log"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			// userdesk.log is always the oldest; the rest are ordered by name.
			writeLogFile(t, filepath.Join(dir, "userdesk.log"), tt.files["userdesk.log"], time.Unix(1, 0))
			offset := int64(2)
			for _, name := range sortedNames(tt.files) {
				if name == "userdesk.log" {
					continue
				}
				writeLogFile(t, filepath.Join(dir, name), tt.files[name], time.Unix(offset, 0))
				offset++
			}

			removed, err := trimLogDir(dir, tt.maxBytes, filepath.Join(dir, "userdesk.log"))
			if err != nil {
				t.Fatalf("trimLogDir() error = %v", err)
			}
			if removed != tt.wantRemoved {
				t.Fatalf("removed = %d, want %d", removed, tt.wantRemoved)
			}
			for _, name := range tt.wantGone {
				if _, errStat := os.Stat(filepath.Join(dir, name)); !os.IsNotExist(errStat) {
					t.Errorf("%s should be removed, stat error: %v", name, errStat)
				}
			}
			for _, name := range tt.wantKept {
				if _, errStat := os.Stat(filepath.Join(dir, name)); errStat != nil {
					t.Errorf("%s should remain, stat error: %v", name, errStat)
				}
			}
		})
	}
}

func TestTrimLogDirMissingDirectory(t *testing.T) {
	removed, err := trimLogDir(filepath.Join(t.TempDir(), "absent"), 10, "")
	if err != nil || removed != 0 {
		t.Fatalf("trimLogDir() = %d, %v", removed, err)
	}
}

func sortedNames(files map[string]int) []string {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func writeLogFile(t *testing.T, path string, size int, modTime time.Time) {
	t.Helper()

	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := os.Chtimes(path, modTime, modTime); err != nil {
		t.Fatalf("set times: %v", err)
	}
}

package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// FilePrefix prefixes every snapshot file name.
const FilePrefix = "oldAvrSettings-"

// FileTimeLayout formats the capture time in snapshot file names.
const FileTimeLayout = "Jan-02-2006-15-04-05"

// Meta records where a snapshot came from.
type Meta struct {
	TakenAt  time.Time `json:"takenAt"`
	Host     string    `json:"host,omitempty"`
	Port     string    `json:"port,omitempty"`
	Board    string    `json:"board,omitempty"`
	Firmware string    `json:"firmware,omitempty"`
}

// FileName returns the snapshot file name for a capture time.
func FileName(takenAt time.Time) string {
	return FilePrefix + takenAt.Format(FileTimeLayout) + ".json"
}

// Save writes the snapshot into dir and returns the file path.
// The file is synced before Save returns. An existing snapshot is never
// replaced.
func Save(dir string, s Snapshot, meta Meta) (string, error) {
	if meta.TakenAt.IsZero() {
		meta.TakenAt = time.Now()
	}
	w := s.wire()
	w.Meta = &meta
	data, err := json.MarshalIndent(&w, "", "  ")
	if err != nil {
		return "", err
	}
	if dir == "" {
		dir = "."
	}
	if err = os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}
	fn, err := reserve(dir, meta.TakenAt)
	if err != nil {
		return "", err
	}
	tmp := fn + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err == nil {
		if _, err = f.Write(data); err == nil {
			err = f.Sync()
		}
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
	}
	if err == nil {
		err = os.Rename(tmp, fn)
	}
	if err != nil {
		os.Remove(tmp)
		os.Remove(fn)
		return "", fmt.Errorf("write snapshot %s: %w", fn, err)
	}
	return fn, nil
}

// maxNameSuffix bounds the names tried for snapshots taken in one second.
const maxNameSuffix = 100

// reserve creates an empty file under a free snapshot name. Names taken in
// the same second get a -N suffix.
func reserve(dir string, takenAt time.Time) (string, error) {
	base := strings.TrimSuffix(FileName(takenAt), ".json")
	for n := 0; n < maxNameSuffix; n++ {
		name := base + ".json"
		if n > 0 {
			name = base + "-" + strconv.Itoa(n) + ".json"
		}
		fn := filepath.Join(dir, name)
		f, err := os.OpenFile(fn, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if os.IsExist(err) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create snapshot %s: %w", fn, err)
		}
		return fn, f.Close()
	}
	return "", fmt.Errorf("no free snapshot name for %s", base)
}

// parseName returns the capture time and suffix of a snapshot file name.
func parseName(name string) (time.Time, int, bool) {
	if !strings.HasPrefix(name, FilePrefix) || !strings.HasSuffix(name, ".json") {
		return time.Time{}, 0, false
	}
	stamp := name[len(FilePrefix) : len(name)-len(".json")]
	var seq int
	if len(stamp) > len(FileTimeLayout) {
		suffix := stamp[len(FileTimeLayout):]
		n, err := strconv.Atoi(strings.TrimPrefix(suffix, "-"))
		if err != nil || suffix[0] != '-' || n <= 0 {
			return time.Time{}, 0, false
		}
		seq, stamp = n, stamp[:len(FileTimeLayout)]
	}
	at, err := time.Parse(FileTimeLayout, stamp)
	if err != nil {
		return time.Time{}, 0, false
	}
	return at, seq, true
}

// Load reads a snapshot file written by Save.
func Load(fn string) (Snapshot, Meta, error) {
	data, err := os.ReadFile(fn)
	if err != nil {
		return Snapshot{}, Meta{}, err
	}
	var w wireSnapshot
	if err = json.Unmarshal(data, &w); err != nil {
		return Snapshot{}, Meta{}, fmt.Errorf("parse snapshot %s: %w", fn, err)
	}
	var meta Meta
	if w.Meta != nil {
		meta = *w.Meta
	}
	return w.snapshot(), meta, nil
}

// List returns snapshot files in dir, oldest first.
func List(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, FilePrefix+"*.json"))
	if err != nil {
		return nil, err
	}
	type entry struct {
		fn  string
		at  time.Time
		seq int
	}
	entries := make([]entry, 0, len(matches))
	for _, fn := range matches {
		at, seq, ok := parseName(filepath.Base(fn))
		if !ok {
			continue
		}
		entries = append(entries, entry{fn: fn, at: at, seq: seq})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].at.Equal(entries[j].at) {
			return entries[i].at.Before(entries[j].at)
		}
		return entries[i].seq < entries[j].seq
	})
	files := make([]string, len(entries))
	for n, e := range entries {
		files[n] = e.fn
	}
	return files, nil
}

// Package cache implements the task freshness check from spec.md §4.2
// step 4: the mandatory mtime rule, plus an additive content-hash gate
// persisted under .p/cache/<task>.json that catches clock-skew false
// positives the mtime rule alone would miss. --no-cache bypasses both
// gates outright, forcing the task to run.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// Record is the persisted state for one task's content-hash gate.
type Record struct {
	Hash string `json:"hash"`
}

// Expand resolves a list of glob patterns (relative to dir, ** supported)
// into a sorted, de-duplicated list of matching file paths.
func Expand(dir string, patterns []string) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for _, pattern := range patterns {
		matches, err := doublestar.Glob(os.DirFS(dir), pattern)
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			abs := filepath.Join(dir, m)
			if !seen[abs] {
				seen[abs] = true
				out = append(out, abs)
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

// Fresh reports whether a task is up to date per spec.md §8: both source
// and output sets must be non-empty after expansion, and the most recent
// source mtime must be strictly earlier than the least recent output
// mtime. When that holds, the content hash of sources is consulted as a
// stricter secondary gate: a changed hash means not fresh even if mtimes
// say otherwise. A task with no prior recorded hash (its first ever run)
// passes this secondary gate — the hash is additive and never makes a
// fresh task look stale on its own. noCache bypasses freshness entirely:
// the task always runs, matching --no-cache's documented behavior.
func Fresh(dir, taskName string, sourcePatterns, outputPatterns []string, noCache bool) (bool, error) {
	if noCache {
		return false, nil
	}

	sources, err := Expand(dir, sourcePatterns)
	if err != nil {
		return false, err
	}
	outputs, err := Expand(dir, outputPatterns)
	if err != nil {
		return false, err
	}
	if len(sources) == 0 || len(outputs) == 0 {
		return false, nil
	}

	maxSource, err := latestMtime(sources)
	if err != nil {
		return false, err
	}
	minOutput, err := earliestMtime(outputs)
	if err != nil {
		return false, err
	}
	if !maxSource.Before(minOutput) {
		return false, nil
	}

	hash, err := hashFiles(sources)
	if err != nil {
		return false, err
	}
	prev, err := load(dir, taskName)
	if err != nil {
		return false, err
	}
	return prev == nil || prev.Hash == hash, nil
}

// Save persists the content hash of sources for taskName, after a
// successful run (spec.md §4.2 step 10).
func Save(dir, taskName string, sourcePatterns []string) error {
	sources, err := Expand(dir, sourcePatterns)
	if err != nil {
		return err
	}
	hash, err := hashFiles(sources)
	if err != nil {
		return err
	}
	return store(dir, taskName, &Record{Hash: hash})
}

func latestMtime(paths []string) (time.Time, error) {
	var latest time.Time
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return time.Time{}, err
		}
		if info.ModTime().After(latest) {
			latest = info.ModTime()
		}
	}
	return latest, nil
}

func earliestMtime(paths []string) (time.Time, error) {
	var earliest time.Time
	for i, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return time.Time{}, err
		}
		if i == 0 || info.ModTime().Before(earliest) {
			earliest = info.ModTime()
		}
	}
	return earliest, nil
}

func hashFiles(paths []string) (string, error) {
	h := sha256.New()
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return "", err
		}
		_, err = io.Copy(h, f)
		f.Close()
		if err != nil {
			return "", err
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func cachePath(dir, taskName string) string {
	return filepath.Join(dir, ".p", "cache", taskName+".json")
}

func load(dir, taskName string) (*Record, error) {
	data, err := os.ReadFile(cachePath(dir, taskName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, nil
	}
	return &rec, nil
}

func store(dir, taskName string, rec *Record) error {
	path := cachePath(dir, taskName)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

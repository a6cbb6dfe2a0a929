package workspace

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"
)

type artifactEntry struct {
	Path    string
	ModTime time.Time
	Size    int64
}

// SweepLimits bound the workspace. Zero values are ignored.
type SweepLimits struct {
	MaxAge        time.Duration
	MaxFiles      int
	MaxTotalBytes int64
	// MinAge shields files that may still belong to a running render or
	// upload from the MaxFiles and MaxTotalBytes caps.
	MinAge time.Duration
}

// Sweep removes artifacts left behind by crashed or failed runs. Files older
// than MaxAge go first, then the oldest files until MaxFiles and
// MaxTotalBytes hold, never touching files younger than MinAge. Empty user
// directories idle for longer than MaxAge are removed afterwards.
func (m *Manager) Sweep(limits SweepLimits) (int, error) {
	maxAge, maxFiles, maxTotalBytes := limits.MaxAge, limits.MaxFiles, limits.MaxTotalBytes
	if maxAge <= 0 && maxFiles <= 0 && maxTotalBytes <= 0 {
		return 0, nil
	}
	now := time.Now()
	removed := 0

	var kept []artifactEntry
	total := int64(0)

	walkErr := filepath.WalkDir(m.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		// Never follow symlinks.
		if d.Type()&os.ModeSymlink != 0 {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		if maxAge > 0 && now.Sub(info.ModTime()) > maxAge {
			if os.Remove(path) == nil {
				removed++
			}
			return nil
		}
		kept = append(kept, artifactEntry{
			Path:    path,
			ModTime: info.ModTime(),
			Size:    info.Size(),
		})
		total += info.Size()
		return nil
	})
	if walkErr != nil && !os.IsNotExist(walkErr) {
		return removed, walkErr
	}

	sort.Slice(kept, func(i, j int) bool { return kept[i].ModTime.Before(kept[j].ModTime) })
	needPrune := func() bool {
		if maxFiles > 0 && len(kept) > maxFiles {
			return true
		}
		return maxTotalBytes > 0 && total > maxTotalBytes
	}
	for needPrune() && len(kept) > 0 {
		old := kept[0]
		// Sorted oldest first, so everything after is in flight too.
		if limits.MinAge > 0 && now.Sub(old.ModTime) < limits.MinAge {
			break
		}
		kept = kept[1:]
		total -= old.Size
		if os.Remove(old.Path) == nil {
			removed++
		}
	}

	if maxAge <= 0 {
		return removed, nil
	}
	// Best-effort remove idle empty dirs (bottom-up). Staging dirs of failed
	// renders end up here too.
	var dirs []string
	_ = filepath.WalkDir(m.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.Type()&os.ModeSymlink != 0 {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() && filepath.Clean(path) != m.root {
			dirs = append(dirs, path)
		}
		return nil
	})
	sort.Slice(dirs, func(i, j int) bool { return len(dirs[i]) > len(dirs[j]) })
	for _, d := range dirs {
		info, err := os.Stat(d)
		if err != nil || now.Sub(info.ModTime()) <= maxAge {
			continue
		}
		// Fails on non-empty dirs, which is what we want.
		_ = os.Remove(d)
	}
	return removed, nil
}

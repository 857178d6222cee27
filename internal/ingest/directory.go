// Package ingest collects local document files for batch audits.
package ingest

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/funeral-audit/constants"
)

// DirStats summarizes one directory walk.
type DirStats struct {
	Scanned int
	Matched int
	Skipped int
}

// CollectDirectory walks root in lexical order and returns every file whose
// extension the converter accepts. Hidden entries are skipped when
// skipHidden is set.
func CollectDirectory(root string, skipHidden bool) ([]string, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, errors.New("root path is required")
	}

	var (
		paths []string
		stats DirStats
	)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if skipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			stats.Skipped++
			return nil
		}
		if d.IsDir() {
			return nil
		}
		stats.Scanned++
		if constants.MapExtToFormat(filepath.Ext(path)) == "" {
			stats.Skipped++
			return nil
		}
		stats.Matched++
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, stats, fmt.Errorf("walk: %w", err)
	}
	return paths, stats, nil
}

func IsHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}

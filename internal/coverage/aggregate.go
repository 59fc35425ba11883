package coverage

import (
	"math"
	"path/filepath"
	"strings"
)

// LineRange is a zero-based source range covering exactly one line
// (Start == End always).
type LineRange struct {
	Start int
	End   int
}

// FileRanges holds the covered and uncovered ranges of one file.
// A line with a positive hit count is covered, a zero count is
// uncovered; there is no third state.
type FileRanges struct {
	Covered   []LineRange
	Uncovered []LineRange
}

// FileNode is the per-file leaf of the coverage rollup
type FileNode struct {
	Name  string
	Path  string
	Lines int
	Hits  int
}

// Percent returns hit percentage, NaN when no lines are instrumented
func (f FileNode) Percent() float64 {
	if f.Lines == 0 {
		return math.NaN()
	}
	return float64(f.Hits) / float64(f.Lines) * 100
}

// PackageNode aggregates the files of one in-scope package. Its
// totals always equal the sum of its children's totals.
type PackageNode struct {
	Name  string
	Lines int
	Hits  int
	Files []FileNode
}

// Percent returns hit percentage, NaN when no lines are instrumented
func (p *PackageNode) Percent() float64 {
	if p.Lines == 0 {
		return math.NaN()
	}
	return float64(p.Hits) / float64(p.Lines) * 100
}

// Config directs coverage aggregation
type Config struct {
	// WorkspaceRoot is joined with plain relative record paths to get
	// absolute paths.
	WorkspaceRoot string
	// ModuleRoot is the root package names are computed relative to.
	// Defaults to WorkspaceRoot.
	ModuleRoot string
	// Packages lists the in-scope package directories. Records whose
	// package is not exactly in this list are skipped, no prefix
	// matches.
	Packages []string
	// GeneratedPrefix marks record paths that refer to generated
	// files (e.g. "bazel-out/").
	GeneratedPrefix string
	// Remap translates a generated file path back to its authored
	// source path. Records it cannot place are skipped.
	Remap func(path string) (string, bool)
}

// Result is one coverage aggregation: per-file line ranges plus the
// package rollup. Rebuilt from scratch on every coverage run, never
// partially updated.
type Result struct {
	Files    map[string]*FileRanges // Absolute source path -> ranges
	Packages []*PackageNode
}

// Aggregate buckets file coverage records by containing package and
// folds per-line hit counts into covered/uncovered ranges.
func Aggregate(records []FileRecord, cfg Config) *Result {
	moduleRoot := cfg.ModuleRoot
	if moduleRoot == "" {
		moduleRoot = cfg.WorkspaceRoot
	}

	inScope := make(map[string]bool, len(cfg.Packages))
	for _, pkg := range cfg.Packages {
		inScope[pkg] = true
	}

	result := &Result{Files: make(map[string]*FileRanges)}
	packages := make(map[string]*PackageNode)

	for _, rec := range records {
		absPath, ok := resolvePath(rec.Path, cfg)
		if !ok {
			continue
		}

		pkg, ok := packageOf(absPath, moduleRoot)
		if !ok || !inScope[pkg] {
			continue
		}

		node, ok := packages[pkg]
		if !ok {
			node = &PackageNode{Name: pkg}
			packages[pkg] = node
			result.Packages = append(result.Packages, node)
		}

		node.Lines += rec.Found
		node.Hits += rec.Hit
		node.Files = append(node.Files, FileNode{
			Name:  filepath.Base(absPath),
			Path:  absPath,
			Lines: rec.Found,
			Hits:  rec.Hit,
		})

		ranges := &FileRanges{}
		for _, detail := range rec.Details {
			r := LineRange{Start: detail.Line - 1, End: detail.Line - 1}
			if detail.Hits > 0 {
				ranges.Covered = append(ranges.Covered, r)
			} else {
				ranges.Uncovered = append(ranges.Uncovered, r)
			}
		}
		result.Files[absPath] = ranges
	}

	return result
}

// resolvePath computes the absolute source path of a record
func resolvePath(path string, cfg Config) (string, bool) {
	if cfg.GeneratedPrefix != "" && strings.HasPrefix(path, cfg.GeneratedPrefix) && cfg.Remap != nil {
		return cfg.Remap(path)
	}
	if filepath.IsAbs(path) {
		return path, true
	}
	return filepath.Join(cfg.WorkspaceRoot, path), true
}

// packageOf returns the directory of path relative to root
func packageOf(path, root string) (string, bool) {
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return filepath.ToSlash(filepath.Dir(rel)), true
}

//go:build mage

// Package main contains Mage build targets for confpapers developer tooling.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"

	"github.com/pdiddy/confpapers/internal/manifest"
	"github.com/pdiddy/confpapers/pkg/types"
)

const (
	binDir  = "bin"
	binName = "confpapers"
	cmdPkg  = "./cmd/confpapers"
)

// outDir is where Init, Run and Stats look for target directories.
// CONFPAPERS_OUT overrides it.
func outDir() string {
	if d := os.Getenv("CONFPAPERS_OUT"); d != "" {
		return d
	}
	return "."
}

// defaultTargets mirrors the CLI's default venue/year matrix.
var defaultTargets = []types.Target{
	{Venue: "CVPR", Year: 2024},
	{Venue: "CVPR", Year: 2025},
	{Venue: "ICLR", Year: 2024},
	{Venue: "ICML", Year: 2025},
	{Venue: "NeurIPS", Year: 2023},
	{Venue: "NeurIPS", Year: 2024},
}

// Init creates the pdfs/ and metadata/ directories of every default target.
func Init() error {
	for _, t := range defaultTargets {
		for _, sub := range []string{"pdfs", "metadata"} {
			dir := filepath.Join(t.Dir(outDir()), sub)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("creating %s: %w", dir, err)
			}
			fmt.Println("  ", dir)
		}
	}
	fmt.Println("Output directories initialized.")
	return nil
}

// Build compiles the CLI binary into bin/.
func Build() error {
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", binDir, err)
	}
	out := filepath.Join(binDir, binName)
	if err := sh.RunV("go", "build", "-o", out, cmdPkg); err != nil {
		return fmt.Errorf("go build: %w", err)
	}
	fmt.Printf("Built %s\n", out)
	return nil
}

// Test runs the unit tests with the race detector.
func Test() error {
	return sh.RunV("go", "test", "-race", "./...")
}

// Run builds the CLI and runs it over the default matrix. Extra flags go
// in CONFPAPERS_ARGS, e.g. CONFPAPERS_ARGS="-c icml -y 2025".
func Run() error {
	mg.Deps(Build)
	args := append([]string{"--out", outDir()}, strings.Fields(os.Getenv("CONFPAPERS_ARGS"))...)
	return sh.RunV(filepath.Join(binDir, binName), args...)
}

// Stats prints Go production/test LOC and per-manifest download counts.
func Stats() error {
	prodLines, err := countGoLines(".", false)
	if err != nil {
		return err
	}
	testLines, err := countGoLines(".", true)
	if err != nil {
		return err
	}
	fmt.Printf("Lines of code (Go, production): %d\n", prodLines)
	fmt.Printf("Lines of code (Go, tests):      %d\n", testLines)

	paths, err := filepath.Glob(filepath.Join(outDir(), "*_papers", "metadata", "downloaded_papers.json"))
	if err != nil {
		return err
	}
	sort.Strings(paths)
	for _, p := range paths {
		recs, err := manifest.Read(p)
		if err != nil {
			fmt.Printf("%s: %v\n", p, err)
			continue
		}
		byStatus := map[types.DownloadStatus]int{}
		for _, r := range recs {
			byStatus[r.DownloadStatus]++
		}
		fmt.Printf("%s: %d papers, %d success, %d failed, %d pending\n", p, len(recs),
			byStatus[types.StatusSuccess], byStatus[types.StatusFailed], byStatus[types.StatusPending])
	}
	return nil
}

// countGoLines walks the directory tree and counts non-blank lines in Go files.
// If testOnly is true, count only _test.go files; otherwise count non-test .go files.
func countGoLines(root string, testOnly bool) (int, error) {
	total := 0
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if name := d.Name(); path != root && (strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".go" || strings.HasSuffix(path, "_test.go") != testOnly {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		for _, line := range strings.Split(string(data), "\n") {
			if strings.TrimSpace(line) != "" {
				total++
			}
		}
		return nil
	})
	return total, err
}

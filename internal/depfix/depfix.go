// Package depfix repairs dependency lockfiles in a checked out
// repository.
// When a dependency update pull request fails its checks because the
// lockfile is out of sync with the manifest, rerunning the language's
// dependency tool in the checkout often fixes it.
package depfix

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// Fixer regenerates the lockfiles of one language ecosystem.
type Fixer interface {
	// Language names the ecosystem the fixer handles.
	Language() string
	// Detect reports whether dir contains a project of the fixer's
	// ecosystem.
	Detect(dir string) bool
	// Fix regenerates the lockfiles in dir.
	Fix(ctx context.Context, dir string) error
}

// Detect returns the fixers whose ecosystem was found in dir.
func Detect(dir string) []Fixer {
	all := []Fixer{
		&GoModFixer{},
		&NpmFixer{},
		&PoetryFixer{},
	}

	var found []Fixer
	for _, fixer := range all {
		if fixer.Detect(dir) {
			found = append(found, fixer)
		}
	}

	return found
}

func fileExists(dir, name string) bool {
	_, err := os.Stat(filepath.Join(dir, name))
	return err == nil
}

func runTool(ctx context.Context, dir string, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("running %s failed: %w, output: %q", name, err, out)
	}

	return nil
}

// GoModFixer regenerates go.sum via go mod tidy.
type GoModFixer struct{}

func (f *GoModFixer) Language() string { return "go" }

func (f *GoModFixer) Detect(dir string) bool {
	return fileExists(dir, "go.mod")
}

func (f *GoModFixer) Fix(ctx context.Context, dir string) error {
	return runTool(ctx, dir, "go", "mod", "tidy")
}

// NpmFixer regenerates package-lock.json via npm install.
type NpmFixer struct{}

func (f *NpmFixer) Language() string { return "javascript" }

func (f *NpmFixer) Detect(dir string) bool {
	return fileExists(dir, "package.json")
}

func (f *NpmFixer) Fix(ctx context.Context, dir string) error {
	return runTool(ctx, dir, "npm", "install", "--package-lock-only", "--ignore-scripts")
}

// PoetryFixer regenerates poetry.lock.
type PoetryFixer struct{}

func (f *PoetryFixer) Language() string { return "python" }

func (f *PoetryFixer) Detect(dir string) bool {
	return fileExists(dir, "pyproject.toml")
}

func (f *PoetryFixer) Fix(ctx context.Context, dir string) error {
	return runTool(ctx, dir, "poetry", "lock", "--no-update")
}

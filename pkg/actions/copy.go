package actions

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/polybuild/polybuild/pkg/telemetry"
)

// DefaultExcludes lists entries that are never copied into a build area.
// Patterns are matched against the base name of each entry.
var DefaultExcludes = []string{
	".git",
	".polybuild",
	".venv",
	"__pycache__",
	"*.pyc",
	"node_modules",
}

// CopyAction copies a directory tree into a destination directory, skipping
// entries matched by the exclude patterns.
type CopyAction struct {
	// SourceDir is the directory to copy from.
	SourceDir string

	// DestDir is the directory to copy into. It is created if missing.
	DestDir string

	// Excludes are base-name patterns to skip.
	Excludes []string

	name    string
	purpose Purpose
}

// NewCopySourceAction creates an action that copies a project source tree.
// A nil excludes slice selects DefaultExcludes; an empty one copies everything.
func NewCopySourceAction(sourceDir, destDir string, excludes []string) *CopyAction {
	if excludes == nil {
		excludes = DefaultExcludes
	}
	return &CopyAction{
		SourceDir: sourceDir,
		DestDir:   destDir,
		Excludes:  excludes,
		name:      "copy-source",
		purpose:   PurposeCopySource,
	}
}

// NewCopyDependenciesAction creates an action that copies resolved
// dependencies into the artifact area. Nothing is excluded; dependency trees
// are copied verbatim.
func NewCopyDependenciesAction(depsDir, destDir string) *CopyAction {
	return &CopyAction{
		SourceDir: depsDir,
		DestDir:   destDir,
		name:      "copy-dependencies",
		purpose:   PurposeCopyDependencies,
	}
}

// Name returns the action name.
func (a *CopyAction) Name() string {
	return a.name
}

// Purpose returns the action purpose.
func (a *CopyAction) Purpose() Purpose {
	return a.purpose
}

// Description returns a human-readable summary.
func (a *CopyAction) Description() string {
	return fmt.Sprintf("copy %s to %s", a.SourceDir, a.DestDir)
}

// Execute copies the source tree. Directories are created with their original
// permissions, file modes are preserved, and symlinks are recreated as links.
func (a *CopyAction) Execute(ctx context.Context) error {
	logger := telemetry.FromContext(ctx).WithAction(a.Name())

	info, err := os.Stat(a.SourceDir)
	if err != nil {
		return fmt.Errorf("source directory %s: %w", a.SourceDir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("source path %s is not a directory", a.SourceDir)
	}

	if err := os.MkdirAll(a.DestDir, 0o755); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}

	copied := 0
	err = filepath.WalkDir(a.SourceDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(a.SourceDir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}

		if a.excluded(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		target := filepath.Join(a.DestDir, rel)

		switch {
		case d.IsDir():
			entryInfo, err := d.Info()
			if err != nil {
				return err
			}
			return os.MkdirAll(target, entryInfo.Mode().Perm())

		case d.Type()&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			// Replace a stale link left by a previous build
			_ = os.Remove(target)
			return os.Symlink(link, target)

		default:
			if err := copyFile(path, target); err != nil {
				return err
			}
			copied++
			return nil
		}
	})
	if err != nil {
		return fmt.Errorf("failed to copy source tree: %w", err)
	}

	logger.WithField("files", copied).Debugf("Copied %s to %s", a.SourceDir, a.DestDir)
	return nil
}

// excluded reports whether a base name matches any exclude pattern.
func (a *CopyAction) excluded(name string) bool {
	for _, pattern := range a.Excludes {
		if ok, err := filepath.Match(pattern, name); err == nil && ok {
			return true
		}
	}
	return false
}

// copyFile copies a single regular file, preserving its permission bits.
func copyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

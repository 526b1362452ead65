// Package bundle packs a source folder into the zip archive uploaded as an
// application version.
package bundle

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zip"
	"github.com/moby/patternmatcher"
	"github.com/sirupsen/logrus"
)

type Bundler struct {
	Log logrus.FieldLogger
}

func New(log logrus.FieldLogger) *Bundler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Bundler{Log: log}
}

// Bundle writes every regular file under sourceDir matching include into a
// zip at outputPath. Patterns use .dockerignore syntax and a match on a
// directory includes everything below it. An empty include list takes the
// whole tree. Paths matching exclude are skipped whatever include says.
func (b *Bundler) Bundle(ctx context.Context, sourceDir string, include, exclude []string, outputPath string) (err error) {
	var pm, skip *patternmatcher.PatternMatcher
	if len(include) > 0 {
		if pm, err = patternmatcher.New(include); err != nil {
			return fmt.Errorf("invalid include patterns: %w", err)
		}
	}
	if len(exclude) > 0 {
		if skip, err = patternmatcher.New(exclude); err != nil {
			return fmt.Errorf("invalid exclude patterns: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", outputPath, err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", outputPath, cerr)
		}
	}()

	absOut, _ := filepath.Abs(outputPath)
	zw := zip.NewWriter(out)
	count := 0

	err = filepath.WalkDir(sourceDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(sourceDir, path)
		if err != nil {
			return err
		}
		if skip != nil && rel != "." {
			excluded, err := skip.MatchesOrParentMatches(rel)
			if err != nil {
				return err
			}
			if excluded {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
		}

		if !d.Type().IsRegular() {
			return nil
		}
		if abs, _ := filepath.Abs(path); abs == absOut {
			return nil
		}
		if pm != nil {
			ok, err := pm.MatchesOrParentMatches(rel)
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
		}

		if err := addFile(zw, path, filepath.ToSlash(rel), d); err != nil {
			return err
		}
		count++
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to bundle %s: %w", sourceDir, err)
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finalize %s: %w", filepath.Base(outputPath), err)
	}

	b.Log.Infof("Bundled %d files from %s into %s", count, sourceDir, outputPath)
	return nil
}

func addFile(zw *zip.Writer, path, name string, d fs.DirEntry) error {
	info, err := d.Info()
	if err != nil {
		return err
	}
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	hdr.Name = name
	hdr.Method = zip.Deflate

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(w, f)
	return err
}

// Package templater substitutes {{KEY}} tokens in static config templates.
//
// Substitution is literal: every occurrence of {{KEY}} for a known key is
// replaced, tokens for unknown keys are left untouched, and replaced values
// are never expanded again.
package templater

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

//go:embed files/*.yml
var FS embed.FS

// EBConfigTemplate is the embedded Elastic Beanstalk CLI config template.
const EBConfigTemplate = "files/eb.config.yml"

// Render replaces {{KEY}} with vars[KEY] for every key in vars.
func Render(text string, vars map[string]string) string {
	if len(vars) == 0 {
		return text
	}

	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, "{{"+k+"}}", vars[k])
	}
	// Replacer scans the input once, so values are never re-expanded.
	return strings.NewReplacer(pairs...).Replace(text)
}

// RenderFile renders templatePath into outputPath, creating the output
// directory if needed.
func RenderFile(templatePath, outputPath string, vars map[string]string) error {
	b, err := os.ReadFile(templatePath)
	if err != nil {
		return fmt.Errorf("failed to read template %s: %w", templatePath, err)
	}
	return write(outputPath, Render(string(b), vars))
}

// RenderFS is RenderFile for a template stored in fsys.
func RenderFS(fsys fs.FS, name, outputPath string, vars map[string]string) error {
	b, err := fs.ReadFile(fsys, name)
	if err != nil {
		return fmt.Errorf("failed to read template %s: %w", name, err)
	}
	return write(outputPath, Render(string(b), vars))
}

func write(outputPath, content string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("failed to create output dir for %s: %w", outputPath, err)
	}
	if err := os.WriteFile(outputPath, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", outputPath, err)
	}
	return nil
}

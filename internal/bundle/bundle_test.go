package bundle

import (
	"context"
	"path/filepath"
	"sort"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/sirupsen/logrus/hooks/test"
	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
	"gotest.tools/v3/fs"
)

func entries(t *testing.T, path string) []string {
	t.Helper()
	r, err := zip.OpenReader(path)
	assert.NilError(t, err)
	defer r.Close()

	var names []string
	for _, f := range r.File {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	return names
}

func sourceTree(t *testing.T) *fs.Dir {
	return fs.NewDir(t, "bundle",
		fs.WithFile("package.json", `{"name":"demo"}`),
		fs.WithFile("README.md", "# demo"),
		fs.WithDir("dist",
			fs.WithFile("index.js", "console.log(1)"),
			fs.WithDir("lib", fs.WithFile("util.js", "")),
		),
		fs.WithDir("node_modules", fs.WithFile("x.js", "")),
	)
}

func TestBundleIncludePatterns(t *testing.T) {
	src := sourceTree(t)
	defer src.Remove()

	log, _ := test.NewNullLogger()
	out := filepath.Join(t.TempDir(), "artifacts", "bundle-demo-1.zip")

	err := New(log).Bundle(context.Background(), src.Path(), []string{"package.json", "dist", "!dist/lib"}, nil, out)
	assert.NilError(t, err)
	assert.Check(t, is.DeepEqual(entries(t, out), []string{"dist/index.js", "package.json"}))
}

func TestBundleWholeTree(t *testing.T) {
	src := sourceTree(t)
	defer src.Remove()

	log, _ := test.NewNullLogger()
	out := filepath.Join(t.TempDir(), "all.zip")

	assert.NilError(t, New(log).Bundle(context.Background(), src.Path(), nil, nil, out))
	assert.Check(t, is.Len(entries(t, out), 5))
}

func TestBundleSkipsOwnOutput(t *testing.T) {
	src := sourceTree(t)
	defer src.Remove()

	log, _ := test.NewNullLogger()
	out := src.Join(".serverless", "artifacts", "bundle.zip")

	assert.NilError(t, New(log).Bundle(context.Background(), src.Path(), nil, nil, out))
	for _, name := range entries(t, out) {
		assert.Check(t, name != ".serverless/artifacts/bundle.zip")
	}
}

func TestBundleCancelled(t *testing.T) {
	src := sourceTree(t)
	defer src.Remove()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	log, _ := test.NewNullLogger()
	err := New(log).Bundle(ctx, src.Path(), nil, nil, filepath.Join(t.TempDir(), "x.zip"))
	assert.Check(t, is.ErrorContains(err, "context canceled"))
}

func TestBundleExcludesLocalState(t *testing.T) {
	root := fs.NewDir(t, "service",
		fs.WithFile("serverless.yml", "service: demo"),
		fs.WithFile("index.js", "console.log(1)"),
		fs.WithDir(".serverless",
			fs.WithFile("ebdeploy.db", "sqlite"),
			fs.WithDir("fsm", fs.WithFile("fsm.db", "bolt")),
			fs.WithDir("artifacts", fs.WithFile("bundle-demo-1.zip", "old")),
		),
		fs.WithDir(".elasticbeanstalk", fs.WithFile("config.yml", "global:")),
	)
	defer root.Remove()

	log, _ := test.NewNullLogger()
	out := root.Join(".serverless", "artifacts", "bundle-demo-2.zip")

	err := New(log).Bundle(context.Background(), root.Path(), nil, []string{".serverless", ".elasticbeanstalk"}, out)
	assert.NilError(t, err)
	assert.Check(t, is.DeepEqual(entries(t, out), []string{"index.js", "serverless.yml"}))
}

func TestBundleExcludeWinsOverInclude(t *testing.T) {
	src := sourceTree(t)
	defer src.Remove()

	log, _ := test.NewNullLogger()
	out := filepath.Join(t.TempDir(), "out.zip")

	err := New(log).Bundle(context.Background(), src.Path(), []string{"dist"}, []string{"dist/lib"}, out)
	assert.NilError(t, err)
	assert.Check(t, is.DeepEqual(entries(t, out), []string{"dist/index.js"}))
}

package hostfuncs

import (
	"context"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/reglet-dev/rtools-bridge/domain/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string, mode fs.FileMode) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), mode))
	require.NoError(t, os.Chmod(path, mode))
}

func modeOf(t *testing.T, path string) fs.FileMode {
	t.Helper()
	info, err := os.Lstat(path)
	require.NoError(t, err)
	return info.Mode().Perm()
}

func TestPerformMD5(t *testing.T) {
	dir := t.TempDir()
	hello := filepath.Join(dir, "hello.txt")
	empty := filepath.Join(dir, "empty")
	writeFile(t, hello, "hello world\n", 0o644)
	writeFile(t, empty, "", 0o644)

	resp := PerformMD5(context.Background(), MD5Request{Files: []string{hello, filepath.Join(dir, "missing"), empty}})
	require.Len(t, resp.Results, 3)

	assert.True(t, resp.Results[0].OK)
	assert.Equal(t, "6f5902ac237024bdd0c176cb93063dc4", resp.Results[0].Digest)

	assert.False(t, resp.Results[1].OK)
	require.NotNil(t, resp.Results[1].Error)
	assert.Equal(t, entities.ErrorTypeFileNotFound, resp.Results[1].Error.Type)
	assert.True(t, resp.Results[1].Error.IsNotFound)

	assert.True(t, resp.Results[2].OK)
	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", resp.Results[2].Digest)
}

func TestPerformMD5_CanceledContext(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f")
	writeFile(t, path, "abc", 0o644)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	resp := PerformMD5(ctx, MD5Request{Files: []string{path}})
	require.NotNil(t, resp.Results[0].Error)
	assert.Equal(t, entities.ErrorTypeIO, resp.Results[0].Error.Type)
}

func TestPerformDirChmod(t *testing.T) {
	root := t.TempDir()
	plain := filepath.Join(root, "a.txt")
	script := filepath.Join(root, "sub", "run.sh")
	writeFile(t, plain, "a", 0o600)
	writeFile(t, script, "#!/bin/sh", 0o700)
	require.NoError(t, os.Chmod(filepath.Join(root, "sub"), 0o700))

	resp := PerformDirChmod(context.Background(), DirChmodRequest{Dirs: []string{root}})
	assert.Empty(t, resp.Failures)
	assert.ElementsMatch(t, []string{root, plain, filepath.Join(root, "sub"), script}, resp.Changed)

	assert.Equal(t, fs.FileMode(0o755), modeOf(t, root))
	assert.Equal(t, fs.FileMode(0o644), modeOf(t, plain))
	assert.Equal(t, fs.FileMode(0o755), modeOf(t, filepath.Join(root, "sub")))
	assert.Equal(t, fs.FileMode(0o744), modeOf(t, script))
}

func TestPerformDirChmod_GroupWritable(t *testing.T) {
	root := t.TempDir()
	plain := filepath.Join(root, "a.txt")
	writeFile(t, plain, "a", 0o600)

	resp := PerformDirChmod(context.Background(), DirChmodRequest{Dirs: []string{root}, GroupWritable: true})
	assert.Empty(t, resp.Failures)
	assert.Equal(t, fs.FileMode(0o775), modeOf(t, root))
	assert.Equal(t, fs.FileMode(0o664), modeOf(t, plain))
}

func TestPerformDirChmod_FailureLeavesSiblingsUntouched(t *testing.T) {
	root := t.TempDir()
	good := filepath.Join(root, "good.txt")
	bad := filepath.Join(root, "bad.txt")
	lockedDir := filepath.Join(root, "locked")
	inner := filepath.Join(lockedDir, "inner.txt")
	writeFile(t, good, "g", 0o600)
	writeFile(t, bad, "b", 0o600)
	writeFile(t, inner, "i", 0o600)

	failing := func(c *fileConfig) {
		c.chmod = func(path string, mode fs.FileMode) error {
			if path == bad || path == lockedDir {
				return &fs.PathError{Op: "chmod", Path: path, Err: fs.ErrPermission}
			}
			return os.Chmod(path, mode)
		}
	}

	resp := PerformDirChmod(context.Background(), DirChmodRequest{Dirs: []string{root}}, failing)

	require.Len(t, resp.Failures, 2)
	for _, f := range resp.Failures {
		require.NotNil(t, f.Error)
		assert.Equal(t, entities.ErrorTypePermissionDenied, f.Error.Type)
	}
	assert.ElementsMatch(t, []string{bad, lockedDir}, []string{resp.Failures[0].Path, resp.Failures[1].Path})

	assert.Contains(t, resp.Changed, good)
	assert.NotContains(t, resp.Changed, inner, "contents of a failed directory are skipped")
	assert.Equal(t, fs.FileMode(0o644), modeOf(t, good))
	assert.Equal(t, fs.FileMode(0o600), modeOf(t, bad))
	assert.Equal(t, fs.FileMode(0o600), modeOf(t, inner))
}

func TestPerformDirChmod_SkipsSymlinks(t *testing.T) {
	outside := filepath.Join(t.TempDir(), "outside.txt")
	writeFile(t, outside, "o", 0o600)

	root := t.TempDir()
	link := filepath.Join(root, "link")
	require.NoError(t, os.Symlink(outside, link))

	resp := PerformDirChmod(context.Background(), DirChmodRequest{Dirs: []string{root}})
	assert.Empty(t, resp.Failures)
	assert.NotContains(t, resp.Changed, link)
	assert.Equal(t, fs.FileMode(0o600), modeOf(t, outside))
}

func TestPerformDirChmod_MissingRoot(t *testing.T) {
	root := t.TempDir()
	missing := filepath.Join(root, "nope")
	other := filepath.Join(root, "other")
	require.NoError(t, os.Mkdir(other, 0o700))

	resp := PerformDirChmod(context.Background(), DirChmodRequest{Dirs: []string{missing, other}})
	require.Len(t, resp.Failures, 1)
	assert.Equal(t, missing, resp.Failures[0].Path)
	assert.Equal(t, entities.ErrorTypeFileNotFound, resp.Failures[0].Error.Type)
	assert.EqualValues(t, []string{other}, resp.Changed)
}

func TestPerformCodeFilesAppend(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "all.R")
	src1 := filepath.Join(dir, "a.R")
	src2 := filepath.Join(dir, "b.R")
	writeFile(t, target, "# header\n", 0o644)
	writeFile(t, src1, "f <- function() 1", 0o644)
	writeFile(t, src2, "g <- 2\n", 0o644)

	resp := PerformCodeFilesAppend(context.Background(), CodeFilesAppendRequest{
		Targets: []string{target},
		Sources: []string{src1, src2},
	})
	require.Len(t, resp.Results, 2)
	assert.True(t, resp.Results[0].OK)
	assert.True(t, resp.Results[1].OK)
	assert.Equal(t, target, resp.Results[1].Path)

	got, err := os.ReadFile(target)
	require.NoError(t, err)
	want := "# header\n" +
		"#line 1 \"" + src1 + "\"\n" + "f <- function() 1\n" +
		"#line 1 \"" + src2 + "\"\n" + "g <- 2\n"
	assert.Equal(t, want, string(got))
}

func TestPerformCodeFilesAppend_CustomHeader(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "out")
	src := filepath.Join(dir, "in")
	writeFile(t, src, "x\n", 0o644)

	resp := PerformCodeFilesAppend(context.Background(),
		CodeFilesAppendRequest{Targets: []string{target}, Sources: []string{src}},
		WithAppendHeader(""))
	require.True(t, resp.Results[0].OK)

	got, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "x\n", string(got))
}

func TestPerformCodeFilesAppend_MissingSource(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "out")
	good := filepath.Join(dir, "good")
	writeFile(t, good, "ok", 0o644)

	resp := PerformCodeFilesAppend(context.Background(), CodeFilesAppendRequest{
		Targets: []string{filepath.Join(dir, "untouched"), target},
		Sources: []string{filepath.Join(dir, "missing"), good},
	})
	require.Len(t, resp.Results, 2)
	require.NotNil(t, resp.Results[0].Error)
	assert.Equal(t, entities.ErrorTypeFileNotFound, resp.Results[0].Error.Type)
	assert.NoFileExists(t, filepath.Join(dir, "untouched"))
	assert.True(t, resp.Results[1].OK)
}

func TestPerformCodeFilesAppend_EmptyList(t *testing.T) {
	resp := PerformCodeFilesAppend(context.Background(), CodeFilesAppendRequest{Targets: []string{"a", "b"}})
	require.Len(t, resp.Results, 2)
	for _, r := range resp.Results {
		require.NotNil(t, r.Error)
		assert.Equal(t, entities.ErrorTypeInvalidArgument, r.Error.Type)
	}
}

// latin1File creates a file whose name is not valid UTF-8, skipping the test
// on file systems that refuse such names.
func latin1File(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "caf\xe9.txt")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Skipf("file system rejects non-UTF-8 names: %v", err)
	}
	return path
}

func TestFileFunctions_NonUTF8PathsThroughRegistry(t *testing.T) {
	dir := t.TempDir()
	path := latin1File(t, dir, "hello world\n")

	reg, err := NewRegistry(WithBundle(FileBundle(WithAppendHeader(""))))
	require.NoError(t, err)
	call := func(name string, req, resp any) {
		t.Helper()
		payload, err := json.Marshal(req)
		require.NoError(t, err)
		raw, err := reg.Invoke(context.Background(), name, payload)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, resp))
	}

	var sums MD5Response
	call(FuncMD5, MD5Request{Files: []string{path}}, &sums)
	require.Len(t, sums.Results, 1)
	assert.True(t, sums.Results[0].OK, "%v", sums.Results[0].Error)
	assert.Equal(t, "6f5902ac237024bdd0c176cb93063dc4", sums.Results[0].Digest)
	assert.Equal(t, path, sums.Results[0].Path)

	var chmod DirChmodResponse
	call(FuncDirChmod, DirChmodRequest{Dirs: []string{dir}}, &chmod)
	assert.Empty(t, chmod.Failures)
	assert.Contains(t, chmod.Changed, path)

	target := filepath.Join(dir, "out.R")
	var appended CodeFilesAppendResponse
	call(FuncCodeFilesAppend, CodeFilesAppendRequest{Targets: []string{target}, Sources: []string{path}}, &appended)
	require.Len(t, appended.Results, 1)
	assert.True(t, appended.Results[0].OK, "%v", appended.Results[0].Error)

	got, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "hello world\n", string(got))
}

func TestPathStatus_JSONKeepsRawPath(t *testing.T) {
	in := PathStatus{Path: "/tmp/\xff", OK: true, Digest: "00"}
	raw, err := json.Marshal(in)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"base64"`)

	var out PathStatus
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, in, out)
}

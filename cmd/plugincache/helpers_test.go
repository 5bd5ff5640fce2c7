package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sghaida/plugdi/plugin"
)

type srcTree struct {
	t   *testing.T
	dir string
}

func newTree(t *testing.T) *srcTree {
	t.Helper()
	return &srcTree{t: t, dir: t.TempDir()}
}

func (s *srcTree) write(rel, content string) string {
	s.t.Helper()
	path := filepath.Join(s.dir, filepath.FromSlash(rel))
	require.NoError(s.t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(s.t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func (s *srcTree) path(rel string) string {
	return filepath.Join(s.dir, filepath.FromSlash(rel))
}

// cache decodes the file at rel.
func (s *srcTree) cache(rel string) *plugin.Cache {
	s.t.Helper()
	b, err := os.ReadFile(s.path(rel))
	require.NoError(s.t, err)
	c := plugin.NewCache()
	require.NoError(s.t, c.Decode(bytes.NewReader(b)))
	return c
}

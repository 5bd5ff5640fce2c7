package plugin_test

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/sghaida/plugdi/plugin"
	"github.com/sghaida/plugdi/scan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type watchedFirst struct{}
type watchedSecond struct{}

func TestWatcher_EvictsPackageScansOnChange(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	write := func(name, typ, pluginName string) {
		src := "package plugin_test\n\n//plugdi:plugin name=" + pluginName + " namespace=Watched\ntype " + typ + " struct{}\n"
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(src), 0o600))
	}
	write("first.go", "watchedFirst", "First")

	l := scan.NewLoader(scan.Isolated(), scan.WithTypes(
		reflect.TypeFor[watchedFirst](),
		reflect.TypeFor[watchedSecond](),
	))
	l.AddDir(testPkg, dir)
	r := plugin.NewRegistry(l, plugin.WithServices(), plugin.WithDefaultPackage(""))

	ctx := t.Context()
	require.Equal(t, 1, r.GetNamespace(ctx, "Watched", []string{testPkg}).Len())

	w, err := plugin.NewWatcher(r, dir)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, w.Close()) })
	go func() { _ = w.Run(ctx) }()

	write("second.go", "watchedSecond", "Second")

	require.Eventually(t, func() bool {
		_, ok := r.GetNamespace(ctx, "Watched", []string{testPkg}).Get("second")
		return ok
	}, 5*time.Second, 20*time.Millisecond)
}

func TestNewWatcher_MissingDir(t *testing.T) {
	t.Parallel()

	r := plugin.NewRegistry(scan.NewLoader(scan.Isolated()), plugin.WithServices())
	_, err := plugin.NewWatcher(r, filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

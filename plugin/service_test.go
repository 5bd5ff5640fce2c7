package plugin_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sghaida/plugdi/plugin"
	"github.com/sghaida/plugdi/scan"
)

type serviceOnly struct{}

func TestRegisterService_FeedsDefaultRegistries(t *testing.T) {
	t.Parallel()

	svc := plugin.ServiceFunc(func() []*plugin.Type {
		return []*plugin.Type{plugin.Provide[serviceOnly]("ServiceOnly", "Lone")}
	})
	plugin.RegisterService(svc)
	assert.NotEmpty(t, plugin.Services())

	r := plugin.NewRegistry(scan.NewLoader(scan.Isolated()), plugin.WithDefaultPackage(""))
	got, ok := r.GetNamespace(context.Background(), "serviceonly", nil).Get("LONE")
	require.True(t, ok)
	assert.Equal(t, testPkg+".serviceOnly", got.ClassName())

	isolated := plugin.NewRegistry(scan.NewLoader(scan.Isolated()), plugin.WithServices(), plugin.WithDefaultPackage(""))
	assert.Zero(t, isolated.GetNamespace(context.Background(), "ServiceOnly", nil).Len())
}

func TestComparePriority(t *testing.T) {
	t.Parallel()

	withPriority := func(v int32) func(*plugin.Entry) {
		return func(e *plugin.Entry) { e.Priority = plugin.WithPriority(v) }
	}
	low := plugin.Provide[serviceOnly]("Core", "x", withPriority(-5))
	high := plugin.Provide[serviceOnly]("Core", "x", withPriority(10))
	absent := plugin.Provide[serviceOnly]("Core", "x")

	assert.Negative(t, plugin.ComparePriority(low, high))
	assert.Positive(t, plugin.ComparePriority(high, low))
	assert.Negative(t, plugin.ComparePriority(high, absent), "a declared priority beats an absent one")
	assert.Positive(t, plugin.ComparePriority(absent, low))
	assert.Zero(t, plugin.ComparePriority(absent, plugin.Provide[serviceOnly]("Core", "x")))
}

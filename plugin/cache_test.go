package plugin_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/sghaida/plugdi/plugin"
	"github.com/sghaida/plugdi/scan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(namespace, name, class string) plugin.Entry {
	return plugin.NewEntry(namespace, name, class)
}

func encode(t *testing.T, entries ...plugin.Entry) []byte {
	t.Helper()

	c := plugin.NewCache()
	for _, e := range entries {
		c.Add(e)
	}
	var buf bytes.Buffer
	require.NoError(t, c.Encode(&buf))
	return buf.Bytes()
}

func allEntries(c *plugin.Cache) []plugin.Entry {
	var out []plugin.Entry
	for _, ns := range c.Namespaces() {
		out = append(out, c.Entries(ns)...)
	}
	return out
}

func TestCache_RoundTrip(t *testing.T) {
	t.Parallel()

	many := make([]plugin.Entry, 0, 40)
	for i := range 20 {
		e := entry("Appender", fmt.Sprintf("Appender%02d", i), fmt.Sprintf("example.com/app.A%d", i))
		e.Printable = i%2 == 0
		e.DeferChildren = i%3 == 0
		many = append(many, e)
		many = append(many, entry("Layout", fmt.Sprintf("Layout%02d", i), fmt.Sprintf("example.com/app.L%d", i)))
	}

	tests := []struct {
		name    string
		entries []plugin.Entry
	}{
		{name: "empty", entries: nil},
		{name: "one", entries: []plugin.Entry{entry("Appender", "Console", "example.com/app.Console")}},
		{name: "many", entries: many},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := plugin.NewCache()
			require.NoError(t, got.Decode(bytes.NewReader(encode(t, tt.entries...))))

			want := plugin.NewCache()
			for _, e := range tt.entries {
				want.Add(e)
			}
			assert.Equal(t, allEntries(want), allEntries(got))
			assert.Equal(t, want.Namespaces(), got.Namespaces())
			assert.Equal(t, len(tt.entries), got.Len())
		})
	}
}

func TestCache_KeepsElementNames(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		line string
		want map[string]string
	}{
		{
			name: "element",
			line: "//plugdi:plugin name=Console namespace=Appender element=appender aliases=Out",
			want: map[string]string{"console": "appender", "out": "appender"},
		},
		{
			name: "alias_without_element",
			line: "//plugdi:plugin name=Console namespace=Appender aliases=Out",
			want: map[string]string{"console": "Console", "out": "Out"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			scanned, err := plugin.EntriesFromDirective("example.com/app.Console", directive(t, tt.line))
			require.NoError(t, err)

			c := plugin.NewCache()
			require.NoError(t, c.Decode(bytes.NewReader(encode(t, scanned...))))

			for _, e := range scanned {
				cached, ok := c.Lookup("Appender", e.Key)
				require.True(t, ok, e.Key)
				assert.Equal(t, tt.want[e.Key], e.ElementName(), "scanned %s", e.Key)
				assert.Equal(t, e.ElementName(), cached.ElementName(), "cached %s", e.Key)
				assert.Equal(t, e.ClassName, cached.ClassName)
			}
		})
	}
}

func TestCache_EmptyEncodesAsZeroCount(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []byte{0, 0, 0, 0}, encode(t))
}

func TestCache_ConcatenatedStreamsFirstWins(t *testing.T) {
	t.Parallel()

	first := encode(t,
		entry("Appender", "Console", "example.com/first.Console"),
	)
	second := encode(t,
		entry("Appender", "Console", "example.com/second.Console"),
		entry("Appender", "File", "example.com/second.File"),
		entry("Layout", "Pattern", "example.com/second.Pattern"),
	)

	c := plugin.NewCache()
	require.NoError(t, c.Decode(io.MultiReader(bytes.NewReader(first), bytes.NewReader(second))))

	console, ok := c.Lookup("appender", "CONSOLE")
	require.True(t, ok)
	assert.Equal(t, "example.com/first.Console", console.ClassName)

	// Entries after the discarded duplicate still decode.
	file, ok := c.Lookup("Appender", "file")
	require.True(t, ok)
	assert.Equal(t, "example.com/second.File", file.ClassName)
	_, ok = c.Lookup("Layout", "pattern")
	assert.True(t, ok)
	assert.Equal(t, 3, c.Len())
}

func TestCache_TruncatedStream(t *testing.T) {
	t.Parallel()

	data := encode(t, entry("Appender", "Console", "example.com/app.Console"))
	for _, cut := range []int{2, 6, len(data) - 1} {
		err := plugin.NewCache().Decode(bytes.NewReader(data[:cut]))
		assert.ErrorIs(t, err, io.ErrUnexpectedEOF, "cut at %d", cut)
	}
}

func TestCache_NegativeCount(t *testing.T) {
	t.Parallel()

	err := plugin.NewCache().Decode(bytes.NewReader([]byte{0xff, 0xff, 0xff, 0xff}))
	assert.ErrorIs(t, err, plugin.ErrNegativeCount)
}

func TestCache_EncodeRejectsLongStrings(t *testing.T) {
	t.Parallel()

	c := plugin.NewCache()
	c.Add(entry("Appender", "Console", strings.Repeat("x", 70000)))
	assert.ErrorIs(t, c.Encode(io.Discard), plugin.ErrStringTooLong)
}

func TestCache_SortedIsDeterministic(t *testing.T) {
	t.Parallel()

	a := plugin.NewCache()
	a.Add(entry("Layout", "Pattern", "x.P"))
	a.Add(entry("Appender", "File", "x.F"))
	a.Add(entry("Appender", "Console", "x.C"))

	b := plugin.NewCache()
	b.Add(entry("Appender", "Console", "x.C"))
	b.Add(entry("Appender", "File", "x.F"))
	b.Add(entry("Layout", "Pattern", "x.P"))

	var ab, bb bytes.Buffer
	require.NoError(t, a.Sorted().Encode(&ab))
	require.NoError(t, b.Sorted().Encode(&bb))
	assert.Equal(t, ab.Bytes(), bb.Bytes())
	assert.Equal(t, []string{"Appender", "Layout"}, a.Sorted().Namespaces())
}

func TestCache_DecodeResourcesSkipsBrokenResource(t *testing.T) {
	t.Parallel()

	l := scan.NewLoader(scan.WithRoots(
		scan.Root{Name: "broken", FS: fstest.MapFS{plugin.CacheResource: {Data: []byte{0, 0, 0, 1, 0}}}},
		scan.Root{Name: "good", FS: fstest.MapFS{plugin.CacheResource: {Data: encode(t,
			entry("Appender", "File", "example.com/app.File"),
		)}}},
	))

	c := plugin.NewCache()
	c.DecodeResources(context.Background(), l.Resources(plugin.CacheResource))

	assert.Equal(t, 1, c.Len())
	_, ok := c.Lookup("Appender", "file")
	assert.True(t, ok)
}

package plugin

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sort"

	slogcontext "github.com/veqryn/slog-context"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/sghaida/plugdi/scan"
)

// CacheResource is the logical path of the binary cache inside every root.
// Each independently built root may contribute one.
const CacheResource = "plugdi/plugins.dat"

// Cache is the in-memory form of one or more cache resources: namespace name
// to key to entry, both levels ordered. Adding a key twice keeps the first
// entry.
//
// The binary layout, big-endian, strings as uint16 length + UTF-8 bytes:
//
//	int32 namespace count
//	  string namespace name
//	  int32  entry count
//	    string key
//	    string class name
//	    string display name
//	    byte   printable
//	    byte   defer children
//
// Any number of such blobs may follow each other in one stream.
type Cache struct {
	namespaces *orderedmap.OrderedMap[string, *cacheNamespace]
}

type cacheNamespace struct {
	name    string
	entries *orderedmap.OrderedMap[string, Entry]
}

func NewCache() *Cache {
	return &Cache{namespaces: orderedmap.New[string, *cacheNamespace]()}
}

// Add stores e unless its namespace already holds the key. It reports whether
// e was stored.
func (c *Cache) Add(e Entry) bool {
	e.Key = NormalizeKey(e.Key)
	nsKey := NormalizeKey(e.Namespace)
	ns, ok := c.namespaces.Get(nsKey)
	if !ok {
		ns = &cacheNamespace{name: e.Namespace, entries: orderedmap.New[string, Entry]()}
		c.namespaces.Set(nsKey, ns)
	}
	if _, dup := ns.entries.Get(e.Key); dup {
		return false
	}
	ns.entries.Set(e.Key, e)
	return true
}

// Merge adds every entry of other, keeping entries already present.
func (c *Cache) Merge(other *Cache) {
	for _, name := range other.Namespaces() {
		for _, e := range other.Entries(name) {
			c.Add(e)
		}
	}
}

// Namespaces returns the namespace names in insertion order.
func (c *Cache) Namespaces() []string {
	out := make([]string, 0, c.namespaces.Len())
	for p := c.namespaces.Oldest(); p != nil; p = p.Next() {
		out = append(out, p.Value.name)
	}
	return out
}

// Entries returns the entries of a namespace in insertion order.
func (c *Cache) Entries(namespace string) []Entry {
	ns, ok := c.namespaces.Get(NormalizeKey(namespace))
	if !ok {
		return nil
	}
	out := make([]Entry, 0, ns.entries.Len())
	for p := ns.entries.Oldest(); p != nil; p = p.Next() {
		out = append(out, p.Value)
	}
	return out
}

// Lookup finds one entry.
func (c *Cache) Lookup(namespace, key string) (Entry, bool) {
	ns, ok := c.namespaces.Get(NormalizeKey(namespace))
	if !ok {
		return Entry{}, false
	}
	return ns.entries.Get(NormalizeKey(key))
}

// Len counts the entries of all namespaces.
func (c *Cache) Len() int {
	n := 0
	for p := c.namespaces.Oldest(); p != nil; p = p.Next() {
		n += p.Value.entries.Len()
	}
	return n
}

// Sorted returns a copy with namespaces and keys in lexical order, so that
// encoding it yields the same bytes for the same content.
func (c *Cache) Sorted() *Cache {
	names := c.Namespaces()
	sort.Slice(names, func(i, j int) bool { return NormalizeKey(names[i]) < NormalizeKey(names[j]) })

	out := NewCache()
	for _, name := range names {
		entries := c.Entries(name)
		sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
		for _, e := range entries {
			out.Add(e)
		}
	}
	return out
}

// Types converts the cache into lazily resolved plugin types.
func (c *Cache) Types(loader TypeLoader) []*Type {
	var out []*Type
	for _, name := range c.Namespaces() {
		for _, e := range c.Entries(name) {
			out = append(out, NewType(e, loader))
		}
	}
	return out
}

// Encode writes the cache as one blob. The name slot carries the element
// name, so a decoded entry reports the element name as both Name and
// ElementName.
func (c *Cache) Encode(w io.Writer) error {
	enc := &encoder{w: bufio.NewWriter(w)}
	enc.int32(c.namespaces.Len())
	for p := c.namespaces.Oldest(); p != nil; p = p.Next() {
		ns := p.Value
		enc.string(ns.name)
		enc.int32(ns.entries.Len())
		for ep := ns.entries.Oldest(); ep != nil; ep = ep.Next() {
			e := ep.Value
			enc.string(e.Key)
			enc.string(e.ClassName)
			enc.string(e.ElementName())
			enc.bool(e.Printable)
			enc.bool(e.DeferChildren)
		}
	}
	if enc.err != nil {
		return enc.err
	}
	return enc.w.Flush()
}

// Decode reads blobs from r until EOF and adds their entries. Every field of
// every entry is read, including those of discarded duplicates, so the
// following blob starts where it should. Entries read before an error stay in
// the cache; DecodeResources isolates resources from each other.
func (c *Cache) Decode(r io.Reader) error {
	dec := &decoder{r: bufio.NewReader(r)}
	for {
		var head [4]byte
		n, err := io.ReadFull(dec.r, head[:])
		if n == 0 && errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("namespace count: %w", err)
		}
		if err := c.decodeBlob(dec, int32(binary.BigEndian.Uint32(head[:]))); err != nil {
			return err
		}
	}
}

func (c *Cache) decodeBlob(dec *decoder, count int32) error {
	if count < 0 {
		return ErrNegativeCount
	}
	for range count {
		namespace := dec.string()
		entries := dec.int32()
		if dec.err == nil && entries < 0 {
			return ErrNegativeCount
		}
		for i := int32(0); dec.err == nil && i < entries; i++ {
			e := Entry{Namespace: namespace}
			e.Key = dec.string()
			e.ClassName = dec.string()
			e.Name = dec.string()
			e.Printable = dec.bool()
			e.DeferChildren = dec.bool()
			if dec.err == nil {
				c.Add(e)
			}
		}
		if dec.err != nil {
			return dec.err
		}
	}
	return nil
}

// DecodeResources decodes every resource in order. A resource that fails is
// logged and contributes nothing; the first resource defining a key wins.
func (c *Cache) DecodeResources(ctx context.Context, resources []scan.Resource) {
	for _, res := range resources {
		one := NewCache()
		if err := decodeResource(one, res); err != nil {
			slogcontext.Log(ctx, slog.LevelWarn, "ignoring plugin cache", slog.Any("error", err))
			continue
		}
		slogcontext.Log(ctx, slog.LevelDebug, "decoded plugin cache",
			slog.String("resource", res.String()), slog.Int("entries", one.Len()))
		c.Merge(one)
	}
}

func decodeResource(c *Cache, res scan.Resource) error {
	f, err := res.Open()
	if err != nil {
		return DecodeError{Resource: res.String(), Err: err}
	}
	defer f.Close()
	if err := c.Decode(f); err != nil {
		return DecodeError{Resource: res.String(), Err: err}
	}
	return nil
}

type encoder struct {
	w   *bufio.Writer
	err error
	buf [4]byte
}

func (e *encoder) int32(n int) {
	if e.err != nil {
		return
	}
	if n > math.MaxInt32 {
		e.err = fmt.Errorf("plugin: count %d overflows int32", n)
		return
	}
	binary.BigEndian.PutUint32(e.buf[:], uint32(n))
	_, e.err = e.w.Write(e.buf[:4])
}

func (e *encoder) string(s string) {
	if e.err != nil {
		return
	}
	if len(s) > math.MaxUint16 {
		e.err = ErrStringTooLong
		return
	}
	binary.BigEndian.PutUint16(e.buf[:], uint16(len(s)))
	if _, e.err = e.w.Write(e.buf[:2]); e.err != nil {
		return
	}
	_, e.err = e.w.WriteString(s)
}

func (e *encoder) bool(b bool) {
	if e.err != nil {
		return
	}
	var v byte
	if b {
		v = 1
	}
	e.err = e.w.WriteByte(v)
}

type decoder struct {
	r   *bufio.Reader
	err error
	buf [4]byte
}

func (d *decoder) int32() int32 {
	if d.err != nil {
		return 0
	}
	if _, d.err = io.ReadFull(d.r, d.buf[:4]); d.err != nil {
		d.err = unexpected(d.err)
		return 0
	}
	return int32(binary.BigEndian.Uint32(d.buf[:4]))
}

func (d *decoder) string() string {
	if d.err != nil {
		return ""
	}
	if _, d.err = io.ReadFull(d.r, d.buf[:2]); d.err != nil {
		d.err = unexpected(d.err)
		return ""
	}
	b := make([]byte, binary.BigEndian.Uint16(d.buf[:2]))
	if _, d.err = io.ReadFull(d.r, b); d.err != nil {
		d.err = unexpected(d.err)
		return ""
	}
	return string(b)
}

func (d *decoder) bool() bool {
	if d.err != nil {
		return false
	}
	var b byte
	b, d.err = d.r.ReadByte()
	if d.err != nil {
		d.err = unexpected(d.err)
	}
	return b != 0
}

// unexpected turns EOF inside a blob into io.ErrUnexpectedEOF.
func unexpected(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}

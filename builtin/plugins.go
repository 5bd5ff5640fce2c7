package builtin

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sghaida/plugdi/di"
	"github.com/sghaida/plugdi/scan"
)

func init() {
	scan.Register[Property]()
	scan.Register[Properties]()
	scan.Register[Console]()

	di.RegisterClass(di.ClassOf[Console](
		di.Constructor(NewConsole),
		di.PreDestroy("Flush"),
	))
}

// Property is a name/value pair.
//
//plugdi:plugin name=Property namespace=Core element=property printable
type Property struct {
	Name  string
	Value string
}

func (p Property) String() string { return p.Name + "=" + p.Value }

// Properties is an ordered list of properties.
//
//plugdi:plugin name=Properties namespace=Core element=properties
type Properties struct {
	Items []Property
}

// Lookup returns the value of the first property called name.
func (p *Properties) Lookup(name string) (string, bool) {
	for _, it := range p.Items {
		if strings.EqualFold(it.Name, name) {
			return it.Value, true
		}
	}
	return "", false
}

// Console writes lines to standard output.
//
//plugdi:plugin name=Console namespace=Appender element=appender printable aliases=stdout
type Console struct {
	mu  sync.Mutex
	out io.Writer
	n   int
}

// NewConsole returns a Console on os.Stdout.
func NewConsole() *Console { return &Console{out: os.Stdout} }

// Append writes msg followed by a newline.
func (c *Console) Append(msg string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	_, err := fmt.Fprintln(c.out, msg)
	return err
}

// Flush syncs the output when it is a regular file.
func (c *Console) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.out.(*os.File)
	if !ok || c.n == 0 {
		return nil
	}
	c.n = 0
	if fi, err := f.Stat(); err != nil || !fi.Mode().IsRegular() {
		return nil
	}
	return f.Sync()
}

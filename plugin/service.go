package plugin

import (
	"reflect"
	"sync"

	"github.com/sghaida/plugdi/scan"
)

// Service contributes precompiled plugin types to the main source. Packages
// register one from init, the way database drivers register themselves.
type Service interface {
	PluginTypes() []*Type
}

// ServiceFunc adapts a function to Service.
type ServiceFunc func() []*Type

func (f ServiceFunc) PluginTypes() []*Type { return f() }

var services struct {
	mu   sync.RWMutex
	list []Service
}

// RegisterService adds s to the process service list.
func RegisterService(s Service) {
	services.mu.Lock()
	services.list = append(services.list, s)
	services.mu.Unlock()
}

// Services returns the process service list in registration order.
func Services() []Service {
	services.mu.RLock()
	defer services.mu.RUnlock()
	return append([]Service(nil), services.list...)
}

// Provide builds a resolved type for T from an entry with the given namespace
// and name. The class name is derived from T.
func Provide[T any](namespace, name string, opts ...func(*Entry)) *Type {
	t := reflect.TypeFor[T]()
	e := NewEntry(namespace, name, scan.TypeName(t))
	for _, opt := range opts {
		opt(&e)
	}
	return ResolvedType(e, t)
}

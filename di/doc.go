// Package di wires plugin types and plain structs into instances.
//
// A Class describes how instances of a struct type are built: which
// constructor to call, which fields and methods receive dependencies, which
// methods produce further beans and which callbacks run after construction
// and before destruction. Types without a Class are built with their zero
// value and receive dependencies through `inject:"name"` struct tags.
//
// A Manager turns classes into beans, checks that every injection point is
// satisfied by exactly one bean, rejects dependency cycles and hands out
// instances from scope contexts:
//
//   - Singleton instances are created once and destroyed by Manager.Close.
//   - Dependent instances are never shared; each belongs to the instance or
//     caller that requested it and is destroyed with it.
//
// Injecting a Provider[T] instead of T defers creation until the provider is
// called, which also breaks cycles between beans.
//
// Import
//
//	"github.com/sghaida/plugdi/di"
package di

package di_test

import (
	"testing"

	"github.com/sghaida/plugdi/di"
)

/*
   Shared helpers (NOT counted in benchmarks)
*/

type benchService struct {
	Clock *clock `inject:""`
	Store *store `inject:""`
}

type benchLazy struct {
	Service di.Provider[*benchService] `inject:""`
}

func newBenchManager(b *testing.B, serviceScope di.Scope) *di.Manager {
	b.Helper()
	m := di.NewManager()
	if _, err := m.AddValue(&clock{zone: "UTC"}); err != nil {
		b.Fatal(err)
	}
	_, err := m.LoadClasses(
		di.ClassOf[store](di.InScope(di.Singleton)),
		di.ClassOf[benchService](di.InScope(serviceScope)),
		di.ClassOf[benchLazy](di.InScope(di.Singleton)),
	)
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { _ = m.Close() })
	return m
}

/*
   Benchmarks
*/

func BenchmarkResolve_Singleton(b *testing.B) {
	m := newBenchManager(b, di.Singleton)
	if _, err := di.Resolve[*benchService](m); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = di.Resolve[*benchService](m)
	}
}

func BenchmarkResolve_Dependent(b *testing.B) {
	m := newBenchManager(b, di.Dependent)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = di.Resolve[*benchService](m)
	}
}

func BenchmarkResolve_SingletonParallel(b *testing.B) {
	m := newBenchManager(b, di.Singleton)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_, _ = di.Resolve[*benchService](m)
		}
	})
}

func BenchmarkProvider_Get(b *testing.B) {
	m := newBenchManager(b, di.Singleton)
	lazy, err := di.Resolve[*benchLazy](m)
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = lazy.Service.Get()
	}
}

func BenchmarkLoadClasses(b *testing.B) {
	for i := 0; i < b.N; i++ {
		m := di.NewManager()
		_, _ = m.AddValue(&clock{})
		_, _ = m.LoadClasses(di.ClassOf[store](), di.ClassOf[benchService]())
	}
}

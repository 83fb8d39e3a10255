package srcu

import (
	"sync"
	"testing"
)

func BenchmarkDomainEnterExit(b *testing.B) {
	b.ReportAllocs()
	d := MustNew()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			d.Exit(d.Enter())
		}
	})
}

func BenchmarkDomainEnterExitReentrancyCheck(b *testing.B) {
	b.ReportAllocs()
	d := MustNew(WithReentrancyCheck())
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			d.Exit(d.Enter())
		}
	})
}

func BenchmarkRWMutexRLock(b *testing.B) {
	b.ReportAllocs()
	var mu sync.RWMutex
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			mu.RLock()
			mu.RUnlock()
		}
	})
}

func BenchmarkDomainSynchronize(b *testing.B) {
	d := MustNew()
	b.ResetTimer()
	for range b.N {
		_ = d.Synchronize()
	}
}

func BenchmarkDomainSynchronizeExpedited(b *testing.B) {
	d := MustNew()
	b.ResetTimer()
	for range b.N {
		_ = d.SynchronizeExpedited()
	}
}

func BenchmarkDomainSynchronizeWithReaders(b *testing.B) {
	d := MustNew()
	stop := make(chan struct{})
	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					d.Read(func() {})
				}
			}
		}()
	}
	b.ResetTimer()
	for range b.N {
		_ = d.Synchronize()
	}
	b.StopTimer()
	close(stop)
	wg.Wait()
}

// Package fleet fans operations out across all configured portal clients.
// One client's failure never blocks or aborts the others; every fan-out is
// awaited to completion.
package fleet

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/yunusemregul/hacmanager/internal/hac"
	"github.com/yunusemregul/hacmanager/internal/logging"
)

// Fleet drives a set of portal clients.
type Fleet struct {
	portals []hac.Portal
	log     *zap.Logger
}

// New creates a fleet over the given portals.
func New(portals ...hac.Portal) *Fleet {
	return &Fleet{
		portals: portals,
		log:     logging.L(),
	}
}

// Portals returns the managed portals.
func (f *Fleet) Portals() []hac.Portal {
	return f.portals
}

// InitializeAll runs GetFiles on every client concurrently and waits for all
// to settle. Failed clients are reported and skipped; the rest stay usable.
// The per-portal results are returned with nil entries for successes.
func (f *Fleet) InitializeAll(ctx context.Context) map[string]error {
	return f.forEach(func(p hac.Portal) error {
		return p.GetFiles(ctx)
	})
}

// SearchAll runs Search on every client concurrently and returns the matches
// keyed by portal name. Portals that are not logged in contribute nothing.
func (f *Fleet) SearchAll(pattern string) map[string][]hac.FileEntry {
	var mu sync.Mutex
	results := make(map[string][]hac.FileEntry, len(f.portals))

	var wg sync.WaitGroup
	for _, p := range f.portals {
		wg.Add(1)
		go func(p hac.Portal) {
			defer wg.Done()
			found := p.Search(pattern)
			mu.Lock()
			results[p.Name()] = found
			mu.Unlock()
		}(p)
	}
	wg.Wait()

	return results
}

// DownloadAll runs Download on every logged-in client concurrently and waits
// for all to settle.
func (f *Fleet) DownloadAll(ctx context.Context, pattern string) map[string]error {
	return f.forEach(func(p hac.Portal) error {
		if !p.IsLoggedIn() {
			return nil
		}
		return p.Download(ctx, pattern)
	})
}

// forEach fans fn out to every portal, isolating panics and errors per
// client, and waits for all to finish.
func (f *Fleet) forEach(fn func(hac.Portal) error) map[string]error {
	var mu sync.Mutex
	results := make(map[string]error, len(f.portals))

	var wg sync.WaitGroup
	for _, p := range f.portals {
		wg.Add(1)
		go func(p hac.Portal) {
			defer wg.Done()
			err := f.run(p, fn)
			mu.Lock()
			results[p.Name()] = err
			mu.Unlock()
		}(p)
	}
	wg.Wait()

	return results
}

// run invokes fn for one portal, converting a panic into an error so a
// misbehaving client cannot take down the fan-out.
func (f *Fleet) run(p hac.Portal, fn func(hac.Portal) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			f.log.Error("portal operation panicked",
				zap.String("portal", p.Name()),
				zap.Any("panic", r))
			err = &PanicError{Portal: p.Name(), Value: r}
		}
	}()
	return fn(p)
}

// PanicError reports a recovered panic from one portal's operation.
type PanicError struct {
	Portal string
	Value  interface{}
}

func (e *PanicError) Error() string {
	return "portal " + e.Portal + " panicked"
}

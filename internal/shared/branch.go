package shared

import (
	"fmt"
	"runtime/debug"
	"sync"

	"golang.org/x/sync/errgroup"
)

// BranchPanic carries a panic raised inside a Branches goroutine, with the
// stack of the goroutine that panicked.
type BranchPanic struct {
	Value any
	Stack []byte
}

func (p *BranchPanic) Error() string {
	return fmt.Sprintf("branch panic: %v", p.Value)
}

// Branches runs independent functions concurrently. A panic in one function
// does not stop the others; Wait re-raises it on the caller's goroutine as a
// *BranchPanic once every function has returned.
type Branches struct {
	g        errgroup.Group
	once     sync.Once
	panicked *BranchPanic
}

// Go starts fn in its own goroutine.
func (b *Branches) Go(fn func()) {
	b.g.Go(func() error {
		defer func() {
			if rec := recover(); rec != nil {
				b.once.Do(func() {
					b.panicked = &BranchPanic{Value: rec, Stack: debug.Stack()}
				})
			}
		}()
		fn()
		return nil
	})
}

// Wait blocks until every function has returned.
func (b *Branches) Wait() {
	_ = b.g.Wait()
	if b.panicked != nil {
		panic(b.panicked)
	}
}

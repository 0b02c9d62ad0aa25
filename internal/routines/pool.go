// Package routines provides a bounded pool of goroutines that process queued
// work functions.
package routines

import "sync"

// Pool runs queued functions in a fixed number of goroutines.
type Pool struct {
	workChan  chan func()
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewPool starts routineCnt goroutines that process functions passed to
// Queue().
func NewPool(routineCnt uint) *Pool {
	p := Pool{
		workChan: make(chan func()),
	}

	p.wg.Add(int(routineCnt))

	for i := uint(0); i < routineCnt; i++ {
		go func() {
			defer p.wg.Done()

			for fn := range p.workChan {
				fn()
			}
		}()
	}

	return &p
}

// Queue schedules fn for execution.
// It blocks until a goroutine in the pool is able to accept the work.
// Calling Queue after Wait panics.
func (p *Pool) Queue(fn func()) {
	p.workChan <- fn
}

// Wait stops the pool and blocks until all queued functions finished.
// Wait can be called multiple times.
func (p *Pool) Wait() {
	p.closeOnce.Do(func() { close(p.workChan) })
	p.wg.Wait()
}

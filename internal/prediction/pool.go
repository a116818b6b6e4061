package prediction

import "sync"

// workerPool is a fixed set of long-lived goroutines, one per dispatch
// bucket. Each worker owns a private queue, so two jobs submitted to the
// same bucket in one cycle run in order on one goroutine. That ordering
// is what lets obstacles carry no locks: an obstacle is only ever
// touched by the bucket its id hashes to.
type workerPool struct {
	queues []chan func()
	wg     sync.WaitGroup
}

// newWorkerPool starts workers goroutines and returns the pool.
func newWorkerPool(workers int) *workerPool {
	if workers < 1 {
		workers = 1
	}
	p := &workerPool{queues: make([]chan func(), workers)}
	for i := range p.queues {
		q := make(chan func(), 1)
		p.queues[i] = q
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for fn := range q {
				fn()
			}
		}()
	}
	return p
}

// size returns the worker count.
func (p *workerPool) size() int {
	return len(p.queues)
}

// run hands one job to each worker that has one and blocks until every
// submitted job finishes. jobs is indexed by worker; nil entries are
// skipped. A panic inside a job is not recovered: dispatch treats an
// unroutable obstacle as a fatal configuration error.
func (p *workerPool) run(jobs []func()) {
	var barrier sync.WaitGroup
	for i, job := range jobs {
		if i >= len(p.queues) {
			break
		}
		if job == nil {
			continue
		}
		barrier.Add(1)
		job := job
		p.queues[i] <- func() {
			defer barrier.Done()
			job()
		}
	}
	barrier.Wait()
}

// stop closes every queue and waits for the workers to drain and exit.
// The pool cannot be reused afterwards.
func (p *workerPool) stop() {
	for _, q := range p.queues {
		close(q)
	}
	p.wg.Wait()
}

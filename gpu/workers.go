package gpu

import (
	"runtime"
	"sync"
)

// parallelThreshold is the minimum work group count to fan out.
// Below this, running inline is faster than waking the workers.
const parallelThreshold = 8

// workChunk is a range of work groups for one worker.
type workChunk struct {
	start, end int
}

// workerPool runs work group ranges on persistent goroutines.
type workerPool struct {
	numWorkers int
	job        func(start, end int)

	workChan chan workChunk
	doneChan chan struct{}
	stopChan chan struct{}
	wg       sync.WaitGroup
	running  bool
}

func newWorkerPool(workers int) *workerPool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &workerPool{numWorkers: workers}
}

func (p *workerPool) start() {
	if p.running {
		return
	}

	p.workChan = make(chan workChunk, p.numWorkers)
	p.doneChan = make(chan struct{}, p.numWorkers)
	p.stopChan = make(chan struct{})
	p.running = true

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// stop signals all workers to exit and waits for them.
func (p *workerPool) stop() {
	if !p.running {
		return
	}

	close(p.stopChan)
	p.wg.Wait()
	close(p.workChan)
	close(p.doneChan)
	p.running = false
}

func (p *workerPool) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.stopChan:
			return
		case chunk, ok := <-p.workChan:
			if !ok {
				return
			}
			p.job(chunk.start, chunk.end)
			p.doneChan <- struct{}{}
		}
	}
}

// run executes job over [0, n) and returns once every chunk is done.
func (p *workerPool) run(n int, job func(start, end int)) {
	if n < parallelThreshold || p.numWorkers < 2 {
		job(0, n)
		return
	}

	if !p.running {
		p.start()
	}
	p.job = job

	chunkSize := (n + p.numWorkers - 1) / p.numWorkers
	dispatched := 0
	for w := 0; w < p.numWorkers; w++ {
		start := w * chunkSize
		end := start + chunkSize
		if end > n {
			end = n
		}
		if start >= end {
			continue
		}
		p.workChan <- workChunk{start: start, end: end}
		dispatched++
	}

	for i := 0; i < dispatched; i++ {
		<-p.doneChan
	}
}

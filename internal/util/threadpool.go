package util

import (
	"sync"
	"sync/atomic"
)

// ThreadPool bounds the number of goroutines a stage runs at once.
type ThreadPool struct {
	Count atomic.Int64
	slots chan struct{}
	wait  sync.WaitGroup
}

func NewThreadPool(size int64) *ThreadPool {
	if size < 1 {
		size = 1
	}
	return &ThreadPool{slots: make(chan struct{}, size)}
}

// StartThread blocks until a slot is free.
func (pool *ThreadPool) StartThread() {
	pool.slots <- struct{}{}
	pool.wait.Add(1)
	pool.Count.Add(1)
}

func (pool *ThreadPool) StopThread() {
	pool.Count.Add(-1)
	<-pool.slots
	pool.wait.Done()
}

func (pool *ThreadPool) Size() int {
	return cap(pool.slots)
}

func (pool *ThreadPool) Wait() {
	pool.wait.Wait()
}

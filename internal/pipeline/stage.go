package pipeline

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/larkwiot/shelf/internal/util"
)

type Worker func(any) (any, error)

// Stage runs its worker over every input on a bounded pool. A nil result or a
// non-nil error sends the input to the fail handler instead of downstream.
type Stage struct {
	Name   string
	pool   *util.ThreadPool
	worker Worker
}

func NewStage(name string, poolSize int64, worker Worker) *Stage {
	return &Stage{
		Name:   name,
		pool:   util.NewThreadPool(poolSize),
		worker: worker,
	}
}

// Run consumes input until it is closed, then closes output once every
// in-flight item has finished.
func (s *Stage) Run(input <-chan any, output chan<- any, failHandler func(any, error)) {
	for i := range input {
		s.pool.StartThread()
		go func() {
			defer s.pool.StopThread()
			result, err := s.worker(i)
			if result == nil || err != nil {
				failHandler(i, err)
				return
			}
			output <- result
		}()
	}
	s.pool.Wait()
	close(output)
}

func (s *Stage) Status() string {
	return fmt.Sprintf("%s %d", s.Name, s.pool.Count.Load())
}

type CollectorStage struct {
	collector func(any)
	wait      sync.WaitGroup
	count     atomic.Uint64
}

func NewCollectorStage(collector func(any)) *CollectorStage {
	return &CollectorStage{
		collector: collector,
	}
}

func (s *CollectorStage) Run(input <-chan any) {
	defer s.wait.Done()
	for output := range input {
		s.count.Add(1)
		s.collector(output)
	}
}

func (s *CollectorStage) Wait() {
	s.wait.Wait()
}

func (s *CollectorStage) Status() string {
	return fmt.Sprintf("collected %d", s.count.Load())
}

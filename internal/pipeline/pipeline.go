// Package pipeline chains worker stages over channels. Each stage has its own
// bounded pool; whatever leaves the last stage goes to the collector.
package pipeline

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

type stageDescription struct {
	Name   string
	Worker Worker
}

type Pipeline struct {
	Frontend          chan any
	TotalThreadCount  int64
	stageDescriptions []stageDescription
	stages            []*Stage
	collector         *CollectorStage
	onStatus          func(string)
	quit              chan struct{}
	failCount         atomic.Int64
}

func NewPipeline(totalThreadCount int64) *Pipeline {
	return &Pipeline{
		TotalThreadCount: totalThreadCount,
		Frontend:         make(chan any),
		quit:             make(chan struct{}),
	}
}

func (p *Pipeline) AppendStage(name string, worker Worker) {
	p.stageDescriptions = append(p.stageDescriptions, stageDescription{Name: name, Worker: worker})
}

func (p *Pipeline) CollectorStage(collector func(any)) {
	p.collector = NewCollectorStage(collector)
}

// OnStatus registers a callback that receives a one-line status every 100ms
// while the pipeline runs.
func (p *Pipeline) OnStatus(report func(string)) {
	p.onStatus = report
}

func (p *Pipeline) Run(failHandler func(any, error)) error {
	if len(p.stageDescriptions) == 0 {
		return fmt.Errorf("pipeline not running because no stages were specified")
	}

	wrappedFailHandler := func(a any, err error) {
		p.failCount.Add(1)
		failHandler(a, err)
	}

	perStageThreadCount := max(p.TotalThreadCount/int64(len(p.stageDescriptions)), 1)

	var lastOutput <-chan any = p.Frontend
	for _, stageDesc := range p.stageDescriptions {
		output := make(chan any)
		stage := NewStage(stageDesc.Name, perStageThreadCount, stageDesc.Worker)
		go stage.Run(lastOutput, output, wrappedFailHandler)
		p.stages = append(p.stages, stage)
		lastOutput = output
	}

	if p.collector == nil {
		p.collector = NewCollectorStage(func(any) {})
	}
	p.collector.wait.Add(1)
	go p.collector.Run(lastOutput)

	if p.onStatus != nil {
		go p.reportStatus()
	}
	return nil
}

func (p *Pipeline) reportStatus() {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.onStatus(p.Status())
		case <-p.quit:
			return
		}
	}
}

func (p *Pipeline) Status() string {
	statuses := make([]string, 0, len(p.stages)+2)
	for _, stage := range p.stages {
		statuses = append(statuses, stage.Status())
	}
	if p.collector != nil {
		statuses = append(statuses, p.collector.Status())
	}
	statuses = append(statuses, fmt.Sprintf("failed %d", p.failCount.Load()))
	return strings.Join(statuses, " -> ")
}

func (p *Pipeline) Failed() int64 {
	return p.failCount.Load()
}

// Close stops accepting input and blocks until everything submitted has been
// collected or failed.
func (p *Pipeline) Close() {
	close(p.Frontend)
	if p.collector != nil {
		p.collector.Wait()
	}
	close(p.quit)
}

package worker

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/vharia/threatlens/internal/config"
	"github.com/vharia/threatlens/internal/job"
	"github.com/vharia/threatlens/internal/metrics"
	"github.com/vharia/threatlens/internal/semcache"
	"github.com/vharia/threatlens/pkg/logger_i"
)

// Pool is an elastic worker pool fed by the job channel. The dispatcher
// spawns extra workers under request pressure up to MaxWorkerCount, and idle
// workers above the minimum retire themselves.
type Pool struct {
	jobService         *job.Service
	cacheService       semcache.Service
	stopWorkerChannel  chan bool
	workerWaitGroup    *sync.WaitGroup
	currentWorkerCount int64
	logger             *logger_i.Logger
}

func NewPool(jobService *job.Service, cacheService semcache.Service) *Pool {
	return &Pool{
		jobService:   jobService,
		cacheService: cacheService,
		logger:       logger_i.NewLogger("WorkerPool"),
	}
}

func (p *Pool) Start(stopWorkerChan chan bool, waitGroup *sync.WaitGroup) {
	p.stopWorkerChannel = stopWorkerChan
	p.workerWaitGroup = waitGroup
	p.logger.Info("Initializing worker pool")
	go p.dispatcher()
}

func (p *Pool) dispatcher() {
	p.createWorker()
	p.logger.Info("Dispatcher started")
	for range p.jobService.DispatcherChannel {
		if atomic.LoadInt64(&p.currentWorkerCount) < config.MaxWorkerCount {
			p.logger.Info("Creating new worker", "workerCount", atomic.LoadInt64(&p.currentWorkerCount))
			p.createWorker()
		}
	}
}

func (p *Pool) createWorker() {
	p.workerWaitGroup.Add(1)
	go p.worker()
	atomic.AddInt64(&p.currentWorkerCount, 1)
	metrics.IncrementActiveWorkerCount()
}

func (p *Pool) worker() {
	for {
		select {
		case currentJob := <-p.jobService.JobChannel:
			p.executeJob(currentJob)
			metrics.DecrementJobsInQueue()

		case <-p.stopWorkerChannel:
			p.removeWorker("Stop worker signal received")
			return

		case <-time.After(config.IdleWorkerTimeout):
			if atomic.LoadInt64(&p.currentWorkerCount) > config.MinWorkerCount {
				p.removeWorker("Idle worker timeout")
				return
			}
		}
	}
}

func (p *Pool) removeWorker(reason string) {
	p.workerWaitGroup.Done()
	atomic.AddInt64(&p.currentWorkerCount, -1)
	p.logger.Info("Removed worker", "reason", reason, "workerCount", atomic.LoadInt64(&p.currentWorkerCount))
	metrics.DecrementActiveWorkerCount()
}

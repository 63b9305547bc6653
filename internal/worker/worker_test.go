package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vharia/threatlens/internal/config"
	"github.com/vharia/threatlens/internal/domain/docmodel"
	"github.com/vharia/threatlens/internal/domain/jobmodel"
	"github.com/vharia/threatlens/internal/job"
	"github.com/vharia/threatlens/internal/retrieval"
	"github.com/vharia/threatlens/pkg/logger_i"
)

// mockCacheService tracks how many jobs reached the facade.
type mockCacheService struct {
	processedCount int32
	finalStatus    jobmodel.JobStatus
}

func (m *mockCacheService) ProcessJob(ctx context.Context, j jobmodel.Job) jobmodel.Job {
	atomic.AddInt32(&m.processedCount, 1)
	if m.finalStatus != "" {
		j.Status = m.finalStatus
	} else {
		j.Status = jobmodel.JobStatusComplete
	}
	j.EndTime = time.Now()
	return j
}

func (m *mockCacheService) IngestDocument(ctx context.Context, doc docmodel.SourceDocument) (string, error) {
	return "", nil
}

func (m *mockCacheService) IngestFile(ctx context.Context, path string, metadata map[string]any) (string, error) {
	return "", nil
}

func (m *mockCacheService) Search(ctx context.Context, query string, k int, providerHint string, expand bool) ([]docmodel.QueryResult, retrieval.Path, error) {
	return nil, retrieval.PathEmpty, nil
}

func (m *mockCacheService) FanOutSearch(ctx context.Context, queries []string, k int, providerHint string) ([]docmodel.QueryResult, error) {
	return nil, nil
}

func (m *mockCacheService) SearchWithContext(ctx context.Context, query string, k int, providerHint string) (docmodel.ContextResult, error) {
	return docmodel.ContextResult{}, nil
}

func (m *mockCacheService) Reconcile(ctx context.Context, desired []docmodel.SourceDocument) (docmodel.ReconcileSummary, error) {
	return docmodel.ReconcileSummary{}, nil
}

func (m *mockCacheService) RemoveDocument(ctx context.Context, id string) error { return nil }

func (m *mockCacheService) Stats(ctx context.Context) (docmodel.Stats, error) {
	return docmodel.Stats{}, nil
}

func (m *mockCacheService) Clear(ctx context.Context) error { return nil }

func (m *mockCacheService) HealthCheck(ctx context.Context) error { return nil }

type mockJobStore struct {
	mu     sync.Mutex
	states []jobmodel.JobStatus
}

func (m *mockJobStore) SaveJob(ctx context.Context, j jobmodel.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states = append(m.states, j.Status)
	return nil
}

func (m *mockJobStore) GetJob(ctx context.Context, jobId string) (jobmodel.Job, bool) {
	return jobmodel.Job{}, false
}

func (m *mockJobStore) DeleteJob(ctx context.Context, jobId string) {}

func (m *mockJobStore) savedStates() []jobmodel.JobStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]jobmodel.JobStatus{}, m.states...)
}

func newTestPool(cache *mockCacheService, jobStore *mockJobStore) (*Pool, chan jobmodel.Job, chan bool, *sync.WaitGroup) {
	logger_i.Init()

	jobChannel := make(chan jobmodel.Job, config.BufferLimit)
	dispatcherChannel := make(chan bool, 1)
	jobService := job.InitJobService(job.ServiceConfig{
		JobChannel:        jobChannel,
		DispatcherChannel: dispatcherChannel,
		JobStore:          jobStore,
	})

	pool := NewPool(jobService, cache)
	stopChannel := make(chan bool)
	var waitGroup sync.WaitGroup
	pool.Start(stopChannel, &waitGroup)
	return pool, jobChannel, stopChannel, &waitGroup
}

func TestPool_ProcessesQueuedJob(t *testing.T) {
	cache := &mockCacheService{}
	jobStore := &mockJobStore{}
	_, jobChannel, stopChannel, waitGroup := newTestPool(cache, jobStore)

	jobChannel <- jobmodel.Job{
		Id:      "queued-job",
		JobType: jobmodel.JobTypeIngest,
		Status:  jobmodel.JobStatusQueued,
	}

	deadline := time.After(2 * time.Second)
	for atomic.LoadInt32(&cache.processedCount) == 0 {
		select {
		case <-deadline:
			t.Fatal("job was never processed")
		case <-time.After(10 * time.Millisecond):
		}
	}

	close(stopChannel)
	waitGroup.Wait()

	states := jobStore.savedStates()
	if len(states) < 2 {
		t.Fatalf("expected running and terminal saves, got %v", states)
	}
	if states[0] != jobmodel.JobStatusRunning {
		t.Errorf("first saved state = %v; want %v", states[0], jobmodel.JobStatusRunning)
	}
	if states[len(states)-1] != jobmodel.JobStatusComplete {
		t.Errorf("terminal state = %v; want %v", states[len(states)-1], jobmodel.JobStatusComplete)
	}
}

func TestPool_ErrorStatePersisted(t *testing.T) {
	cache := &mockCacheService{finalStatus: jobmodel.JobStatusError}
	jobStore := &mockJobStore{}
	_, jobChannel, stopChannel, waitGroup := newTestPool(cache, jobStore)

	jobChannel <- jobmodel.Job{
		Id:      "doomed-job",
		JobType: jobmodel.JobTypeIngest,
		Status:  jobmodel.JobStatusQueued,
	}

	deadline := time.After(2 * time.Second)
	for atomic.LoadInt32(&cache.processedCount) == 0 {
		select {
		case <-deadline:
			t.Fatal("job was never processed")
		case <-time.After(10 * time.Millisecond):
		}
	}

	close(stopChannel)
	waitGroup.Wait()

	states := jobStore.savedStates()
	if states[len(states)-1] != jobmodel.JobStatusError {
		t.Errorf("terminal state = %v; want %v", states[len(states)-1], jobmodel.JobStatusError)
	}
}

package download

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	typedsync "github.com/hbomb79/mediaload/pkg/sync"
)

var (
	ErrJobNotFound       = errors.New("no job found")
	ErrDuplicateJob      = errors.New("job already exists")
	ErrIllegalTransition = errors.New("illegal job status transition")
)

type (
	// Registry is the in-memory, concurrency-safe store of every Job known to
	// this process, and the single source of truth for status queries.
	//
	// Each job is guarded by its own lock so that updates to one job never
	// contend with reads or writes of another, and a reader can never observe a
	// partially applied update.
	Registry struct {
		jobs typedsync.TypedSyncMap[uuid.UUID, *entry]
	}

	entry struct {
		sync.RWMutex
		job Job
	}
)

func NewRegistry() *Registry {
	return &Registry{}
}

// Create stores a new job. The job must have a non-nil ID which is
// not already known to the registry.
func (registry *Registry) Create(job Job) error {
	if job.ID == uuid.Nil {
		return errors.New("cannot create job with nil ID")
	}

	if _, loaded := registry.jobs.LoadOrStore(job.ID, &entry{job: job}); loaded {
		return fmt.Errorf("%w: %s", ErrDuplicateJob, job.ID)
	}

	return nil
}

// Get returns a snapshot of the job with the ID provided. The boolean
// is false if no such job exists.
func (registry *Registry) Get(id uuid.UUID) (Job, bool) {
	e, ok := registry.jobs.Load(id)
	if !ok {
		return Job{}, false
	}

	e.RLock()
	defer e.RUnlock()
	return e.job, true
}

// Mutate applies the update function to the job with the ID provided. The update
// is applied to a copy of the job and only committed if the result is legal, making
// each call an atomic field-set update:
//   - ID, SourceURL, Title, Kind, Quality, Container and CreatedAt are immutable
//     and any change to them is discarded
//   - status may only move forward (see JobStatus.CanTransitionTo)
//   - a job becoming Completed is forced to 100% progress
//   - terminal jobs cannot be mutated at all
func (registry *Registry) Mutate(id uuid.UUID, update func(*Job)) error {
	e, ok := registry.jobs.Load(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}

	e.Lock()
	defer e.Unlock()

	current := e.job
	if current.Status.IsTerminal() {
		return fmt.Errorf("%w: job %s is already %s", ErrIllegalTransition, id, current.Status)
	}

	next := current
	update(&next)

	next.ID = current.ID
	next.SourceURL = current.SourceURL
	next.Title = current.Title
	next.Kind = current.Kind
	next.Quality = current.Quality
	next.Container = current.Container
	next.CreatedAt = current.CreatedAt

	if next.Status != current.Status {
		if !current.Status.CanTransitionTo(next.Status) {
			return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, current.Status, next.Status)
		}

		if next.Status.IsTerminal() {
			next.PostProcessing = false
			if next.FinishedAt.IsZero() {
				next.FinishedAt = time.Now()
			}
		}
	}

	if next.Status == Completed {
		next.Progress = 100
	}
	if next.Status != Failed {
		next.Error = ""
	}

	e.job = next
	return nil
}

// All returns a snapshot of every job in the registry, newest first.
func (registry *Registry) All() []Job {
	jobs := make([]Job, 0)
	registry.jobs.Range(func(_ uuid.UUID, e *entry) bool {
		e.RLock()
		jobs = append(jobs, e.job)
		e.RUnlock()
		return true
	})

	sort.Slice(jobs, func(i, j int) bool { return jobs[i].CreatedAt.After(jobs[j].CreatedAt) })
	return jobs
}

// Evict removes all terminal jobs which finished before the cutoff provided,
// returning the number of jobs removed. Jobs which are still running are never evicted.
func (registry *Registry) Evict(cutoff time.Time) int {
	evicted := 0
	registry.jobs.Range(func(id uuid.UUID, e *entry) bool {
		e.RLock()
		expired := e.job.Status.IsTerminal() && e.job.FinishedAt.Before(cutoff)
		e.RUnlock()

		if expired {
			registry.jobs.Delete(id)
			evicted++
		}
		return true
	})

	return evicted
}

// Len returns the number of jobs held by the registry.
func (registry *Registry) Len() int {
	return registry.jobs.Len()
}

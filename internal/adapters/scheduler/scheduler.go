package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/eleven-am/weft/internal/domain"
	"github.com/eleven-am/weft/internal/ports"
)

// Scheduler persists timer descriptors and drives time-based transitions:
// due jobs are armed on an in-process timer pool and fired through an
// acquire/transition protocol that keeps duplicate firings harmless.
type Scheduler struct {
	config    domain.SchedulerConfig
	processes ports.Processes
	store     ports.JobStore
	uow       ports.UnitOfWorkManager
	logger    *slog.Logger

	sem *semaphore.Weighted

	mu      sync.Mutex
	handles map[string]*time.Timer
	started bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewScheduler(config domain.SchedulerConfig, processes ports.Processes, store ports.JobStore, uow ports.UnitOfWorkManager, logger *slog.Logger) *Scheduler {
	workers := config.Workers
	if workers <= 0 {
		workers = 1
	}
	return &Scheduler{
		config:    config,
		processes: processes,
		store:     store,
		uow:       uow,
		logger:    logger.With("component", "job-scheduler"),
		sem:       semaphore.NewWeighted(int64(workers)),
		handles:   make(map[string]*time.Timer),
	}
}

// Start recovers all persisted jobs synchronously, so a restart does not lose
// timers scheduled before a crash, then begins the periodic loader.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return domain.ErrAlreadyStarted
	}
	s.started = true
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	if err := s.recoverJobs(); err != nil {
		s.logger.Error("failed to recover persisted jobs", "error", err)
	}

	s.wg.Add(1)
	go s.loadLoop()

	s.logger.Debug("job scheduler started", "interval", s.config.Interval)
	return nil
}

// Stop cancels all local handles. Persisted jobs are left untouched for the
// next startup's recovery scan.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return domain.ErrNotStarted
	}
	s.started = false
	s.cancel()
	for id, handle := range s.handles {
		handle.Stop()
		delete(s.handles, id)
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Debug("job scheduler stopped")
	return nil
}

func (s *Scheduler) ScheduleProcessJob(description domain.ProcessJobDescription) (string, error) {
	s.logger.Debug("scheduling process job", "job_id", description.ID, "process_id", description.ProcessID)

	job := &domain.JobInstance{
		ID:                description.ID,
		TriggerType:       "timer",
		OwnerDefinitionID: description.ProcessID,
		Status:            domain.JobStatusScheduled,
		ExpirationTime:    description.Expiration.At,
		RepeatLimit:       description.Expiration.RepeatLimit,
		RepeatInterval:    description.Expiration.RepeatInterval,
	}

	err := s.uow.Execute(func(uow ports.UnitOfWork) error {
		existing, err := s.store.FindByID(job.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			// The persisted record wins; the new description is ignored.
			job = existing
			return nil
		}
		return s.store.Persist(job)
	})
	if err != nil {
		return "", err
	}

	if job.ExpirationTime.Before(time.Now().Add(s.config.Interval)) {
		s.arm(*job)
	}
	return job.ID, nil
}

func (s *Scheduler) ScheduleProcessInstanceJob(description domain.ProcessInstanceJobDescription) (string, error) {
	ownerDefinitionID := (&domain.Process{ID: description.ProcessID, Version: description.ProcessVersion}).VersionedID()

	job := &domain.JobInstance{
		ID:                description.ID,
		TriggerType:       description.TriggerType,
		OwnerDefinitionID: ownerDefinitionID,
		OwnerInstanceID:   description.ProcessInstanceID,
		Status:            domain.JobStatusScheduled,
		ExpirationTime:    description.Expiration.At,
		RepeatLimit:       description.Expiration.RepeatLimit,
		RepeatInterval:    description.Expiration.RepeatInterval,
	}

	if err := s.store.Persist(job); err != nil {
		return "", err
	}

	if job.ExpirationTime.Before(time.Now().Add(s.config.Interval)) {
		s.arm(*job)
	}
	return job.ID, nil
}

// CancelJob deletes the persisted record unconditionally and best-effort
// stops the local handle. A firing already past its acquire step is not
// stopped; the receiving instance drops the late signal.
func (s *Scheduler) CancelJob(id string) error {
	if _, err := s.store.DeleteByID(id); err != nil {
		return err
	}
	s.dropHandle(id, true)
	return nil
}

func (s *Scheduler) ScheduledTime(id string) (time.Time, error) {
	job, err := s.store.FindByID(id)
	if err != nil {
		return time.Time{}, err
	}
	if job == nil {
		return time.Time{}, domain.ErrNotFound
	}
	return job.ExpirationTime, nil
}

// recoverJobs arms every persisted job regardless of the load window.
func (s *Scheduler) recoverJobs() error {
	jobs, err := s.store.LoadJobsDueBefore(time.Now().AddDate(100, 0, 0))
	if err != nil {
		return err
	}
	s.logger.Debug("recovered persisted jobs", "count", len(jobs))
	for _, job := range jobs {
		s.arm(*job)
	}
	return nil
}

func (s *Scheduler) loadLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.loadDueJobs()
		}
	}
}

func (s *Scheduler) loadDueJobs() {
	deadline := time.Now().Add(s.config.Interval)
	jobs, err := s.store.LoadJobsDueBefore(deadline)
	if err != nil {
		s.logger.Error("failed to load due jobs", "error", err)
		return
	}

	s.logger.Debug("loaded jobs to be executed", "count", len(jobs), "before", deadline)
	for _, job := range jobs {
		s.arm(*job)
	}
}

// arm schedules a local handle for the job unless one is already present.
func (s *Scheduler) arm(job domain.JobInstance) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	if _, exists := s.handles[job.ID]; exists {
		return
	}

	delay := time.Until(job.ExpirationTime)
	if delay < 0 {
		delay = 0
	}

	id := job.ID
	s.handles[id] = time.AfterFunc(delay, func() {
		s.fire(id)
	})
	s.logger.Debug("next fire of job", "job_id", id, "in", delay)
}

// fire runs the firing protocol as one unit of work: acquire the job, resolve
// its owner, deliver the timer signal or start a fresh instance, then handle
// repeats. A failed delivery rolls the job back to scheduled so a later loader
// scan retries it; duplicate firings, prior cancellations and orphaned jobs
// all resolve to no-ops.
func (s *Scheduler) fire(id string) {
	if err := s.sem.Acquire(s.ctx, 1); err != nil {
		return
	}
	defer s.sem.Release(1)

	s.logger.Debug("job started", "job_id", id)

	acquired := false
	err := s.uow.Execute(func(uow ports.UnitOfWork) error {
		job, err := s.store.AcquireJob(id)
		if err != nil {
			return err
		}
		if job == nil || job.Status != domain.JobStatusScheduled {
			return nil
		}

		job.Status = domain.JobStatusTaken
		if err := s.store.Persist(job); err != nil {
			return err
		}
		acquired = true
		uow.OnRollback(func() {
			job.Status = domain.JobStatusScheduled
			if perr := s.store.Persist(job); perr != nil {
				s.logger.Error("failed to release job for retry", "job_id", id, "error", perr)
			}
		})

		process := s.processes.ProcessByID(job.OwnerDefinitionID)
		if process == nil {
			s.logger.Warn("no process found for process id", "process_id", job.OwnerDefinitionID)
			s.dropHandle(id, false)
			return nil
		}

		if job.OwnerInstanceID != "" {
			return s.signalInstance(process, job)
		}
		return s.startInstance(process, job)
	})
	if err != nil {
		s.dropHandle(id, false)
		s.logger.Error("job firing failed", "job_id", id, "error", err)
		return
	}
	if !acquired {
		s.dropHandle(id, true)
		return
	}

	s.logger.Debug("job completed", "job_id", id)
}

func (s *Scheduler) signalInstance(process ports.Process, job *domain.JobInstance) error {
	instance, found := process.Instances().FindByID(job.OwnerInstanceID)
	if !found {
		// The owning process instance no longer exists: the timer is
		// orphaned, cancel it permanently.
		s.dropHandle(job.ID, false)
		_, err := s.store.DeleteByID(job.ID)
		return err
	}

	signal := domain.Sig(job.TriggerType, domain.TimerFired{
		TimerID:   domain.ParseTimerID(job.ID),
		JobID:     job.ID,
		Remaining: job.RepeatLimit,
	})
	if err := instance.Send(signal); err != nil {
		return err
	}

	s.dropHandle(job.ID, false)
	if job.RepeatLimit > 0 {
		return s.updateRepeatableJob(job.ID)
	}
	_, err := s.store.DeleteByID(job.ID)
	return err
}

func (s *Scheduler) startInstance(process ports.Process, job *domain.JobInstance) error {
	instance, err := process.CreateInstance()
	if err != nil {
		return err
	}
	if err := instance.Start("timer", ""); err != nil {
		return err
	}

	s.dropHandle(job.ID, false)
	if job.RepeatLimit > 0 {
		return s.updateRepeatableJob(job.ID)
	}
	_, err = s.store.DeleteByID(job.ID)
	return err
}

// updateRepeatableJob advances a repeating job to its next firing: decrement
// the limit, push the expiration by one interval, flip it back to scheduled
// and arm a fresh handle.
func (s *Scheduler) updateRepeatableJob(id string) error {
	job, err := s.store.FindByID(id)
	if err != nil {
		return err
	}
	if job == nil {
		return nil
	}

	job.RepeatLimit--
	job.ExpirationTime = job.ExpirationTime.Add(job.RepeatInterval)
	job.Status = domain.JobStatusScheduled
	if err := s.store.Persist(job); err != nil {
		return err
	}

	s.arm(*job)
	return nil
}

func (s *Scheduler) dropHandle(id string, stop bool) {
	s.mu.Lock()
	handle, exists := s.handles[id]
	delete(s.handles, id)
	s.mu.Unlock()

	if stop && exists {
		handle.Stop()
	}
}

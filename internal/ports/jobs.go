package ports

import (
	"time"

	"github.com/eleven-am/weft/internal/domain"
)

// JobStore is the persistence contract for job instances. Implementations
// must support concurrent use by multiple pool workers.
type JobStore interface {
	Persist(job *domain.JobInstance) error
	FindByID(id string) (*domain.JobInstance, error)
	DeleteByID(id string) (bool, error)
	LoadJobsDueBefore(deadline time.Time) ([]*domain.JobInstance, error)

	// AcquireJob reads the job for a compare-and-transition: the caller
	// checks the status and flips it to taken before acting. Returns nil
	// when the job no longer exists.
	AcquireJob(id string) (*domain.JobInstance, error)

	Close() error
}

// JobsService schedules, cancels and inspects timer jobs.
type JobsService interface {
	ScheduleProcessJob(description domain.ProcessJobDescription) (string, error)
	ScheduleProcessInstanceJob(description domain.ProcessInstanceJobDescription) (string, error)
	CancelJob(id string) error
	ScheduledTime(id string) (time.Time, error)
}

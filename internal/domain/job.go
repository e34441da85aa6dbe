package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobStatusScheduled JobStatus = "scheduled"
	JobStatusTaken     JobStatus = "taken"
)

// JobInstance is the persisted descriptor of a pending timer-driven
// transition. RepeatLimit of -1 means the job does not repeat, 0 means the
// repeats are exhausted, a positive value is the number of firings left.
type JobInstance struct {
	ID                string        `json:"id"`
	TriggerType       string        `json:"trigger_type"`
	OwnerDefinitionID string        `json:"owner_definition_id"`
	OwnerInstanceID   string        `json:"owner_instance_id,omitempty"`
	Status            JobStatus     `json:"status"`
	ExpirationTime    time.Time     `json:"expiration_time"`
	RepeatLimit       int           `json:"repeat_limit"`
	RepeatInterval    time.Duration `json:"repeat_interval,omitempty"`
}

func (j *JobInstance) Repeating() bool {
	return j.RepeatInterval > 0
}

// ExpirationSpec captures when a job fires and how it repeats.
type ExpirationSpec struct {
	At             time.Time
	RepeatLimit    int
	RepeatInterval time.Duration
}

func ExpireAt(at time.Time) ExpirationSpec {
	return ExpirationSpec{At: at, RepeatLimit: -1}
}

func ExpireEvery(at time.Time, interval time.Duration, limit int) ExpirationSpec {
	return ExpirationSpec{At: at, RepeatInterval: interval, RepeatLimit: limit}
}

// ProcessJobDescription schedules a timer that starts a brand new instance of
// the process when it fires.
type ProcessJobDescription struct {
	ID         string
	ProcessID  string
	Expiration ExpirationSpec
}

// ProcessInstanceJobDescription schedules a timer owned by an existing
// process instance; firing delivers a signal of TriggerType into it.
type ProcessInstanceJobDescription struct {
	ID                string
	TriggerType       string
	ProcessID         string
	ProcessVersion    string
	ProcessInstanceID string
	Expiration        ExpirationSpec
}

// NewJobID builds a job id carrying the timer sequence number so that it can
// be recovered on firing, see ParseTimerID.
func NewJobID(timerID int64) string {
	return fmt.Sprintf("%s_%d", uuid.NewString(), timerID)
}

// ParseTimerID extracts the timer sequence number encoded in a job id.
func ParseTimerID(jobID string) int64 {
	idx := strings.LastIndex(jobID, "_")
	if idx < 0 {
		return -1
	}
	n, err := strconv.ParseInt(jobID[idx+1:], 10, 64)
	if err != nil {
		return -1
	}
	return n
}

// TimerFired is the payload of the signal delivered when a scheduled job
// expires.
type TimerFired struct {
	TimerID   int64  `json:"timer_id"`
	JobID     string `json:"job_id"`
	Remaining int    `json:"remaining"`
}

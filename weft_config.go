package weft

import (
	"log/slog"
	"time"

	"github.com/eleven-am/weft/internal/domain"
	"github.com/eleven-am/weft/internal/ports"
)

type Config = domain.Config

type EngineConfig = domain.EngineConfig

type SchedulerConfig = domain.SchedulerConfig

type StorageConfig = domain.StorageConfig

// Process is a registered process definition bound to its runtime services.
type Process = ports.Process

// ProcessInstance is a single running occurrence of a process definition.
type ProcessInstance = ports.ProcessInstance

// InstanceStore is the keyed collection of a process's live instances.
type InstanceStore = ports.InstanceStore

// JobsService schedules, cancels and inspects timer jobs.
type JobsService = ports.JobsService

// ProcessEventListener receives node-left and instance-completed
// notifications.
type ProcessEventListener = ports.ProcessEventListener

type AccessPolicy = ports.AccessPolicy

type IdentityProvider = ports.IdentityProvider

type IdentityFunc = ports.IdentityFunc

// Definition building blocks.
type Definition = domain.Process

type Node = domain.Node

type NodeKind = domain.NodeKind

type Connection = domain.Connection

type Constraint = domain.Constraint

type Variables = domain.Variables

type TaskHandler = domain.TaskHandler

type Signal = domain.Signal

type InstanceStatus = domain.InstanceStatus

type ProcessError = domain.ProcessError

type InstanceSnapshot = domain.InstanceSnapshot

type EventDescription = domain.EventDescription

type TimerFired = domain.TimerFired

const (
	KindStart     = domain.KindStart
	KindEnd       = domain.KindEnd
	KindTask      = domain.KindTask
	KindSplitAnd  = domain.KindSplitAnd
	KindSplitXor  = domain.KindSplitXor
	KindSplitOr   = domain.KindSplitOr
	KindSplitXand = domain.KindSplitXand
	KindJoinAnd   = domain.KindJoinAnd
	KindForEach   = domain.KindForEach
	KindEvent     = domain.KindEvent
	KindTimer     = domain.KindTimer
)

const (
	InstanceStatusPending   = domain.InstanceStatusPending
	InstanceStatusActive    = domain.InstanceStatusActive
	InstanceStatusCompleted = domain.InstanceStatusCompleted
	InstanceStatusAborted   = domain.InstanceStatusAborted
	InstanceStatusSuspended = domain.InstanceStatusSuspended
	InstanceStatusError     = domain.InstanceStatusError
)

var (
	ErrAlreadyStarted = domain.ErrAlreadyStarted
	ErrNotStarted     = domain.ErrNotStarted
	ErrNotFound       = domain.ErrNotFound
	ErrInvalidConfig  = domain.ErrInvalidConfig
	ErrInvalidInput   = domain.ErrInvalidInput
)

// Sig builds a signal from a type and payload.
func Sig(signalType string, payload interface{}) Signal {
	return domain.Sig(signalType, payload)
}

func DefaultConfig() *Config {
	return domain.DefaultConfig()
}

func DefaultEngineConfig() EngineConfig {
	return domain.DefaultEngineConfig()
}

func DefaultSchedulerConfig() SchedulerConfig {
	return domain.DefaultSchedulerConfig()
}

// LoadConfig reads a YAML configuration file over the defaults.
func LoadConfig(path string) (*Config, error) {
	return domain.LoadConfig(path)
}

type ConfigBuilder struct {
	config *Config
}

func NewConfigBuilder(dataDir string) *ConfigBuilder {
	config := DefaultConfig()
	config.DataDir = dataDir
	return &ConfigBuilder{config: config}
}

func (cb *ConfigBuilder) WithLogger(logger *slog.Logger) *ConfigBuilder {
	cb.config.Logger = logger
	return cb
}

func (cb *ConfigBuilder) WithSchedulerInterval(interval time.Duration) *ConfigBuilder {
	cb.config.Scheduler.Interval = interval
	return cb
}

func (cb *ConfigBuilder) WithSchedulerWorkers(workers int) *ConfigBuilder {
	cb.config.Scheduler.Workers = workers
	return cb
}

func (cb *ConfigBuilder) WithDurableJobs(dir string) *ConfigBuilder {
	cb.config.Storage.InMemory = false
	cb.config.Storage.Dir = dir
	return cb
}

func (cb *ConfigBuilder) WithMultiConnection(enabled bool) *ConfigBuilder {
	cb.config.Engine.MultiConnection = enabled
	return cb
}

func (cb *ConfigBuilder) Build() *Config {
	return cb.config
}

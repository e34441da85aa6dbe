// Package weft provides an embeddable business process engine for Go
// applications.
//
// Weft executes process definitions built from typed nodes: tasks, events,
// timers, gateways and multi-instance loops. It provides:
//   - A node-instance state machine with AND/XOR/OR/exclusive gateways
//   - Multi-instance (for-each) execution with output aggregation
//   - Durable timer jobs with repeat limits and restart recovery
//   - Keyed in-memory instance stores with pluggable access policies
//
// Basic usage:
//
//	eng, _ := weft.New(weft.DefaultConfig())
//	process, _ := eng.Register(definition)
//	eng.Start(context.Background())
//
//	instance, _ := process.CreateInstanceWithBusinessKey("order-17", weft.Variables{"total": 42})
//	instance.Start("", "")
package weft

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/eleven-am/weft/internal/adapters/engine"
	"github.com/eleven-am/weft/internal/adapters/instances"
	"github.com/eleven-am/weft/internal/adapters/scheduler"
	"github.com/eleven-am/weft/internal/adapters/storage"
	"github.com/eleven-am/weft/internal/domain"
	"github.com/eleven-am/weft/internal/ports"
	"github.com/eleven-am/weft/internal/xjson"
)

// Engine owns the process registry, the per-process instance stores and the
// job scheduler. One Engine serves one application.
type Engine struct {
	config *domain.Config
	logger *slog.Logger

	uow      ports.UnitOfWorkManager
	jobStore ports.JobStore
	sched    *scheduler.Scheduler

	mu       sync.RWMutex
	runtimes map[string]*engine.Runtime
	ids      []string
	started  bool
}

// New builds an Engine from the given configuration. The scheduler is wired
// but not running until Start.
func New(config *Config) (*Engine, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var jobStore ports.JobStore
	if config.Storage.InMemory {
		jobStore = storage.NewMemoryJobStore()
	} else {
		dir := config.Storage.Dir
		if dir == "" {
			dir = filepath.Join(config.DataDir, "jobs")
		}
		opened, err := storage.OpenBadgerJobStore(dir, logger)
		if err != nil {
			return nil, err
		}
		jobStore = opened
	}

	e := &Engine{
		config:   config,
		logger:   logger,
		uow:      storage.NewUnitOfWorkManager(),
		jobStore: jobStore,
		runtimes: make(map[string]*engine.Runtime),
	}
	e.sched = scheduler.NewScheduler(config.Scheduler, e, jobStore, e.uow, logger)
	return e, nil
}

// ProcessOption customizes the runtime built for one registered process.
type ProcessOption func(*processOptions)

type processOptions struct {
	listener ports.ProcessEventListener
	policy   ports.AccessPolicy
	identity ports.IdentityProvider
}

// WithEventListener installs a listener receiving node-left and
// instance-completed notifications.
func WithEventListener(listener ports.ProcessEventListener) ProcessOption {
	return func(o *processOptions) { o.listener = listener }
}

// WithAccessPolicy gates reads of the process's instance store.
func WithAccessPolicy(policy ports.AccessPolicy) ProcessOption {
	return func(o *processOptions) { o.policy = policy }
}

// WithIdentityProvider resolves the caller identity checked by the access
// policy.
func WithIdentityProvider(identity ports.IdentityProvider) ProcessOption {
	return func(o *processOptions) { o.identity = identity }
}

// Register binds a process definition to a fresh instance store and runtime.
// The process becomes addressable under its plain ID and its versioned ID, so
// persisted jobs created by an earlier run resolve after a restart.
func (e *Engine) Register(definition *domain.Process, opts ...ProcessOption) (Process, error) {
	if definition == nil || definition.ID == "" {
		return nil, domain.ErrInvalidInput
	}

	options := processOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	store := instances.NewStore(options.policy, options.identity, e.logger)
	runtime := engine.NewRuntime(definition, store, e.sched, e.config.Engine, options.listener, e.logger)

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.runtimes[definition.ID]; exists {
		return nil, fmt.Errorf("process %q already registered: %w", definition.ID, domain.ErrInvalidInput)
	}
	e.runtimes[definition.ID] = runtime
	e.runtimes[definition.VersionedID()] = runtime
	e.ids = append(e.ids, definition.ID)

	e.logger.Debug("process registered", "process_id", definition.ID, "version", definition.Version)
	return runtime, nil
}

// Process returns the registered process for id, which may be a plain or
// versioned process ID. Nil when unknown.
func (e *Engine) Process(id string) Process {
	return e.ProcessByID(id)
}

// ProcessByID implements the registry consumed by the scheduler.
func (e *Engine) ProcessByID(id string) ports.Process {
	e.mu.RLock()
	defer e.mu.RUnlock()

	runtime, exists := e.runtimes[id]
	if !exists {
		return nil
	}
	return runtime
}

// ProcessIDs lists the plain IDs of all registered processes in registration
// order.
func (e *Engine) ProcessIDs() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]string(nil), e.ids...)
}

// Start recovers persisted timer jobs and begins scheduling. Register all
// processes before calling Start so recovery can resolve job owners.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return domain.ErrAlreadyStarted
	}
	e.started = true
	e.mu.Unlock()

	return e.sched.Start(ctx)
}

// Stop halts the scheduler and closes the job store. Persisted jobs survive
// for the next Start.
func (e *Engine) Stop() error {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return domain.ErrNotStarted
	}
	e.started = false
	e.mu.Unlock()

	if err := e.sched.Stop(); err != nil {
		return err
	}
	return e.jobStore.Close()
}

// Jobs exposes the scheduler for direct job management.
func (e *Engine) Jobs() JobsService {
	return e.sched
}

// ExportInstance renders the instance's state as indented JSON, for debugging
// and support tooling. The instance id may be a key, business key or
// generated id.
func (e *Engine) ExportInstance(processID, instanceID string) ([]byte, error) {
	process := e.ProcessByID(processID)
	if process == nil {
		return nil, domain.ErrNotFound
	}
	instance, found := process.Instances().FindByID(instanceID)
	if !found {
		return nil, domain.ErrNotFound
	}

	snapshotter, ok := instance.(interface {
		Snapshot() domain.InstanceSnapshot
	})
	if !ok {
		return nil, domain.ErrInvalidInput
	}
	return xjson.MarshalIndent(snapshotter.Snapshot())
}

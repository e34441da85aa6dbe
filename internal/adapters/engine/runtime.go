package engine

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/eleven-am/weft/internal/domain"
	"github.com/eleven-am/weft/internal/ports"
)

// Runtime binds one process definition to its instance store and the services
// its instances need while running.
type Runtime struct {
	process  *domain.Process
	store    ports.InstanceStore
	jobs     ports.JobsService
	config   domain.EngineConfig
	listener ports.ProcessEventListener
	logger   *slog.Logger
}

func NewRuntime(process *domain.Process, store ports.InstanceStore, jobs ports.JobsService, config domain.EngineConfig, listener ports.ProcessEventListener, logger *slog.Logger) *Runtime {
	if listener == nil {
		listener = ports.NoopEventListener{}
	}
	return &Runtime{
		process:  process,
		store:    store,
		jobs:     jobs,
		config:   config,
		listener: listener,
		logger:   logger.With("component", "engine", "process_id", process.ID),
	}
}

func (r *Runtime) ID() string {
	return r.process.ID
}

func (r *Runtime) Definition() *domain.Process {
	return r.process
}

func (r *Runtime) Instances() ports.InstanceStore {
	return r.store
}

func (r *Runtime) CreateInstance() (ports.ProcessInstance, error) {
	return r.CreateInstanceWithBusinessKey("", nil)
}

func (r *Runtime) CreateInstanceWithBusinessKey(businessKey string, vars domain.Variables) (ports.ProcessInstance, error) {
	if vars == nil {
		vars = domain.Variables{}
	}

	instance := &Instance{
		runtime:      r,
		id:           uuid.NewString(),
		businessKey:  businessKey,
		status:       domain.InstanceStatusPending,
		vars:         vars,
		nodes:        make(map[string]*nodeInstance),
		listeners:    make(map[string][]string),
		groups:       make(map[string][]string),
		createdAt:    time.Now(),
		currentLevel: 1,
	}
	if businessKey != "" {
		instance.tags = append(instance.tags, businessKey)
	}

	if err := r.store.Create(instance.key(), instance); err != nil {
		return nil, err
	}

	r.logger.Debug("process instance created", "instance_id", instance.id, "business_key", businessKey)
	return instance, nil
}

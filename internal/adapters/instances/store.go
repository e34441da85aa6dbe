package instances

import (
	"log/slog"
	"sync"

	"github.com/eleven-am/weft/internal/domain"
	"github.com/eleven-am/weft/internal/ports"
)

// Store is an in-memory keyed collection of process instances. It enforces
// the single-active-instance invariant on create and filters every read
// through the configured access policy.
type Store struct {
	mu       sync.RWMutex
	items    map[string]ports.ProcessInstance
	policy   ports.AccessPolicy
	identity ports.IdentityProvider
	logger   *slog.Logger
}

func NewStore(policy ports.AccessPolicy, identity ports.IdentityProvider, logger *slog.Logger) *Store {
	if policy == nil {
		policy = ports.AllowAllPolicy{}
	}
	if identity == nil {
		identity = ports.IdentityFunc(func() string { return "" })
	}
	return &Store{
		items:    make(map[string]ports.ProcessInstance),
		policy:   policy,
		identity: identity,
		logger:   logger.With("component", "instance-store"),
	}
}

func (s *Store) Create(key string, instance ports.ProcessInstance) error {
	if instance.Status().Terminal() {
		return nil
	}

	resolved := s.resolveKey(key, instance)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[resolved]; exists {
		return domain.NewDuplicateInstanceError(resolved)
	}

	s.items[resolved] = instance
	s.logger.Debug("process instance created", "key", resolved, "instance_id", instance.ID())
	return nil
}

// Update replaces an existing entry. It never inserts: updating an unknown
// key or a terminal instance is a no-op.
func (s *Store) Update(key string, instance ports.ProcessInstance) {
	if instance.Status().Terminal() {
		return
	}

	resolved := s.resolveKey(key, instance)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[resolved]; exists {
		s.items[resolved] = instance
	}
}

func (s *Store) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
}

// FindByID resolves the key first, then falls back to scanning for the
// instance id. Instances stored under a business key stay reachable by their
// generated id, which is what timer jobs carry.
func (s *Store) FindByID(id string) (ports.ProcessInstance, bool) {
	s.mu.RLock()
	instance, exists := s.items[id]
	if !exists {
		for _, candidate := range s.items {
			if candidate.ID() == id {
				instance, exists = candidate, true
				break
			}
		}
	}
	s.mu.RUnlock()

	if !exists {
		return nil, false
	}
	if !s.policy.CanReadInstance(s.identity.Identity(), instance) {
		return nil, false
	}
	return instance, true
}

func (s *Store) Values() []ports.ProcessInstance {
	s.mu.RLock()
	defer s.mu.RUnlock()

	identity := s.identity.Identity()
	values := make([]ports.ProcessInstance, 0, len(s.items))
	for _, instance := range s.items {
		if s.policy.CanReadInstance(identity, instance) {
			values = append(values, instance)
		}
	}
	return values
}

func (s *Store) FindByIDOrTag(idsOrTags ...string) []ports.ProcessInstance {
	s.mu.RLock()
	defer s.mu.RUnlock()

	identity := s.identity.Identity()
	var collected []ports.ProcessInstance
	for _, idOrTag := range idsOrTags {
		for key, instance := range s.items {
			if key != idOrTag && instance.ID() != idOrTag && !hasTag(instance, idOrTag) {
				continue
			}
			if s.policy.CanReadInstance(identity, instance) {
				collected = append(collected, instance)
			}
		}
	}
	return collected
}

func (s *Store) Exists(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, exists := s.items[id]
	return exists
}

func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *Store) resolveKey(key string, instance ports.ProcessInstance) string {
	if businessKey := instance.BusinessKey(); businessKey != "" {
		return businessKey
	}
	return key
}

func hasTag(instance ports.ProcessInstance, tag string) bool {
	for _, t := range instance.Tags() {
		if t == tag {
			return true
		}
	}
	return false
}

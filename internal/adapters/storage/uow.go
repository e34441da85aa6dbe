package storage

import (
	"sync"

	"github.com/eleven-am/weft/internal/ports"
)

// unitOfWork collects hooks registered by work running inside the boundary.
type unitOfWork struct {
	completions []func()
	rollbacks   []func()
}

func (u *unitOfWork) OnComplete(fn func()) {
	u.completions = append(u.completions, fn)
}

func (u *unitOfWork) OnRollback(fn func()) {
	u.rollbacks = append(u.rollbacks, fn)
}

// UnitOfWorkManager demarcates atomic units over the in-memory stores by
// serializing them on one mutex: a job-status transition and the signal
// delivery it triggers run to completion before the next unit starts. This
// is the same exclusivity a backing database would provide through row
// locking. Persistence writes already executed when fn fails are compensated
// only through registered rollback hooks.
type UnitOfWorkManager struct {
	mu sync.Mutex
}

func NewUnitOfWorkManager() *UnitOfWorkManager {
	return &UnitOfWorkManager{}
}

func (m *UnitOfWorkManager) Execute(fn func(uow ports.UnitOfWork) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	unit := &unitOfWork{}
	if err := fn(unit); err != nil {
		for i := len(unit.rollbacks) - 1; i >= 0; i-- {
			unit.rollbacks[i]()
		}
		return err
	}

	for _, complete := range unit.completions {
		complete()
	}
	return nil
}

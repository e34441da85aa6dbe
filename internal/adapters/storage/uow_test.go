package storage

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eleven-am/weft/internal/ports"
)

func TestUnitOfWorkRunsCompletionsInOrder(t *testing.T) {
	manager := NewUnitOfWorkManager()

	var ran []string
	err := manager.Execute(func(uow ports.UnitOfWork) error {
		uow.OnComplete(func() { ran = append(ran, "first") })
		uow.OnComplete(func() { ran = append(ran, "second") })
		uow.OnRollback(func() { ran = append(ran, "rollback") })
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, ran)
}

func TestUnitOfWorkRunsRollbacksInReverseOnError(t *testing.T) {
	manager := NewUnitOfWorkManager()
	boom := errors.New("boom")

	var ran []string
	err := manager.Execute(func(uow ports.UnitOfWork) error {
		uow.OnRollback(func() { ran = append(ran, "first") })
		uow.OnRollback(func() { ran = append(ran, "second") })
		uow.OnComplete(func() { ran = append(ran, "complete") })
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"second", "first"}, ran)
}

func TestUnitOfWorkSerializesExecution(t *testing.T) {
	manager := NewUnitOfWorkManager()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = manager.Execute(func(uow ports.UnitOfWork) error {
				// Unsynchronized increment; only safe because Execute
				// serializes units.
				counter++
				return nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
}

package ports

// UnitOfWork lets work executed inside the boundary register hooks that run
// when the unit ends.
type UnitOfWork interface {
	OnComplete(fn func())
	OnRollback(fn func())
}

// UnitOfWorkManager demarcates an atomic boundary around persistence writes
// and in-memory mutations triggered together. A failing fn must roll back the
// side effects registered with the unit.
type UnitOfWorkManager interface {
	Execute(fn func(uow UnitOfWork) error) error
}

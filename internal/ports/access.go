package ports

// IdentityProvider resolves the identity of the current caller.
type IdentityProvider interface {
	Identity() string
}

// IdentityFunc adapts a plain function to an IdentityProvider.
type IdentityFunc func() string

func (f IdentityFunc) Identity() string {
	return f()
}

// AccessPolicy gates read access to process instances. A failing check
// excludes the instance from results, it never raises an error.
type AccessPolicy interface {
	CanReadInstance(identity string, instance ProcessInstance) bool
}

// AllowAllPolicy admits every caller.
type AllowAllPolicy struct{}

func (AllowAllPolicy) CanReadInstance(identity string, instance ProcessInstance) bool {
	return true
}

package ports

// InstanceStore is the keyed collection of live process instances. At most
// one non-terminal instance may exist under a key at any time.
type InstanceStore interface {
	Create(key string, instance ProcessInstance) error
	Update(key string, instance ProcessInstance)
	Remove(key string)
	FindByID(id string) (ProcessInstance, bool)
	Values() []ProcessInstance
	FindByIDOrTag(idsOrTags ...string) []ProcessInstance
	Exists(id string) bool
	Size() int
}

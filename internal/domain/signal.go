package domain

// Signal is a named, typed event delivered into a running process instance.
// Delivery is fire and forget: a signal nobody listens for is dropped.
type Signal struct {
	Type    string
	Payload interface{}
}

func Sig(signalType string, payload interface{}) Signal {
	return Signal{Type: signalType, Payload: payload}
}

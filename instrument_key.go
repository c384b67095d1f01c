package metrics

// InstrumentKey identifies an instrument within a Registry.
type InstrumentKey struct {
	Type InstrumentType
	Name string
}

func NewInstrumentKey(t InstrumentType, name string) InstrumentKey {
	return InstrumentKey{Type: t, Name: name}
}

// String returns the compound "type:name" form of the key.
func (k InstrumentKey) String() string {
	return k.Type.String() + ":" + k.Name
}

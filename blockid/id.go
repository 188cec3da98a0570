package blockid

// ID is a block identifier: a Value whose length is fixed per store,
// configured at open time from the root sentinel.
type ID struct {
	Value
}

// NewID wraps b as an ID. The caller must not mutate b afterwards.
func NewID(b []byte) ID {
	return ID{Value: New(b)}
}

// FromValue lifts a Value into an ID.
func FromValue(v Value) ID {
	return ID{Value: v}
}

// IsRoot reports whether id equals the configured root sentinel.
func (id ID) IsRoot(root ID) bool {
	return id.Equal(root.Value)
}

// CloneID returns an ID sharing the same backing bytes.
func (id ID) CloneID() ID {
	return ID{Value: id.Clone()}
}

package domain

// Payload is the opaque per-item metadata returned by the vector store.
// A handful of well-known fields are read opportunistically by the
// deduplicator and the diversity filter; none is ever required.
type Payload map[string]any

// String returns a string field if present and non-empty.
func (p Payload) String(key string) (string, bool) {
	if p == nil {
		return "", false
	}
	s, ok := p[key].(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// Name returns the item name, if present.
func (p Payload) Name() (string, bool) { return p.String("name") }

// Description returns the item description, if present.
func (p Payload) Description() (string, bool) { return p.String("description") }

// Category returns the item category, if present.
func (p Payload) Category() (string, bool) { return p.String("category") }

// URL returns the item url, if present.
func (p Payload) URL() (string, bool) { return p.String("url") }

// Version returns the item version, if present.
func (p Payload) Version() (string, bool) { return p.String("version") }

// Clone returns a shallow copy so merged items never alias a source payload.
func (p Payload) Clone() Payload {
	if p == nil {
		return nil
	}
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

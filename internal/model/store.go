package model

// Store represents a shop. Fields other than id and name supplied by the
// client are kept verbatim in Attributes.
type Store struct {
	ID         string
	Name       string
	Attributes map[string]any
}

// StoreFromPayload builds a store from a create or update payload.
// Only the name is required; a client supplied id is ignored.
func StoreFromPayload(p Payload) (*Store, error) {
	if !p.Has(FieldName) {
		return nil, ErrStoreFieldsRequired
	}

	name, err := p.stringField(FieldName, ErrNameNotString)
	if err != nil {
		return nil, err
	}

	return &Store{
		Name:       name,
		Attributes: p.attributes(storeFields),
	}, nil
}

// Merge applies a shallow update: the name is replaced and every supplied
// attribute overwrites the stored one.
func (s *Store) Merge(patch *Store) {
	s.Name = patch.Name
	s.Attributes = mergeAttributes(s.Attributes, patch.Attributes)
}

// Clone returns a copy that shares no maps with s.
func (s Store) Clone() Store {
	s.Attributes = cloneAttributes(s.Attributes)
	return s
}

// MarshalJSON emits the store as a flat JSON object.
func (s Store) MarshalJSON() ([]byte, error) {
	return flatten(s.Attributes, map[string]any{
		FieldID:   s.ID,
		FieldName: s.Name,
	})
}

// UnmarshalJSON reads a flat JSON object into the store.
func (s *Store) UnmarshalJSON(data []byte) error {
	p, err := unmarshalPayload(data)
	if err != nil {
		return err
	}

	id, _ := p[FieldID].(string)
	name, _ := p[FieldName].(string)

	*s = Store{
		ID:         id,
		Name:       name,
		Attributes: p.attributes(storeFields),
	}
	return nil
}

package model

// Item represents a product that belongs to a store through StoreID.
// Price is kept as supplied; its type is not checked.
type Item struct {
	ID         string
	Name       string
	Price      any
	StoreID    string
	Attributes map[string]any
}

// ItemPatch is a shallow update for an item. StoreID is nil when the
// payload did not carry one.
type ItemPatch struct {
	Name       string
	Price      any
	StoreID    *string
	Attributes map[string]any
}

// ItemFromPayload builds an item from a create payload.
// name, price and store_id are required.
func ItemFromPayload(p Payload) (*Item, error) {
	if !p.Has(FieldName, FieldPrice, FieldStoreID) {
		return nil, ErrItemFieldsRequired
	}

	name, err := p.stringField(FieldName, ErrNameNotString)
	if err != nil {
		return nil, err
	}

	storeID, err := p.stringField(FieldStoreID, ErrStoreIDNotString)
	if err != nil {
		return nil, err
	}

	return &Item{
		Name:       name,
		Price:      p[FieldPrice],
		StoreID:    storeID,
		Attributes: p.attributes(itemFields),
	}, nil
}

// ItemPatchFromPayload builds an item update. name and price are required.
func ItemPatchFromPayload(p Payload) (*ItemPatch, error) {
	if !p.Has(FieldName, FieldPrice) {
		return nil, ErrItemUpdateFieldsRequired
	}

	name, err := p.stringField(FieldName, ErrNameNotString)
	if err != nil {
		return nil, err
	}

	patch := &ItemPatch{
		Name:       name,
		Price:      p[FieldPrice],
		Attributes: p.attributes(itemFields),
	}

	if p.Has(FieldStoreID) {
		storeID, err := p.stringField(FieldStoreID, ErrStoreIDNotString)
		if err != nil {
			return nil, err
		}
		patch.StoreID = &storeID
	}

	return patch, nil
}

// Apply merges the patch into the item.
func (i *Item) Apply(patch *ItemPatch) {
	i.Name = patch.Name
	i.Price = patch.Price
	if patch.StoreID != nil {
		i.StoreID = *patch.StoreID
	}
	i.Attributes = mergeAttributes(i.Attributes, patch.Attributes)
}

// Clone returns a copy that shares no maps with i.
func (i Item) Clone() Item {
	i.Attributes = cloneAttributes(i.Attributes)
	return i
}

// MarshalJSON emits the item as a flat JSON object.
func (i Item) MarshalJSON() ([]byte, error) {
	return flatten(i.Attributes, map[string]any{
		FieldID:      i.ID,
		FieldName:    i.Name,
		FieldPrice:   i.Price,
		FieldStoreID: i.StoreID,
	})
}

// UnmarshalJSON reads a flat JSON object into the item.
func (i *Item) UnmarshalJSON(data []byte) error {
	p, err := unmarshalPayload(data)
	if err != nil {
		return err
	}

	id, _ := p[FieldID].(string)
	name, _ := p[FieldName].(string)
	storeID, _ := p[FieldStoreID].(string)

	*i = Item{
		ID:         id,
		Name:       name,
		Price:      p[FieldPrice],
		StoreID:    storeID,
		Attributes: p.attributes(itemFields),
	}
	return nil
}

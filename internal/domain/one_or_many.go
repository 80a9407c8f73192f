package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// OneOrMany decodes a JSON value that relational joins may emit either as a
// single object or as an array of objects. The first element wins when the
// value is an array; an empty array or JSON null decodes to no value.
//
// Normalizing here keeps shape-detection out of every downstream component.
type OneOrMany[T any] struct {
	Value *T
}

func (o *OneOrMany[T]) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		o.Value = nil
		return nil
	}

	if trimmed[0] == '[' {
		var many []T
		if err := json.Unmarshal(trimmed, &many); err != nil {
			return fmt.Errorf("decode one-or-many array: %w", err)
		}
		if len(many) == 0 {
			o.Value = nil
			return nil
		}
		o.Value = &many[0]
		return nil
	}

	var one T
	if err := json.Unmarshal(trimmed, &one); err != nil {
		return fmt.Errorf("decode one-or-many object: %w", err)
	}
	o.Value = &one
	return nil
}

func (o OneOrMany[T]) MarshalJSON() ([]byte, error) {
	if o.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

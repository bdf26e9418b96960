package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Payload is an opaque JSON object stored as text. The approval engine never
// interprets its contents.
type Payload map[string]any

// Value implements driver.Valuer.
func (p Payload) Value() (driver.Value, error) {
	if p == nil {
		return "{}", nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (p *Payload) Scan(value any) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*p = Payload{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("payload: unsupported scan type %T", value)
	}
	if len(raw) == 0 {
		*p = Payload{}
		return nil
	}
	out := Payload{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("payload: %w", err)
	}
	*p = out
	return nil
}

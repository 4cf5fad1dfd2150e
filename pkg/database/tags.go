package database

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Tags stores the ordered tag list as a JSON array in a TEXT column,
// which keeps the value readable by the search index triggers.
type Tags []string

// Value serializes the list for storage. A nil list stores as "[]" so
// the column is never NULL.
func (t Tags) Value() (driver.Value, error) {
	if t == nil {
		t = Tags{}
	}
	b, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize tags: %w", err)
	}
	return string(b), nil
}

// Scan restores the list from its stored form.
func (t *Tags) Scan(value any) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*t = Tags{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into Tags", value)
	}
	if len(raw) == 0 {
		*t = Tags{}
		return nil
	}
	return json.Unmarshal(raw, t)
}

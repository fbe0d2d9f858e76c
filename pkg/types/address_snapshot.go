package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// AddressSnapshot is a frozen copy of an address at order time, stored
// as a JSON column. Later edits to the source address never rewrite it.
type AddressSnapshot struct {
	Label      string  `json:"label,omitempty"`
	Line1      string  `json:"line1"`
	Line2      string  `json:"line2,omitempty"`
	City       string  `json:"city"`
	State      string  `json:"state"`
	PostalCode string  `json:"postal_code"`
	Country    string  `json:"country"`
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
}

// Value marshals the snapshot to JSON for storage.
func (a AddressSnapshot) Value() (driver.Value, error) {
	if strings.TrimSpace(a.Line1) == "" {
		return nil, fmt.Errorf("address snapshot: missing line1")
	}
	raw, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("address snapshot: marshal: %w", err)
	}
	return string(raw), nil
}

// Scan decodes a JSON column value.
func (a *AddressSnapshot) Scan(value interface{}) error {
	if value == nil {
		*a = AddressSnapshot{}
		return nil
	}

	var raw []byte
	switch v := value.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("address snapshot: unsupported scan type %T", value)
	}

	return json.Unmarshal(raw, a)
}

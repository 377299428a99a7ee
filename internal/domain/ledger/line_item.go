package ledger

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"sort"

	"github.com/propledger/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// LineItem is one entity's financial record inside a ledger. Due, Paid and
// Remainder are the numeric core; Extensions is an open bag of metadata kept
// as raw JSON values.
type LineItem struct {
	Due        decimal.Decimal
	Paid       decimal.Decimal
	Remainder  decimal.Decimal
	Extensions map[string]json.RawMessage
}

// NewLineItem creates an unpaid line item for the given due amount
func NewLineItem(due decimal.Decimal, extensions map[string]json.RawMessage) LineItem {
	item := LineItem{
		Due:        due,
		Paid:       decimal.Zero,
		Extensions: make(map[string]json.RawMessage, len(extensions)),
	}
	for k, v := range extensions {
		item.Extensions[k] = cloneRaw(v)
	}
	item.Recompute()
	return item
}

// Recompute rounds Due and Paid to the money scale and derives Remainder
func (li *LineItem) Recompute() {
	li.Due = valueobject.RoundMoney(li.Due)
	li.Paid = valueobject.RoundMoney(li.Paid)
	li.Remainder = li.Due.Sub(li.Paid)
}

// Clone returns a deep copy
func (li LineItem) Clone() LineItem {
	out := li
	out.Extensions = make(map[string]json.RawMessage, len(li.Extensions))
	for k, v := range li.Extensions {
		out.Extensions[k] = cloneRaw(v)
	}
	return out
}

// Ext returns the raw extension value for key, or nil
func (li LineItem) Ext(key string) json.RawMessage {
	return li.Extensions[key]
}

// ExtDecimal reads an extension field as a decimal, zero when missing or malformed
func (li LineItem) ExtDecimal(key string) decimal.Decimal {
	return valueobject.CoerceDecimal(li.Extensions[key], decimal.Zero)
}

// ExtString reads an extension field as a string; non-string values are
// returned as their JSON text.
func (li LineItem) ExtString(key string) string {
	raw := li.Extensions[key]
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// SetExt stores v as the JSON value of an extension field
func (li *LineItem) SetExt(key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if li.Extensions == nil {
		li.Extensions = make(map[string]json.RawMessage)
	}
	li.Extensions[key] = raw
}

// Equal compares the core amounts and every extension value
func (li LineItem) Equal(other LineItem) bool {
	if !li.Due.Equal(other.Due) || !li.Paid.Equal(other.Paid) || !li.Remainder.Equal(other.Remainder) {
		return false
	}
	if len(li.Extensions) != len(other.Extensions) {
		return false
	}
	for k, v := range li.Extensions {
		ov, ok := other.Extensions[k]
		if !ok || !bytes.Equal(v, ov) {
			return false
		}
	}
	return true
}

// MarshalJSON writes a flat document with the core amounts as fixed-point text
func (li LineItem) MarshalJSON() ([]byte, error) {
	doc := make(map[string]json.RawMessage, len(li.Extensions)+3)
	for k, v := range li.Extensions {
		if isReserved(k) {
			continue
		}
		doc[k] = v
	}
	doc[FieldDue] = valueobject.DecimalText(li.Due)
	doc[FieldPaid] = valueobject.DecimalText(li.Paid)
	doc[FieldRemainder] = valueobject.DecimalText(li.Remainder)
	return json.Marshal(doc)
}

// UnmarshalJSON reads the flat document. Remainder is recomputed rather than
// trusted.
func (li *LineItem) UnmarshalJSON(data []byte) error {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	li.Due = valueobject.CoerceDecimal(doc[FieldDue], decimal.Zero)
	li.Paid = valueobject.CoerceDecimal(doc[FieldPaid], decimal.Zero)
	li.Extensions = make(map[string]json.RawMessage, len(doc))
	for k, v := range doc {
		if isReserved(k) {
			continue
		}
		li.Extensions[k] = v
	}
	li.Recompute()
	return nil
}

func isReserved(field string) bool {
	switch field {
	case FieldDue, FieldPaid, FieldRemainder:
		return true
	}
	return false
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	out := make(json.RawMessage, len(raw))
	copy(out, raw)
	return out
}

// LineItems maps a source entity id to its line item.
// It is stored as a JSONB document.
type LineItems map[string]LineItem

// Clone returns a deep copy
func (items LineItems) Clone() LineItems {
	out := make(LineItems, len(items))
	for id, item := range items {
		out[id] = item.Clone()
	}
	return out
}

// IDs returns the keys in sorted order
func (items LineItems) IDs() []string {
	ids := make([]string, 0, len(items))
	for id := range items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Scan implements sql.Scanner for JSONB
func (items *LineItems) Scan(value any) error {
	if value == nil {
		*items = LineItems{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.New("type assertion to []byte or string failed")
	}
	out := LineItems{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &out); err != nil {
			return err
		}
	}
	*items = out
	return nil
}

// Value implements driver.Valuer for JSONB
func (items LineItems) Value() (driver.Value, error) {
	if items == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(items)
}

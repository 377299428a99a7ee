package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/propledger/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// LineItemPatch maps an entity id to the partial fields sent by a client.
// A nil field map marks an entry that was not a JSON object.
type LineItemPatch map[string]map[string]json.RawMessage

// UnmarshalJSON decodes a patch body. Entries that are not objects are kept
// as nil so one bad entry does not reject the whole request.
func (p *LineItemPatch) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	out := make(LineItemPatch, len(entries))
	for id, raw := range entries {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil {
			fields = nil
		}
		out[id] = fields
	}
	*p = out
	return nil
}

// WarningCode classifies soft conditions that do not fail a request
type WarningCode string

const (
	WarningUnknownLineItem      WarningCode = "UNKNOWN_LINE_ITEM"
	WarningNumericParseFallback WarningCode = "NUMERIC_PARSE_FALLBACK"
	WarningMalformedLineItem    WarningCode = "MALFORMED_LINE_ITEM"
	// WarningSnapshotDegraded marks a ledger created empty because its source failed
	WarningSnapshotDegraded     WarningCode = "SNAPSHOT_DEGRADED"
)

// Warning is a soft condition raised while reconciling a patch
type Warning struct {
	Code       WarningCode `json:"code"`
	LineItemID string      `json:"line_item_id"`
	Field      string      `json:"field,omitempty"`
	Message    string      `json:"message"`
}

// ReconcileResult is the outcome of merging a patch
type ReconcileResult struct {
	Items    LineItems
	Warnings []Warning
	// Changed maps each modified or created line item to its changed fields
	Changed map[string][]string
	// Created lists line items that did not exist before the patch
	Created []string
}

// HasChanges reports whether any line item was modified or created
func (r ReconcileResult) HasChanges() bool {
	return len(r.Changed) > 0
}

// Reconciler merges partial client updates into existing line items
type Reconciler struct {
	config KindConfig
}

// NewReconciler creates a reconciler for a ledger kind
func NewReconciler(cfg KindConfig) *Reconciler {
	return &Reconciler{config: cfg}
}

// Reconcile overlays patch onto a copy of existing. Fields not named in the
// patch are preserved; remainder is recomputed; client-sent remainder and
// total are ignored. existing is never modified.
func (r *Reconciler) Reconcile(existing LineItems, patch LineItemPatch) ReconcileResult {
	result := ReconcileResult{
		Items:   existing.Clone(),
		Changed: make(map[string][]string),
	}

	ids := make([]string, 0, len(patch))
	for id := range patch {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if patch[id] == nil {
			result.Warnings = append(result.Warnings, Warning{
				Code:       WarningMalformedLineItem,
				LineItemID: id,
				Message:    fmt.Sprintf("line item %s is not an object; entry skipped", id),
			})
			continue
		}
		fields := r.normalize(patch[id])
		current, ok := result.Items[id]
		if !ok {
			if r.config.Policy == PolicyStrict {
				result.Warnings = append(result.Warnings, Warning{
					Code:       WarningUnknownLineItem,
					LineItemID: id,
					Message:    fmt.Sprintf("line item %s not found in ledger; entry skipped", id),
				})
				continue
			}
			current = NewLineItem(decimal.Zero, nil)
			result.Created = append(result.Created, id)
		}

		updated, warnings := r.merge(id, current, fields)
		result.Warnings = append(result.Warnings, warnings...)

		changed := changedFields(current, updated)
		if !ok {
			changed = allFields(updated)
		}
		if len(changed) > 0 {
			result.Changed[id] = changed
		}
		result.Items[id] = updated
	}

	return result
}

// normalize maps aliases to canonical names and drops derived fields. An
// exact canonical key wins over an alias for the same field.
func (r *Reconciler) normalize(in map[string]json.RawMessage) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(in))
	aliased := make(map[string]string)
	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		canonical := r.config.Canonical(k)
		if canonical == FieldRemainder || canonical == FieldTotal {
			continue
		}
		if canonical == k {
			out[k] = in[k]
			continue
		}
		if _, exact := in[canonical]; exact {
			continue
		}
		if _, seen := aliased[canonical]; seen {
			continue
		}
		aliased[canonical] = k
		out[canonical] = in[k]
	}
	return out
}

func (r *Reconciler) merge(id string, item LineItem, fields map[string]json.RawMessage) (LineItem, []Warning) {
	var warnings []Warning
	updated := item.Clone()

	parse := func(field string, raw json.RawMessage, def decimal.Decimal) decimal.Decimal {
		d, fellBack := valueobject.ParseDecimal(raw, def)
		if fellBack {
			warnings = append(warnings, Warning{
				Code:       WarningNumericParseFallback,
				LineItemID: id,
				Field:      field,
				Message:    fmt.Sprintf("value %s for %s is not a number; kept %s", string(raw), field, valueobject.FormatDecimal(def)),
			})
		}
		return d
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		raw := fields[name]
		switch {
		case name == FieldDue:
			updated.Due = parse(name, raw, updated.Due)
		case name == FieldPaid:
			updated.Paid = parse(name, raw, updated.Paid)
		case r.config.IsNumericExtension(name):
			current := updated.ExtDecimal(name)
			d := valueobject.RoundMoney(parse(name, raw, current))
			if updated.Ext(name) != nil && d.Equal(current) {
				continue
			}
			updated.Extensions[name] = valueobject.DecimalText(d)
		default:
			updated.Extensions[name] = cloneRaw(raw)
		}
	}

	updated.Recompute()
	return updated, warnings
}

func changedFields(before, after LineItem) []string {
	var changed []string
	if !before.Due.Equal(after.Due) {
		changed = append(changed, FieldDue)
	}
	if !before.Paid.Equal(after.Paid) {
		changed = append(changed, FieldPaid)
	}
	if !before.Remainder.Equal(after.Remainder) {
		changed = append(changed, FieldRemainder)
	}
	keys := make([]string, 0, len(after.Extensions))
	for k := range after.Extensions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if prev, ok := before.Extensions[k]; !ok || !bytes.Equal(prev, after.Extensions[k]) {
			changed = append(changed, k)
		}
	}
	return changed
}

func allFields(item LineItem) []string {
	fields := []string{FieldDue, FieldPaid, FieldRemainder}
	keys := make([]string, 0, len(item.Extensions))
	for k := range item.Extensions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return append(fields, keys...)
}

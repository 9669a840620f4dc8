package sync

import (
	"github.com/shopspring/decimal"
)

// ExternalRecord is an immutable snapshot of one ERP record within a sync
// pass. Fields hold the raw decoded RPC payload; the ERP encodes absent
// values as boolean false rather than null, so all accessors tolerate that.
// Records are never persisted beyond the pass that fetched them.
type ExternalRecord struct {
	// ID is the ERP's numeric record identifier
	ID int64
	// Fields maps ERP field names to their decoded values
	Fields map[string]any
}

// Str returns the named field as a string. The ERP's false-for-empty
// convention and missing fields both yield "".
func (r ExternalRecord) Str(field string) string {
	v, ok := r.Fields[field]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}

// Bool returns the named field as a bool; missing fields yield false
func (r ExternalRecord) Bool(field string) bool {
	b, ok := r.Fields[field].(bool)
	return ok && b
}

// Float returns the named field as a float64; false/missing yield 0
func (r ExternalRecord) Float(field string) float64 {
	switch v := r.Fields[field].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	default:
		return 0
	}
}

// Decimal returns a monetary field as a fixed-point decimal. The RPC decodes
// numbers as float64; normalizing through decimal here keeps comparisons
// against stored values from flapping on float drift.
func (r ExternalRecord) Decimal(field string) decimal.Decimal {
	switch v := r.Fields[field].(type) {
	case float64:
		return decimal.NewFromFloat(v)
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Zero
		}
		return d
	case int64:
		return decimal.NewFromInt(v)
	default:
		return decimal.Zero
	}
}

// Int returns the named field as an int64, accepting the RPC's float64 decoding
func (r ExternalRecord) Int(field string) int64 {
	switch v := r.Fields[field].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	default:
		return 0
	}
}

// Relation decodes an ERP many-to-one field, which arrives as a two-element
// [id, display name] array. Returns ok=false for absent relations (false on
// the wire).
func (r ExternalRecord) Relation(field string) (id int64, name string, ok bool) {
	pair, isSlice := r.Fields[field].([]any)
	if !isSlice || len(pair) < 2 {
		return 0, "", false
	}
	switch v := pair[0].(type) {
	case float64:
		id = int64(v)
	case int64:
		id = v
	default:
		return 0, "", false
	}
	name, _ = pair[1].(string)
	return id, name, true
}

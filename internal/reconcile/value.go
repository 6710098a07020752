package reconcile

import (
	"strconv"
	"strings"
)

// holdMarker is the literal continuation token some units report for a
// field held at its ceiling (humidification left always-on).
const holdMarker = "CONTINUE"

// HoldCeiling is the numeric value the continuation marker encodes.
const HoldCeiling = 100

// unknownDisplay is the sentinel shown for a field that should be numeric
// but is not.
const unknownDisplay = "--"

// ValueKind discriminates the states a resolved field can be in.
type ValueKind int

const (
	// KindText is a free-form field passed through as-is.
	KindText ValueKind = iota

	// KindNumeric is a field that parsed as a number.
	KindNumeric

	// KindHoldAtMax is a numeric field reported with the continuation
	// marker, standing for [HoldCeiling].
	KindHoldAtMax

	// KindUnknown is a field that should be numeric but did not parse.
	KindUnknown
)

// Value is a device field resolved once at the API boundary. Raw payload
// strings never travel further into the panel than this type; call sites
// use [Value.Num] or [Value.String] instead of re-parsing.
type Value struct {
	kind ValueKind
	num  float64
	raw  string
}

// Text wraps a free-form field.
func Text(raw string) Value {
	return Value{kind: KindText, raw: raw}
}

// ResolveNumber resolves a raw field where a number is expected: the
// continuation marker becomes [KindHoldAtMax], a parseable number becomes
// [KindNumeric], anything else [KindUnknown].
func ResolveNumber(raw string) Value {
	trimmed := strings.TrimSpace(raw)
	if strings.EqualFold(trimmed, holdMarker) {
		return Value{kind: KindHoldAtMax, num: HoldCeiling, raw: raw}
	}
	if n, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return Value{kind: KindNumeric, num: n, raw: trimmed}
	}
	return Value{kind: KindUnknown, raw: raw}
}

// Kind returns the value's discriminator.
func (v Value) Kind() ValueKind {
	return v.kind
}

// Num returns the numeric reading and whether one exists. A held field
// reads as its ceiling.
func (v Value) Num() (float64, bool) {
	switch v.kind {
	case KindNumeric, KindHoldAtMax:
		return v.num, true
	default:
		return 0, false
	}
}

// String returns the display form: numbers as reported, a held field as
// its ceiling, and the unknown sentinel for unparseable numerics.
func (v Value) String() string {
	switch v.kind {
	case KindNumeric, KindText:
		return v.raw
	case KindHoldAtMax:
		return strconv.Itoa(HoldCeiling)
	default:
		return unknownDisplay
	}
}

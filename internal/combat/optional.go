package combat

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
)

var jsonNull = []byte("null")

// Optional holds a value that an authority payload may or may not carry.
//
// Present reports whether the key appeared at all (null included). Get reports
// whether a non-null value was decoded. The distinction matters for sections
// like activeEffects, where an explicit null means "clear" but a missing key
// means "unchanged".
type Optional[T any] struct {
	value   T
	set     bool
	present bool
}

// Some wraps v as a set value.
func Some[T any](v T) Optional[T] {
	return Optional[T]{value: v, set: true, present: true}
}

// None returns an absent value.
func None[T any]() Optional[T] {
	return Optional[T]{}
}

// Null returns a present value that holds no data.
func Null[T any]() Optional[T] {
	return Optional[T]{present: true}
}

// Get returns the value and whether it is set.
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.set
}

// IsSet reports whether a non-null value is held.
func (o Optional[T]) IsSet() bool {
	return o.set
}

// Present reports whether the key was present in the decoded payload.
func (o Optional[T]) Present() bool {
	return o.present || o.set
}

// ValueOr returns the value, or def when unset.
func (o Optional[T]) ValueOr(def T) T {
	if o.set {
		return o.value
	}
	return def
}

// Or returns o when set, otherwise other when set, otherwise None.
func (o Optional[T]) Or(other Optional[T]) Optional[T] {
	if o.set {
		return o
	}
	if other.set {
		return other
	}
	return None[T]()
}

// IsZero lets `omitzero` drop absent values when encoding. An explicit null
// is kept and encodes as null.
func (o Optional[T]) IsZero() bool {
	return !o.set && !o.present
}

func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.set {
		return jsonNull, nil
	}
	return json.Marshal(o.value)
}

func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.present = true
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, jsonNull) {
		var zero T
		o.value, o.set = zero, false
		return nil
	}

	var v T
	err := json.Unmarshal(data, &v)
	if err != nil {
		// Authorities occasionally send counters as floats or numeric strings.
		ip, ok := any(&v).(*int)
		if !ok {
			return err
		}
		n, ok := coerceInt(data)
		if !ok {
			return err
		}
		*ip = n
	}
	o.value, o.set = v, true
	return nil
}

// coerceInt reads a JSON number or numeric string as an int.
func coerceInt(data []byte) (int, bool) {
	s := string(bytes.TrimSpace(data))
	if unq, err := strconv.Unquote(s); err == nil {
		s = unq
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int(math.Round(f)), true
}

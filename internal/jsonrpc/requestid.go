package jsonrpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// RequestID is a JSON-RPC id: either a string or an integer.
//
// RequestID is comparable and is used directly as a map key, so the string
// "1" and the number 1 are distinct ids.
type RequestID struct {
	str   string
	num   int64
	isStr bool
}

// NumberID returns an integer id.
func NumberID(n int64) RequestID {
	return RequestID{num: n}
}

// StringID returns a string id.
func StringID(s string) RequestID {
	return RequestID{str: s, isStr: true}
}

// IsString reports whether the id is a string id.
func (id RequestID) IsString() bool {
	return id.isStr
}

// Value returns the underlying string or int64.
func (id RequestID) Value() any {
	if id.isStr {
		return id.str
	}

	return id.num
}

// String returns the textual form of the id, as used in logs.
func (id RequestID) String() string {
	if id.isStr {
		return id.str
	}

	return strconv.FormatInt(id.num, 10)
}

// MarshalJSON implements json.Marshaler.
func (id RequestID) MarshalJSON() ([]byte, error) {
	if id.isStr {
		return json.Marshal(id.str)
	}

	return []byte(strconv.FormatInt(id.num, 10)), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (id *RequestID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode string id: %w", err)
		}

		*id = StringID(s)

		return nil
	}

	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("id must be a string or integer, got %s", string(data))
	}

	if n, err := num.Int64(); err == nil {
		*id = NumberID(n)

		return nil
	}

	// Accept integral floats such as 1e3 or 2.0.
	f, err := num.Float64()
	if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt64 {
		return fmt.Errorf("id must be a string or integer, got %s", string(data))
	}

	*id = NumberID(int64(f))

	return nil
}

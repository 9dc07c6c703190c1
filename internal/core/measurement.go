package core

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Measurement is a body measurement that remembers whether the caller
// actually supplied a number. The zero value is "not a number".
type Measurement struct {
	value float64
	valid bool
}

func Number(v float64) Measurement {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Measurement{}
	}
	return Measurement{value: v, valid: true}
}

// MeasurementOf accepts Go numeric kinds only. Strings, bools and nil are
// not numbers even when they look like one.
func MeasurementOf(v any) Measurement {
	switch n := v.(type) {
	case int:
		return Number(float64(n))
	case int8:
		return Number(float64(n))
	case int16:
		return Number(float64(n))
	case int32:
		return Number(float64(n))
	case int64:
		return Number(float64(n))
	case uint:
		return Number(float64(n))
	case uint8:
		return Number(float64(n))
	case uint16:
		return Number(float64(n))
	case uint32:
		return Number(float64(n))
	case uint64:
		return Number(float64(n))
	case float32:
		return Number(float64(n))
	case float64:
		return Number(n)
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return Measurement{}
		}
		return Number(f)
	case Measurement:
		return n
	}
	return Measurement{}
}

// ParseMeasurement is for command-line input where everything arrives as text.
func ParseMeasurement(s string) Measurement {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return Measurement{}
	}
	return Number(f)
}

func (m Measurement) Float() (float64, bool) {
	return m.value, m.valid
}

func (m Measurement) Valid() bool {
	return m.valid
}

func (m Measurement) String() string {
	if !m.valid {
		return "tidak diketahui"
	}
	return strconv.FormatFloat(m.value, 'f', -1, 64)
}

// UnmarshalJSON never fails: a JSON number is a valid measurement, anything
// else decodes to an invalid one so the health check can report it.
func (m *Measurement) UnmarshalJSON(data []byte) error {
	*m = Measurement{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || (data[0] != '-' && (data[0] < '0' || data[0] > '9')) {
		return nil
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return nil
	}
	*m = Number(f)
	return nil
}

func (m Measurement) MarshalJSON() ([]byte, error) {
	if !m.valid {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(m.value, 'f', -1, 64)), nil
}

package stamp

import (
	"encoding/json"
	"fmt"
	"math"
)

// Float is a float64 whose JSON form spells non-finite values as the strings
// "NaN", "Infinity" and "-Infinity". Altitude may legitimately be any of them.
type Float float64

func (f Float) MarshalJSON() ([]byte, error) {
	v := float64(f)
	switch {
	case math.IsNaN(v):
		return []byte(`"NaN"`), nil
	case math.IsInf(v, 1):
		return []byte(`"Infinity"`), nil
	case math.IsInf(v, -1):
		return []byte(`"-Infinity"`), nil
	}
	return json.Marshal(v)
}

func (f *Float) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		switch s {
		case "NaN":
			*f = Float(math.NaN())
		case "Infinity":
			*f = Float(math.Inf(1))
		case "-Infinity":
			*f = Float(math.Inf(-1))
		default:
			return fmt.Errorf("stamp: invalid float %q", s)
		}
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = Float(v)
	return nil
}

type recordJSON Record

// MarshalJSON renders the coordinates through Float so every record encodes.
func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		recordJSON
		Latitude  Float `json:"latitude"`
		Longitude Float `json:"longitude"`
		Altitude  Float `json:"altitude"`
	}{recordJSON(r), Float(r.Latitude), Float(r.Longitude), Float(r.Altitude)})
}

func (r *Record) UnmarshalJSON(b []byte) error {
	var aux struct {
		*recordJSON
		Latitude  Float `json:"latitude"`
		Longitude Float `json:"longitude"`
		Altitude  Float `json:"altitude"`
	}
	aux.recordJSON = (*recordJSON)(r)
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	r.Latitude, r.Longitude, r.Altitude = float64(aux.Latitude), float64(aux.Longitude), float64(aux.Altitude)
	return nil
}

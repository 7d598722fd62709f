package models

import (
	"bytes"
	"encoding/json"
)

// Sample is one normalized reading of a sensor attribute.
type Sample struct {
	Timestamp string  `json:"timestamp"` // broker recvTime, kept verbatim
	Value     float64 `json:"value"`
}

// Series is an insertion-ordered, timestamp-unique run of samples.
type Series []Sample

// Last returns the most recently inserted sample.
func (s Series) Last() (Sample, bool) {
	if len(s) == 0 {
		return Sample{}, false
	}
	return s[len(s)-1], true
}

// RawRecord is one history entry as returned by the broker. AttrValue keeps
// the reading as text whether the broker sent a string or a number; null
// becomes "".
type RawRecord struct {
	RecvTime  string `json:"recvTime"`
	AttrValue string `json:"attrValue"`
}

// UnmarshalJSON accepts attrValue as a JSON string, number, null or any
// other scalar, which is kept as its literal text.
func (r *RawRecord) UnmarshalJSON(data []byte) error {
	var aux struct {
		RecvTime  string          `json:"recvTime"`
		AttrValue json.RawMessage `json:"attrValue"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.RecvTime = aux.RecvTime
	r.AttrValue = ""

	raw := bytes.TrimSpace(aux.AttrValue)
	switch {
	case len(raw) == 0, bytes.Equal(raw, []byte("null")):
	case raw[0] == '"':
		if err := json.Unmarshal(raw, &r.AttrValue); err != nil {
			return err
		}
	default:
		r.AttrValue = string(raw)
	}
	return nil
}

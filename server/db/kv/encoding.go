package kv

import (
	"encoding/json"

	"github.com/golang/snappy"
	"github.com/pkg/errors"
)

// encode marshals a row to JSON and snappy-compresses it for storage.
func encode(v interface{}) ([]byte, error) {
	if v == nil {
		return nil, errors.New("cannot encode nil value")
	}
	enc, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "could not marshal value")
	}
	return snappy.Encode(nil, enc), nil
}

// decode reverses encode into dst.
func decode(data []byte, dst interface{}) error {
	dec, err := snappy.Decode(nil, data)
	if err != nil {
		return errors.Wrap(err, "could not snappy decode value")
	}
	if err := json.Unmarshal(dec, dst); err != nil {
		return errors.Wrap(err, "could not unmarshal value")
	}
	return nil
}

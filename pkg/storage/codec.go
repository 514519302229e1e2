package storage

import (
	"bytes"
	"encoding/gob"
	"encoding/json"

	"github.com/cockroachdb/errors"

	"github.com/uhyunpark/hyperbook/pkg/app/core/orderbook"
)

func encodeGob(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeGob(b []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(b)).Decode(v)
}

// Fills are stored as JSON, book checkpoints as gob.
func encodeFill(f orderbook.Fill) ([]byte, error) {
	b, err := json.Marshal(f)
	return b, errors.Wrapf(err, "encode fill %d", f.ID)
}

func decodeFill(b []byte) (orderbook.Fill, error) {
	var f orderbook.Fill
	err := json.Unmarshal(b, &f)
	return f, errors.Wrap(err, "decode fill")
}

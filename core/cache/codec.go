package cache

import (
	"fmt"

	"github.com/goccy/go-json"
)

const blobField = "data"

// CodecFuncs adapts a pair of functions to the Codec interface.
type CodecFuncs[T any] struct {
	EncodeFunc func(T) (map[string]string, error)
	DecodeFunc func(map[string]string) (T, error)
}

func (c CodecFuncs[T]) Encode(value T) (map[string]string, error) {
	return c.EncodeFunc(value)
}

func (c CodecFuncs[T]) Decode(fields map[string]string) (T, error) {
	return c.DecodeFunc(fields)
}

// JSONCodec stores the whole value as a single JSON blob field.
type JSONCodec[T any] struct{}

func (JSONCodec[T]) Encode(value T) (map[string]string, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return map[string]string{blobField: string(data)}, nil
}

func (JSONCodec[T]) Decode(fields map[string]string) (T, error) {
	var value T
	data, ok := fields[blobField]
	if !ok {
		return value, fmt.Errorf("missing %q field", blobField)
	}
	if err := json.Unmarshal([]byte(data), &value); err != nil {
		return value, err
	}
	return value, nil
}

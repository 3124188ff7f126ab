package tether

import (
	jsoniter "github.com/json-iterator/go"
)

// Codec serializes structured values for request bodies and non-primitive
// path, query and header values, and decodes structured response bodies.
// Implementations must be safe for concurrent use.
type Codec interface {
	// Marshal converts a Go value into bytes.
	Marshal(v any) ([]byte, error)
	// Unmarshal decodes data into the value pointed to by v.
	Unmarshal(data []byte, v any) error
	// ContentType is the media type of marshaled bodies.
	ContentType() string
}

// JSON is the default codec. It is backed by json-iterator configured to
// behave like encoding/json.
var JSON Codec = jsonCodec{api: jsoniter.ConfigCompatibleWithStandardLibrary}

type jsonCodec struct {
	api jsoniter.API
}

func (c jsonCodec) Marshal(v any) ([]byte, error) {
	return c.api.Marshal(v)
}

func (c jsonCodec) Unmarshal(data []byte, v any) error {
	return c.api.Unmarshal(data, v)
}

func (jsonCodec) ContentType() string {
	return "application/json; charset=utf-8"
}

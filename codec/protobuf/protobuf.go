// Package protobuf provides tether codecs for protocol buffer messages.
//
//	client := tether.NewClient(url).WithCodec(protobuf.Binary)
//
// Bodies and results declared with these codecs must be proto.Message
// pointers.
package protobuf

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"github.com/broady/tether"
)

var (
	// Binary encodes messages in the protobuf wire format.
	Binary tether.Codec = binaryCodec{}

	// JSON encodes messages with the canonical protobuf JSON mapping.
	JSON tether.Codec = jsonCodec{
		marshal:   protojson.MarshalOptions{},
		unmarshal: protojson.UnmarshalOptions{DiscardUnknown: true},
	}
)

type binaryCodec struct{}

func (binaryCodec) Marshal(v any) ([]byte, error) {
	msg, err := message(v)
	if err != nil {
		return nil, err
	}
	return proto.Marshal(msg)
}

func (binaryCodec) Unmarshal(data []byte, v any) error {
	msg, err := message(v)
	if err != nil {
		return err
	}
	return proto.Unmarshal(data, msg)
}

func (binaryCodec) ContentType() string {
	return "application/x-protobuf"
}

type jsonCodec struct {
	marshal   protojson.MarshalOptions
	unmarshal protojson.UnmarshalOptions
}

func (c jsonCodec) Marshal(v any) ([]byte, error) {
	msg, err := message(v)
	if err != nil {
		return nil, err
	}
	return c.marshal.Marshal(msg)
}

func (c jsonCodec) Unmarshal(data []byte, v any) error {
	msg, err := message(v)
	if err != nil {
		return err
	}
	return c.unmarshal.Unmarshal(data, msg)
}

func (jsonCodec) ContentType() string {
	return "application/json"
}

func message(v any) (proto.Message, error) {
	msg, ok := v.(proto.Message)
	if !ok {
		return nil, fmt.Errorf("protobuf: %T is not a proto.Message", v)
	}
	return msg, nil
}

package tether

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"sync"
)

// Only these types bypass the codec; named string and byte types are decoded.
var (
	stringType     = reflect.TypeFor[string]()
	bytesType      = reflect.TypeFor[[]byte]()
	rawMessageType = reflect.TypeFor[json.RawMessage]()
)

// decodeFunc decodes a complete body into a value of one declared type. The
// returned value always has exactly that type.
type decodeFunc func(codec Codec, body []byte) (reflect.Value, error)

// decoders caches one decodeFunc per declared type. Entries are pure, so a
// race on first use stores whichever arrives first.
var decoders sync.Map

func decoderFor(t reflect.Type) decodeFunc {
	if d, ok := decoders.Load(t); ok {
		return d.(decodeFunc)
	}
	d, _ := decoders.LoadOrStore(t, newDecoder(t))
	return d.(decodeFunc)
}

func newDecoder(t reflect.Type) decodeFunc {
	switch {
	case t == stringType:
		return func(_ Codec, body []byte) (reflect.Value, error) {
			return reflect.ValueOf(string(body)), nil
		}
	case t == bytesType || t == rawMessageType:
		return func(_ Codec, body []byte) (reflect.Value, error) {
			return reflect.ValueOf(body).Convert(t), nil
		}
	case t.Kind() == reflect.Pointer:
		elem := t.Elem()
		return func(codec Codec, body []byte) (reflect.Value, error) {
			if len(body) == 0 {
				return reflect.Zero(t), nil
			}
			v := reflect.New(elem)
			if err := codec.Unmarshal(body, v.Interface()); err != nil {
				return reflect.Zero(t), err
			}
			return v, nil
		}
	default:
		return func(codec Codec, body []byte) (reflect.Value, error) {
			v := reflect.New(t)
			if len(body) == 0 {
				return v.Elem(), nil
			}
			if err := codec.Unmarshal(body, v.Interface()); err != nil {
				return reflect.Zero(t), err
			}
			return v.Elem(), nil
		}
	}
}

// adapter turns an executed response into the value a method declares.
type adapter struct {
	codec    Codec
	handler  ResponseHandler
	envelope bool
}

// adapt runs the stages for call.Shape. Void results come back as an invalid
// reflect.Value.
func (a *adapter) adapt(ctx context.Context, call *CallDescriptor, resp *http.Response) (reflect.Value, error) {
	if call.Shape == ShapeRaw {
		return reflect.ValueOf(resp), nil
	}
	if err := a.handler(resp); err != nil {
		drain(resp.Body)
		return reflect.Value{}, err
	}
	switch call.Shape {
	case ShapeVoid:
		drain(resp.Body)
		return reflect.Value{}, nil
	case ShapeStream:
		var body io.ReadCloser = resp.Body
		return reflect.ValueOf(&body).Elem(), nil
	case ShapeEvents:
		return a.events(ctx, call.Result, resp.Body), nil
	}

	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return reflect.Value{}, readError(ctx, err)
	}
	return a.decode(call.Value, body)
}

func (a *adapter) decode(t reflect.Type, body []byte) (reflect.Value, error) {
	if a.envelope {
		var env envelope
		if err := JSON.Unmarshal(body, &env); err != nil {
			return reflect.Value{}, wrapError(CodeResponse, err, "decode envelope")
		}
		if env.Error != nil {
			return reflect.Value{}, env.Error
		}
		body = env.Result
		if string(body) == "null" {
			body = nil
		}
	}
	v, err := decoderFor(t)(a.codec, body)
	if err != nil {
		return reflect.Value{}, wrapError(CodeResponse, err, "decode %s", t)
	}
	return v, nil
}

// readError maps a body read failure caused by the call's context.
func readError(ctx context.Context, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return wrapError(CodeCanceled, err, "read response body")
	}
	return err
}

// drain discards what is left of a body so the connection can be reused.
func drain(body io.ReadCloser) {
	io.Copy(io.Discard, io.LimitReader(body, maxErrorBody))
	body.Close()
}

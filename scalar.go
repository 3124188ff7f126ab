package tether

import (
	"bytes"
	"encoding"
	"io"
	"net/textproto"
	"reflect"
	"strconv"
	"strings"
)

// Part is a body argument that carries its own part headers when the body
// is multipart. A Content-Disposition set in Header is kept as is.
type Part struct {
	Header   textproto.MIMEHeader
	FileName string
	// Content is converted like any other body argument: strings and
	// primitives as text, []byte and io.Reader as raw bytes, anything else
	// through the codec.
	Content any
}

var (
	partType          = reflect.TypeFor[*Part]()
	textMarshalerType = reflect.TypeFor[encoding.TextMarshaler]()
)

const (
	textContentType   = "text/plain; charset=utf-8"
	binaryContentType = "application/octet-stream"
)

// scalarString converts a value for a path segment, query pair, header or
// form field. Primitives use their natural string form; anything else is
// marshaled with the codec. ok is false for nil values.
func scalarString(codec Codec, arg reflect.Value) (s string, ok bool, err error) {
	v, ok := deref(arg)
	if !ok {
		return "", false, nil
	}
	if v.Type().Implements(textMarshalerType) {
		text, err := v.Interface().(encoding.TextMarshaler).MarshalText()
		if err != nil {
			return "", false, err
		}
		return string(text), true, nil
	}
	if s, ok := primitiveString(v); ok {
		return s, true, nil
	}
	data, err := codec.Marshal(arg.Interface())
	if err != nil {
		return "", false, err
	}
	return string(data), true, nil
}

func primitiveString(v reflect.Value) (string, bool) {
	switch v.Kind() {
	case reflect.String:
		return v.String(), true
	case reflect.Bool:
		return strconv.FormatBool(v.Bool()), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(v.Int(), 10), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(v.Uint(), 10), true
	case reflect.Float32:
		return strconv.FormatFloat(v.Float(), 'f', -1, 32), true
	case reflect.Float64:
		return strconv.FormatFloat(v.Float(), 'f', -1, 64), true
	case reflect.Slice:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return string(v.Bytes()), true
		}
	}
	return "", false
}

// content is a converted body or body part.
type content struct {
	reader      io.Reader
	contentType string
	header      textproto.MIMEHeader
	fileName    string
}

// contentOf applies the scalar-or-structured rule to a body argument.
// ok is false for nil values.
func contentOf(codec Codec, v reflect.Value) (c content, ok bool, err error) {
	if !v.IsValid() {
		return content{}, false, nil
	}
	if v.Type() == partType {
		if v.IsNil() {
			return content{}, false, nil
		}
		p := v.Interface().(*Part)
		c, ok, err = contentOf(codec, reflect.ValueOf(p.Content))
		if err != nil || !ok {
			return c, ok, err
		}
		c.header = p.Header
		c.fileName = p.FileName
		return c, true, nil
	}
	if v.Kind() == reflect.Interface || v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return content{}, false, nil
		}
	}
	if r, isReader := v.Interface().(io.Reader); isReader {
		return content{reader: r, contentType: binaryContentType}, true, nil
	}
	arg := v
	v, _ = deref(v)
	if v.Kind() == reflect.Slice && v.Type().Elem().Kind() == reflect.Uint8 {
		return content{reader: bytes.NewReader(v.Bytes()), contentType: binaryContentType}, true, nil
	}
	if v.Type().Implements(textMarshalerType) {
		text, err := v.Interface().(encoding.TextMarshaler).MarshalText()
		if err != nil {
			return content{}, false, err
		}
		return content{reader: bytes.NewReader(text), contentType: textContentType}, true, nil
	}
	if s, isPrimitive := primitiveString(v); isPrimitive {
		return content{reader: strings.NewReader(s), contentType: textContentType}, true, nil
	}
	data, err := codec.Marshal(arg.Interface())
	if err != nil {
		return content{}, false, err
	}
	return content{reader: bytes.NewReader(data), contentType: codec.ContentType()}, true, nil
}

// deref follows pointers and interfaces. ok is false when a nil is reached.
func deref(v reflect.Value) (reflect.Value, bool) {
	for v.IsValid() && (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return v, false
		}
		if v.Kind() == reflect.Pointer && v.Type().Implements(textMarshalerType) && !v.Elem().Type().Implements(textMarshalerType) {
			return v, true
		}
		v = v.Elem()
	}
	return v, v.IsValid()
}

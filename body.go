package tether

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/textproto"
	"reflect"
	"strings"
)

// namedValue is one body argument with its resolved name.
type namedValue struct {
	name  string
	value reflect.Value
}

// encodeBody frames the body arguments according to enc. It returns a nil
// reader when there is nothing to send.
func encodeBody(codec Codec, enc BodyEncoding, bodies []namedValue) (io.Reader, string, error) {
	if len(bodies) == 0 {
		return nil, "", nil
	}
	switch enc {
	case EncodingNone:
		if len(bodies) > 1 {
			return nil, "", Errorf(CodeConfiguration, "%d body parameters need an explicit body encoding", len(bodies))
		}
		c, ok, err := contentOf(codec, bodies[0].value)
		if err != nil {
			return nil, "", wrapError(CodeInvalidArgument, err, "encode body %s", bodies[0].name)
		}
		if !ok {
			return nil, "", nil
		}
		return c.reader, c.contentType, nil
	case EncodingForm:
		return encodeForm(codec, bodies)
	case EncodingMultipart:
		return encodeMultipart(codec, bodies, false)
	case EncodingMultipartForm:
		return encodeMultipart(codec, bodies, true)
	default:
		return nil, "", Errorf(CodeConfiguration, "unknown body encoding %q", enc)
	}
}

func encodeForm(codec Codec, bodies []namedValue) (io.Reader, string, error) {
	var pairs queryPairs
	for _, b := range bodies {
		s, ok, err := scalarString(codec, b.value)
		if err != nil {
			return nil, "", wrapError(CodeInvalidArgument, err, "encode form field %s", b.name)
		}
		if ok {
			pairs = append(pairs, queryPair{key: b.name, value: s})
		}
	}
	return strings.NewReader(pairs.encode()), "application/x-www-form-urlencoded", nil
}

func encodeMultipart(codec Codec, bodies []namedValue, form bool) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, b := range bodies {
		c, ok, err := contentOf(codec, b.value)
		if err != nil {
			return nil, "", wrapError(CodeInvalidArgument, err, "encode part %s", b.name)
		}
		if !ok {
			continue
		}
		header := make(textproto.MIMEHeader, len(c.header)+2)
		for k, vs := range c.header {
			header[textproto.CanonicalMIMEHeaderKey(k)] = append([]string(nil), vs...)
		}
		if header.Get("Content-Type") == "" {
			header.Set("Content-Type", c.contentType)
		}
		if form && header.Get("Content-Disposition") == "" {
			params := map[string]string{"name": b.name}
			if c.fileName != "" {
				params["filename"] = c.fileName
			}
			header.Set("Content-Disposition", mime.FormatMediaType("form-data", params))
		}
		pw, err := w.CreatePart(header)
		if err != nil {
			return nil, "", err
		}
		if _, err := io.Copy(pw, c.reader); err != nil {
			return nil, "", fmt.Errorf("write part %s: %w", b.name, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	contentType := "multipart/mixed; boundary=" + w.Boundary()
	if form {
		contentType = w.FormDataContentType()
	}
	return &buf, contentType, nil
}

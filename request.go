package tether

import (
	"context"
	"net/http"
	"net/url"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/schema"
)

var flatEncoder = schema.NewEncoder()

// queryPair is one key=value pair of a query string or form body.
type queryPair struct {
	key   string
	value string
}

// queryPairs keeps insertion order, unlike url.Values.
type queryPairs []queryPair

func (q queryPairs) encode() string {
	var sb strings.Builder
	for i, p := range q {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(url.QueryEscape(p.key))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(p.value))
	}
	return sb.String()
}

// requestBuilder turns a call descriptor and bound arguments into an
// *http.Request. It holds no per-call state.
type requestBuilder struct {
	codec     Codec
	validate  *validator.Validate
	baseURL   string
	namespace string
}

func (b *requestBuilder) build(ctx context.Context, call *CallDescriptor, params []ParamDescriptor, args []reflect.Value) (*http.Request, error) {
	path := call.Path
	var query queryPairs
	var bodies []namedValue
	header := make(http.Header)

	for _, p := range params {
		arg := args[p.Index]
		switch p.Role {
		case RoleCancellation:
			continue
		case RolePath:
			s, ok, err := scalarString(b.codec, arg)
			if err != nil {
				return nil, wrapError(CodeInvalidArgument, err, "encode path parameter %s", p.Name)
			}
			if !ok {
				return nil, Errorf(CodeInvalidArgument, "path parameter %s is nil", p.Name)
			}
			path = strings.ReplaceAll(path, "{"+p.Name+"}", url.PathEscape(s))
		case RoleQuery, RoleImplicitQuery:
			s, ok, err := scalarString(b.codec, arg)
			if err != nil {
				return nil, wrapError(CodeInvalidArgument, err, "encode query parameter %s", p.Name)
			}
			if ok {
				query = append(query, queryPair{key: p.Name, value: s})
			}
		case RoleFlat:
			pairs, err := b.flatten(arg)
			if err != nil {
				return nil, err
			}
			query = append(query, pairs...)
		case RoleHeader:
			s, ok, err := scalarString(b.codec, arg)
			if err != nil {
				return nil, wrapError(CodeInvalidArgument, err, "encode header %s", p.Name)
			}
			if ok {
				header.Add(p.Name, s)
			}
		case RoleBody:
			if err := b.check(p.Name, arg); err != nil {
				return nil, err
			}
			bodies = append(bodies, namedValue{name: p.Name, value: arg})
		}
	}

	for _, h := range call.Headers {
		for _, v := range h.Values {
			header.Add(h.Name, v)
		}
	}

	uri := joinURL(b.baseURL, b.namespace, path)
	if len(query) > 0 {
		sep := "?"
		if strings.Contains(uri, "?") {
			sep = "&"
		}
		uri += sep + query.encode()
	}

	body, contentType, err := encodeBody(b.codec, call.Encoding, bodies)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, call.Verb, uri, body)
	if err != nil {
		return nil, wrapError(CodeInvalidArgument, err, "build request")
	}
	for k, vs := range header {
		req.Header[k] = vs
	}
	if contentType != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req, nil
}

// flatten expands a struct argument into query pairs, one per field, using
// gorilla/schema field names. Keys are sorted so the query is stable.
func (b *requestBuilder) flatten(arg reflect.Value) (queryPairs, error) {
	v, ok := deref(arg)
	if !ok {
		return nil, nil
	}
	if err := b.check("flat", v); err != nil {
		return nil, err
	}
	values := make(map[string][]string)
	if err := flatEncoder.Encode(v.Interface(), values); err != nil {
		return nil, wrapError(CodeInvalidArgument, err, "encode flat query parameter")
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var pairs queryPairs
	for _, k := range keys {
		for _, v := range values[k] {
			pairs = append(pairs, queryPair{key: k, value: v})
		}
	}
	return pairs, nil
}

// check validates struct arguments against their `validate` tags.
func (b *requestBuilder) check(name string, arg reflect.Value) error {
	if b.validate == nil {
		return nil
	}
	v, ok := deref(arg)
	if !ok || v.Kind() != reflect.Struct {
		return nil
	}
	if v.Type().Implements(textMarshalerType) || reflect.PointerTo(v.Type()).Implements(textMarshalerType) {
		return nil
	}
	if err := b.validate.Struct(v.Interface()); err != nil {
		return validationError(name, err)
	}
	return nil
}

// joinURL joins a base address with relative segments, leaving exactly one
// "/" between each pair regardless of leading or trailing slashes. Empty
// segments are skipped.
func joinURL(base string, segments ...string) string {
	out := base
	for _, s := range segments {
		if s == "" {
			continue
		}
		if out == "" {
			out = s
			continue
		}
		out = strings.TrimRight(out, "/") + "/" + strings.TrimLeft(s, "/")
	}
	return out
}

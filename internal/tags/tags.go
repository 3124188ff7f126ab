// Package tags parses the struct tag grammar that declares tether contracts.
//
// The grammar is shared by the runtime contract model and the tether CLI, which
// checks contracts from source without running them:
//
//	Get func(ctx context.Context, id int) (*Post, error) `http:"GET /posts/{id}" params:"path:id"`
package tags

import (
	"fmt"
	"net/textproto"
	"strconv"
	"strings"
)

// Tag keys read from contract struct fields.
const (
	KeyRoute       = "http"
	KeyParams      = "params"
	KeyEncoding    = "encoding"
	KeyLongRunning = "longrunning"
	KeyHeaders     = "headers"
	KeyNamespace   = "path"
)

// Role is the destination of a parameter in the outbound request.
type Role string

const (
	RoleImplicitQuery Role = "implicit-query"
	RoleQuery         Role = "query"
	RolePath          Role = "path"
	RoleHeader        Role = "header"
	RoleBody          Role = "body"
	RoleFlat          Role = "flat"
	RoleCancellation  Role = "cancellation"
)

// Encoding is the body encoding mode of a call.
type Encoding string

const (
	EncodingNone          Encoding = "none"
	EncodingForm          Encoding = "form"
	EncodingMultipart     Encoding = "multipart"
	EncodingMultipartForm Encoding = "multipart-form"
)

var verbs = map[string]bool{
	"GET":     true,
	"PUT":     true,
	"POST":    true,
	"DELETE":  true,
	"PATCH":   true,
	"HEAD":    true,
	"OPTIONS": true,
}

// Route is a parsed `http` tag.
type Route struct {
	Verb string
	Path string
}

// ParseRoute parses "VERB /path/{name}". The path is optional.
func ParseRoute(tag string) (Route, error) {
	fields := strings.Fields(tag)
	switch len(fields) {
	case 1, 2:
	case 0:
		return Route{}, fmt.Errorf("empty route")
	default:
		return Route{}, fmt.Errorf("route %q: want \"VERB /path\"", tag)
	}
	verb := fields[0]
	if !verbs[verb] {
		return Route{}, fmt.Errorf("route %q: unsupported verb %q", tag, verb)
	}
	r := Route{Verb: verb}
	if len(fields) == 2 {
		r.Path = fields[1]
	}
	return r, nil
}

// Param is one entry of a `params` tag. Name is empty when the entry
// did not give one.
type Param struct {
	Role Role
	Name string
}

// ParseParams parses a comma-separated `params` tag. Entries correspond, in
// order, to the function's non-context parameters.
func ParseParams(tag string) ([]Param, error) {
	if strings.TrimSpace(tag) == "" {
		return nil, nil
	}
	entries := strings.Split(tag, ",")
	params := make([]Param, 0, len(entries))
	for i, raw := range entries {
		entry := strings.TrimSpace(raw)
		p, err := parseParam(entry)
		if err != nil {
			return nil, fmt.Errorf("params entry %d: %w", i, err)
		}
		params = append(params, p)
	}
	return params, nil
}

func parseParam(entry string) (Param, error) {
	if entry == "" {
		return Param{Role: RoleImplicitQuery}, nil
	}
	if strings.ContainsAny(entry, " \t") {
		return Param{}, fmt.Errorf("%q contains whitespace", entry)
	}
	role, name, hasName := strings.Cut(entry, ":")
	if !hasName {
		switch Role(entry) {
		case RoleBody, RoleFlat, RoleQuery:
			return Param{Role: Role(entry)}, nil
		case RolePath, RoleHeader:
			return Param{}, fmt.Errorf("%s parameter needs a name, e.g. %s:id", entry, entry)
		}
		return Param{Role: RoleImplicitQuery, Name: entry}, nil
	}
	switch Role(role) {
	case RolePath, RoleHeader:
		if name == "" {
			return Param{}, fmt.Errorf("%s parameter needs a name", role)
		}
	case RoleQuery, RoleBody:
	case RoleFlat:
		if name != "" {
			return Param{}, fmt.Errorf("flat parameters take no name")
		}
	default:
		return Param{}, fmt.Errorf("unknown role %q", role)
	}
	return Param{Role: Role(role), Name: name}, nil
}

// DefaultName is the name given to a parameter declared without one.
// index is the parameter's position in the function signature.
func DefaultName(index int) string {
	return "arg" + strconv.Itoa(index)
}

// Header is one static header of a `headers` tag.
type Header struct {
	Name   string
	Values []string
}

// ParseHeaders parses "Name: v1, v2; Other: v". A ";" segment that does not
// start with a header name and colon continues the previous value, so media
// type parameters such as "Accept: text/plain; charset=utf-8" are kept.
func ParseHeaders(tag string) ([]Header, error) {
	if strings.TrimSpace(tag) == "" {
		return nil, nil
	}
	var entries []string
	for _, raw := range strings.Split(tag, ";") {
		if len(entries) > 0 && !startsHeader(raw) {
			entries[len(entries)-1] += ";" + raw
			continue
		}
		entries = append(entries, raw)
	}

	var headers []Header
	for _, raw := range entries {
		entry := strings.TrimSpace(raw)
		if entry == "" {
			continue
		}
		name, value, ok := strings.Cut(entry, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("header %q: want \"Name: value\"", entry)
		}
		h := Header{Name: name}
		for _, v := range strings.Split(value, ",") {
			h.Values = append(h.Values, strings.TrimSpace(v))
		}
		headers = append(headers, h)
	}
	return headers, nil
}

// startsHeader reports whether a segment begins with "Name:", Name being an
// HTTP token. Empty segments start a new (skipped) entry.
func startsHeader(segment string) bool {
	segment = strings.TrimSpace(segment)
	if segment == "" {
		return true
	}
	name, _, ok := strings.Cut(segment, ":")
	if !ok || name == "" {
		return false
	}
	for _, r := range name {
		if !isTokenChar(r) {
			return false
		}
	}
	return true
}

func isTokenChar(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	}
	return strings.ContainsRune("!#$%&'*+-.^_`|~", r)
}

// ParseEncoding parses an `encoding` tag. Empty means none.
func ParseEncoding(tag string) (Encoding, error) {
	switch e := Encoding(strings.TrimSpace(tag)); e {
	case "":
		return EncodingNone, nil
	case EncodingNone, EncodingForm, EncodingMultipart, EncodingMultipartForm:
		return e, nil
	default:
		return "", fmt.Errorf("unknown body encoding %q", tag)
	}
}

// ParseBool parses a boolean tag such as `longrunning`. Empty means false.
func ParseBool(tag string) (bool, error) {
	if tag == "" {
		return false, nil
	}
	return strconv.ParseBool(tag)
}

// Placeholders returns the {name} placeholders of a path template in order.
func Placeholders(path string) []string {
	var names []string
	for {
		open := strings.IndexByte(path, '{')
		if open < 0 {
			return names
		}
		end := strings.IndexByte(path[open:], '}')
		if end < 0 {
			return names
		}
		if name := path[open+1 : open+end]; name != "" {
			names = append(names, name)
		}
		path = path[open+end+1:]
	}
}

// Violation is a structural problem found by Validate. Argument violations
// concern the shape of the declared arguments; the rest are contract
// configuration errors.
type Violation struct {
	Argument bool
	Message  string
}

func (v Violation) Error() string {
	return v.Message
}

// Validate checks the rules that only depend on the route, the named
// parameters and the encoding. Parameters must already carry their final
// names (see DefaultName); cancellation parameters are ignored.
func Validate(route Route, params []Param, enc Encoding) []Violation {
	var out []Violation

	placeholders := make(map[string]bool)
	for _, name := range Placeholders(route.Path) {
		placeholders[name] = true
	}

	seen := make(map[string]bool)
	bodies := 0
	for _, p := range params {
		var key string
		switch p.Role {
		case RolePath:
			key = "path:" + p.Name
			if !placeholders[p.Name] {
				out = append(out, Violation{Message: fmt.Sprintf("path parameter %q has no {%s} placeholder in %q", p.Name, p.Name, route.Path)})
			}
		case RoleQuery, RoleImplicitQuery:
			key = "query:" + p.Name
		case RoleHeader:
			key = "header:" + textproto.CanonicalMIMEHeaderKey(p.Name)
		case RoleBody:
			key = "body:" + p.Name
			bodies++
		default:
			continue
		}
		if seen[key] {
			out = append(out, Violation{Message: fmt.Sprintf("%s parameter name %q is used more than once", p.Role, p.Name)})
		}
		seen[key] = true
	}

	switch {
	case bodies > 1 && enc == EncodingNone:
		out = append(out, Violation{Message: fmt.Sprintf("%d body parameters need an explicit body encoding", bodies)})
	case bodies == 0 && enc != EncodingNone:
		out = append(out, Violation{Argument: true, Message: fmt.Sprintf("encoding %q needs at least one body parameter", enc)})
	}
	return out
}

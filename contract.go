package tether

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"sync"

	"github.com/broady/tether/internal/tags"
)

// Namespace marks the contract-wide path prefix. Declare it as a blank field:
//
//	type PostsAPI struct {
//	    _ tether.Namespace `path:"v1"`
//	    ...
//	}
type Namespace struct{}

// Void is the value of futures returned by calls that produce no result.
type Void struct{}

// Role is the destination of a parameter in the outbound request.
type Role = tags.Role

const (
	RoleImplicitQuery = tags.RoleImplicitQuery
	RoleQuery         = tags.RoleQuery
	RolePath          = tags.RolePath
	RoleHeader        = tags.RoleHeader
	RoleBody          = tags.RoleBody
	RoleFlat          = tags.RoleFlat
	RoleCancellation  = tags.RoleCancellation
)

// BodyEncoding selects how body parameters are framed.
type BodyEncoding = tags.Encoding

const (
	EncodingNone          = tags.EncodingNone
	EncodingForm          = tags.EncodingForm
	EncodingMultipart     = tags.EncodingMultipart
	EncodingMultipartForm = tags.EncodingMultipartForm
)

// ReturnShape is the kind of result a contract method declares.
type ReturnShape int

const (
	ShapeVoid ReturnShape = iota
	ShapeRaw
	ShapeStream
	ShapeValue
	// ShapeEvents owns the response body until the sequence is ranged over
	// and iteration stops. A sequence that is never ranged over leaks it.
	ShapeEvents
)

func (s ReturnShape) String() string {
	switch s {
	case ShapeVoid:
		return "void"
	case ShapeRaw:
		return "raw-response"
	case ShapeStream:
		return "byte-stream"
	case ShapeValue:
		return "structured-value"
	case ShapeEvents:
		return "event-stream"
	default:
		return fmt.Sprintf("ReturnShape(%d)", int(s))
	}
}

// StaticHeader is a header attached to every request of a method.
type StaticHeader struct {
	Name   string
	Values []string
}

// CallDescriptor is the per-method metadata of a contract.
type CallDescriptor struct {
	Method      string
	Verb        string
	Path        string
	Encoding    BodyEncoding
	LongRunning bool
	Headers     []StaticHeader
	Shape       ReturnShape
	// Async is set when the method returns a *Future.
	Async bool
	// Value is the decoded type for ShapeValue and the event type for ShapeEvents.
	Value reflect.Type
	// Result is the declared result type: T of (T, error) or *Future[T].
	Result reflect.Type
}

// ParamDescriptor describes one parameter of a contract method.
type ParamDescriptor struct {
	Index int
	Name  string
	Role  Role
	Type  reflect.Type
}

type methodEntry struct {
	field  int
	fn     reflect.Type
	call   CallDescriptor
	params []ParamDescriptor
}

// Contract is the immutable metadata of a contract struct type.
type Contract struct {
	typ       reflect.Type
	namespace string
	methods   map[string]*methodEntry
	order     []string
}

var (
	contextType   = reflect.TypeFor[context.Context]()
	errorType     = reflect.TypeFor[error]()
	namespaceType = reflect.TypeFor[Namespace]()
	voidType      = reflect.TypeFor[Void]()
	responseType  = reflect.TypeFor[*http.Response]()
	readCloseType = reflect.TypeFor[io.ReadCloser]()
	readerType    = reflect.TypeFor[io.Reader]()
	binderType    = reflect.TypeFor[futureBinder]()
)

type contractEntry struct {
	contract *Contract
	err      error
}

// contracts caches built contracts by struct type. Building is pure, so a
// race on first use only duplicates work.
var contracts sync.Map

// ContractOf returns the contract of a struct type or pointer to struct type.
func ContractOf(t reflect.Type) (*Contract, error) {
	if t == nil {
		return nil, Errorf(CodeConfiguration, "nil contract type")
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if e, ok := contracts.Load(t); ok {
		entry := e.(contractEntry)
		return entry.contract, entry.err
	}
	c, err := buildContract(t)
	e, _ := contracts.LoadOrStore(t, contractEntry{contract: c, err: err})
	entry := e.(contractEntry)
	return entry.contract, entry.err
}

// LoadContract returns the contract of T.
func LoadContract[T any]() (*Contract, error) {
	return ContractOf(reflect.TypeFor[T]())
}

// Name returns the contract's type name.
func (c *Contract) Name() string {
	return c.typ.Name()
}

// BaseNamespace returns the path prefix declared with a Namespace field.
func (c *Contract) BaseNamespace() string {
	return c.namespace
}

// Methods returns the method names in declaration order.
func (c *Contract) Methods() []string {
	return append([]string(nil), c.order...)
}

// ResolveCall returns the call descriptor of a method.
func (c *Contract) ResolveCall(method string) (CallDescriptor, error) {
	m, ok := c.methods[method]
	if !ok {
		return CallDescriptor{}, Errorf(CodeConfiguration, "%s has no method %q", c.Name(), method)
	}
	return m.call, nil
}

// ResolveParameters returns the parameter descriptors of a method in
// signature order.
func (c *Contract) ResolveParameters(method string) ([]ParamDescriptor, error) {
	m, ok := c.methods[method]
	if !ok {
		return nil, Errorf(CodeConfiguration, "%s has no method %q", c.Name(), method)
	}
	return append([]ParamDescriptor(nil), m.params...), nil
}

func buildContract(t reflect.Type) (*Contract, error) {
	if t.Kind() != reflect.Struct {
		return nil, Errorf(CodeConfiguration, "contract %s is not a struct", t)
	}
	c := &Contract{
		typ:     t,
		methods: make(map[string]*methodEntry),
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Type == namespaceType {
			c.namespace = f.Tag.Get(tags.KeyNamespace)
			continue
		}
		if f.Type.Kind() != reflect.Func {
			continue
		}
		_, hasRoute := f.Tag.Lookup(tags.KeyRoute)
		if !f.IsExported() {
			if hasRoute {
				return nil, Errorf(CodeConfiguration, "%s.%s: contract methods must be exported", t.Name(), f.Name)
			}
			continue
		}
		if !hasRoute {
			return nil, Errorf(CodeConfiguration, "%s.%s: missing http tag", t.Name(), f.Name)
		}
		m, err := buildMethod(f)
		if err != nil {
			var e *Error
			if errors.As(err, &e) {
				return nil, &Error{Code: e.Code, Message: t.Name() + "." + f.Name + ": " + e.Message, Details: e.Details, Cause: e.Cause}
			}
			return nil, err
		}
		m.field = i
		c.methods[f.Name] = m
		c.order = append(c.order, f.Name)
	}
	return c, nil
}

func buildMethod(f reflect.StructField) (*methodEntry, error) {
	ft := f.Type
	if ft.IsVariadic() {
		return nil, Errorf(CodeConfiguration, "variadic methods are not supported")
	}
	route, err := tags.ParseRoute(f.Tag.Get(tags.KeyRoute))
	if err != nil {
		return nil, wrapError(CodeConfiguration, err, "bad http tag")
	}
	declared, err := tags.ParseParams(f.Tag.Get(tags.KeyParams))
	if err != nil {
		return nil, wrapError(CodeConfiguration, err, "bad params tag")
	}
	enc, err := tags.ParseEncoding(f.Tag.Get(tags.KeyEncoding))
	if err != nil {
		return nil, wrapError(CodeConfiguration, err, "bad encoding tag")
	}
	longRunning, err := tags.ParseBool(f.Tag.Get(tags.KeyLongRunning))
	if err != nil {
		return nil, wrapError(CodeConfiguration, err, "bad longrunning tag")
	}
	headers, err := tags.ParseHeaders(f.Tag.Get(tags.KeyHeaders))
	if err != nil {
		return nil, wrapError(CodeConfiguration, err, "bad headers tag")
	}

	params := make([]ParamDescriptor, 0, ft.NumIn())
	named := make([]tags.Param, 0, ft.NumIn())
	next := 0
	hasContext := false
	for i := 0; i < ft.NumIn(); i++ {
		in := ft.In(i)
		if in == contextType {
			if hasContext {
				return nil, Errorf(CodeConfiguration, "parameter %d: more than one context.Context parameter", i)
			}
			hasContext = true
			params = append(params, ParamDescriptor{Index: i, Name: "ctx", Role: RoleCancellation, Type: in})
			continue
		}
		switch in.Kind() {
		case reflect.Chan, reflect.Func:
			return nil, Errorf(CodeInvalidArgument, "parameter %d: %s is an out-direction parameter, which is not supported", i, in)
		}
		p := tags.Param{Role: RoleImplicitQuery}
		if next < len(declared) {
			p = declared[next]
		}
		next++
		if p.Role == RoleFlat {
			if indirectType(in).Kind() != reflect.Struct {
				return nil, Errorf(CodeConfiguration, "parameter %d: flat parameters must be structs, got %s", i, in)
			}
		} else if p.Name == "" {
			p.Name = tags.DefaultName(i)
		}
		named = append(named, p)
		params = append(params, ParamDescriptor{Index: i, Name: p.Name, Role: p.Role, Type: in})
	}
	if next < len(declared) {
		return nil, Errorf(CodeConfiguration, "params tag has %d entries for %d parameters", len(declared), next)
	}

	if violations := tags.Validate(route, named, enc); len(violations) > 0 {
		v := violations[0]
		if v.Argument {
			return nil, NewError(CodeInvalidArgument, v.Message)
		}
		return nil, NewError(CodeConfiguration, v.Message)
	}

	call := CallDescriptor{
		Method:      f.Name,
		Verb:        route.Verb,
		Path:        route.Path,
		Encoding:    enc,
		LongRunning: longRunning,
	}
	for _, h := range headers {
		call.Headers = append(call.Headers, StaticHeader{Name: h.Name, Values: h.Values})
	}
	if err := classifyResults(ft, &call); err != nil {
		return nil, err
	}
	return &methodEntry{fn: ft, call: call, params: params}, nil
}

// classifyResults derives the return shape from the function's results.
func classifyResults(ft reflect.Type, call *CallDescriptor) error {
	switch ft.NumOut() {
	case 1:
		out := ft.Out(0)
		if out == errorType {
			call.Shape = ShapeVoid
			return nil
		}
		if out.Kind() == reflect.Pointer && out.Implements(binderType) {
			call.Async = true
			return classifyValue(futureValueType(out), call)
		}
	case 2:
		if ft.Out(1) == errorType {
			return classifyValue(ft.Out(0), call)
		}
	}
	return Errorf(CodeConfiguration, "results must be error, (T, error) or *tether.Future[T], got %s", ft)
}

func classifyValue(t reflect.Type, call *CallDescriptor) error {
	call.Result = t
	switch {
	case t == voidType:
		call.Shape = ShapeVoid
	case t == responseType:
		call.Shape = ShapeRaw
	case t == readCloseType || t == readerType:
		call.Shape = ShapeStream
	case isEventSeq(t):
		call.Shape = ShapeEvents
		call.Value = t.In(0).In(0)
	case t.Kind() == reflect.Pointer && t.Implements(binderType):
		return Errorf(CodeConfiguration, "nested futures are not supported")
	default:
		call.Shape = ShapeValue
		call.Value = t
	}
	return nil
}

// isEventSeq reports whether t has the shape of iter.Seq2[T, error].
func isEventSeq(t reflect.Type) bool {
	if t.Kind() != reflect.Func || t.NumIn() != 1 || t.NumOut() != 0 {
		return false
	}
	yield := t.In(0)
	return yield.Kind() == reflect.Func &&
		yield.NumIn() == 2 && yield.In(1) == errorType &&
		yield.NumOut() == 1 && yield.Out(0).Kind() == reflect.Bool
}

func indirectType(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

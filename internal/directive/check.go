package directive

import (
	"fmt"
	"go/token"
	"go/types"
	"reflect"
	"strings"

	"github.com/broady/tether/internal/tags"
)

// Contract is a checked //tether:contract type.
type Contract struct {
	Directive
	Namespace string
	Methods   []Method
	// Problems found on the type itself rather than on one method.
	Problems []Problem
}

// Method is one func field of a contract. Fields that fail to parse keep
// whatever was parsed before the first problem.
type Method struct {
	Name        string
	Pos         token.Position
	Verb        string
	Path        string
	Encoding    tags.Encoding
	LongRunning bool
	Params      []tags.Param
	Async       bool
	Problems    []Problem
}

// Route returns the method's path joined to the contract namespace.
func (c Contract) Route(m Method) string {
	switch {
	case c.Namespace == "":
		return m.Path
	case m.Path == "":
		return c.Namespace
	}
	return strings.TrimRight(c.Namespace, "/") + "/" + strings.TrimLeft(m.Path, "/")
}

// Problem is a contract declaration the runtime would reject.
type Problem struct {
	Pos     token.Position
	Message string
}

func (p Problem) String() string {
	return fmt.Sprintf("%s: %s", p.Pos, p.Message)
}

func checkContract(fset *token.FileSet, d Directive, st *types.Struct) Contract {
	c := Contract{Directive: d}
	for i := 0; i < st.NumFields(); i++ {
		f := st.Field(i)
		tag := reflect.StructTag(st.Tag(i))
		if isTetherType(f.Type(), "Namespace") {
			c.Namespace = tag.Get(tags.KeyNamespace)
			continue
		}
		sig, ok := f.Type().Underlying().(*types.Signature)
		if !ok {
			continue
		}
		_, hasRoute := tag.Lookup(tags.KeyRoute)
		pos := fset.Position(f.Pos())
		switch {
		case !f.Exported() && hasRoute:
			c.Problems = append(c.Problems, Problem{Pos: pos, Message: fmt.Sprintf("%s: contract methods must be exported", f.Name())})
			continue
		case !f.Exported():
			continue
		case !hasRoute:
			c.Problems = append(c.Problems, Problem{Pos: pos, Message: fmt.Sprintf("%s: missing http tag", f.Name())})
			continue
		}
		c.Methods = append(c.Methods, checkMethod(f.Name(), pos, tag, sig))
	}
	return c
}

func checkMethod(name string, pos token.Position, tag reflect.StructTag, sig *types.Signature) Method {
	m := Method{Name: name, Pos: pos}
	problem := func(format string, args ...any) Method {
		m.Problems = append(m.Problems, Problem{Pos: pos, Message: name + ": " + fmt.Sprintf(format, args...)})
		return m
	}

	if sig.Variadic() {
		return problem("variadic methods are not supported")
	}
	route, err := tags.ParseRoute(tag.Get(tags.KeyRoute))
	if err != nil {
		return problem("bad http tag: %v", err)
	}
	m.Verb, m.Path = route.Verb, route.Path
	declared, err := tags.ParseParams(tag.Get(tags.KeyParams))
	if err != nil {
		return problem("bad params tag: %v", err)
	}
	if m.Encoding, err = tags.ParseEncoding(tag.Get(tags.KeyEncoding)); err != nil {
		return problem("bad encoding tag: %v", err)
	}
	if m.LongRunning, err = tags.ParseBool(tag.Get(tags.KeyLongRunning)); err != nil {
		return problem("bad longrunning tag: %v", err)
	}
	if _, err := tags.ParseHeaders(tag.Get(tags.KeyHeaders)); err != nil {
		return problem("bad headers tag: %v", err)
	}

	next := 0
	contexts := 0
	params := sig.Params()
	for i := 0; i < params.Len(); i++ {
		t := params.At(i).Type()
		if isContext(t) {
			if contexts++; contexts > 1 {
				problem("parameter %d: more than one context.Context parameter", i)
			}
			continue
		}
		switch t.Underlying().(type) {
		case *types.Chan, *types.Signature:
			problem("parameter %d: %s is an out-direction parameter, which is not supported", i, t)
		}
		p := tags.Param{Role: tags.RoleImplicitQuery}
		if next < len(declared) {
			p = declared[next]
		}
		next++
		if p.Role == tags.RoleFlat {
			if _, ok := deref(t).Underlying().(*types.Struct); !ok {
				problem("parameter %d: flat parameters must be structs, got %s", i, t)
			}
		} else if p.Name == "" {
			p.Name = tags.DefaultName(i)
		}
		m.Params = append(m.Params, p)
	}
	if next < len(declared) {
		problem("params tag has %d entries for %d parameters", len(declared), next)
	}
	for _, v := range tags.Validate(route, m.Params, m.Encoding) {
		problem("%s", v.Message)
	}

	results := sig.Results()
	switch {
	case results.Len() == 1 && isError(results.At(0).Type()):
	case results.Len() == 1 && isTetherType(deref(results.At(0).Type()), "Future"):
		m.Async = true
	case results.Len() == 2 && isError(results.At(1).Type()):
	default:
		problem("results must be error, (T, error) or *tether.Future[T], got %s", results)
	}
	return m
}

func isContext(t types.Type) bool {
	named, ok := t.(*types.Named)
	if !ok || named.Obj().Pkg() == nil {
		return false
	}
	return named.Obj().Pkg().Path() == "context" && named.Obj().Name() == "Context"
}

func isError(t types.Type) bool {
	return types.Identical(t, types.Universe.Lookup("error").Type())
}

// isTetherType matches by package name so contracts can be checked against
// any copy of the tether package.
func isTetherType(t types.Type, name string) bool {
	named, ok := t.(*types.Named)
	if !ok || named.Obj().Pkg() == nil {
		return false
	}
	return named.Obj().Pkg().Name() == "tether" && named.Obj().Name() == name
}

func deref(t types.Type) types.Type {
	for {
		ptr, ok := t.(*types.Pointer)
		if !ok {
			return t
		}
		t = ptr.Elem()
	}
}

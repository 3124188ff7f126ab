// Package directive finds tether contracts in Go source and checks them
// without running them.
//
// A contract is marked with a line comment directly above its type:
//
//	//tether:contract
//	type PostsAPI struct {
//	    _   tether.Namespace `path:"v1"`
//	    Get func(ctx context.Context, id int) (*Post, error) `http:"GET /posts/{id}" params:"path:id"`
//	}
package directive

import (
	"fmt"
	"go/ast"
	"go/token"
	"go/types"
	"path/filepath"
	"strings"

	"golang.org/x/tools/go/packages"
)

const prefix = "//tether:"

// Kind is the kind of a directive.
type Kind string

const KindContract Kind = "contract"

// Directive is a parsed //tether: comment bound to a type declaration.
type Directive struct {
	Kind     Kind
	TypeName string
	Pos      token.Position
}

// Result holds the contracts of one package.
type Result struct {
	PackagePath string
	Dir         string
	Contracts   []Contract
}

// Problems returns every problem found in the package's contracts.
func (r *Result) Problems() []Problem {
	var out []Problem
	for _, c := range r.Contracts {
		out = append(out, c.Problems...)
		for _, m := range c.Methods {
			out = append(out, m.Problems...)
		}
	}
	return out
}

// Parse loads the package matching pattern and checks every contract in it.
//
// The pattern follows go command semantics but must match a single package.
// Load failures and misplaced directives are returned as errors; problems in
// the contracts themselves are reported on the result.
func Parse(pattern string) (*Result, error) {
	return ParseDir(pattern, "")
}

// ParseDir is like Parse but resolves pattern relative to dir.
// If dir is empty, the current directory is used.
func ParseDir(pattern, dir string) (*Result, error) {
	cfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedFiles | packages.NeedSyntax |
			packages.NeedTypes | packages.NeedTypesInfo,
		Dir: dir,
	}

	pkgs, err := packages.Load(cfg, pattern)
	if err != nil {
		return nil, fmt.Errorf("load package: %w", err)
	}
	if len(pkgs) == 0 {
		return nil, fmt.Errorf("no packages found matching %q", pattern)
	}
	if len(pkgs) > 1 {
		return nil, fmt.Errorf("multiple packages found matching %q; specify a single package", pattern)
	}

	pkg := pkgs[0]
	if len(pkg.Errors) > 0 {
		return nil, fmt.Errorf("package errors: %v", pkg.Errors[0])
	}

	result := &Result{PackagePath: pkg.PkgPath}
	if len(pkg.GoFiles) > 0 {
		result.Dir = filepath.Dir(pkg.GoFiles[0])
	}

	directives, err := findDirectives(pkg)
	if err != nil {
		return nil, err
	}
	for _, d := range directives {
		obj := pkg.Types.Scope().Lookup(d.TypeName)
		if obj == nil {
			return nil, fmt.Errorf("%s: type %s not found in package scope", d.Pos, d.TypeName)
		}
		st, ok := obj.Type().Underlying().(*types.Struct)
		if !ok {
			return nil, fmt.Errorf("%s: //tether:contract type %s must be a struct, got %s", d.Pos, d.TypeName, obj.Type().Underlying())
		}
		result.Contracts = append(result.Contracts, checkContract(pkg.Fset, d, st))
	}
	return result, nil
}

// findDirectives extracts directives from the package syntax and matches
// them to the type declarations that follow them.
func findDirectives(pkg *packages.Package) ([]Directive, error) {
	var directives []Directive

	for _, f := range pkg.Syntax {
		type pending struct {
			kind Kind
			pos  token.Position
		}
		// keyed by the line the comment group ends on
		commentToDirective := make(map[int]pending)

		for _, cg := range f.Comments {
			for _, c := range cg.List {
				if !strings.HasPrefix(c.Text, prefix) {
					continue
				}
				parts := strings.Fields(strings.TrimPrefix(c.Text, prefix))
				if len(parts) == 0 {
					continue
				}
				pos := pkg.Fset.Position(c.Pos())
				if Kind(parts[0]) != KindContract {
					return nil, fmt.Errorf("%s: unknown directive %s%s", pos, prefix, parts[0])
				}
				if len(parts) > 1 {
					return nil, fmt.Errorf("%s: %s%s takes no arguments", pos, prefix, parts[0])
				}
				commentToDirective[pkg.Fset.Position(cg.End()).Line] = pending{kind: KindContract, pos: pos}
			}
		}

		match := func(doc *ast.CommentGroup, spec *ast.TypeSpec) {
			if doc == nil {
				return
			}
			line := pkg.Fset.Position(doc.End()).Line
			p, ok := commentToDirective[line]
			if !ok {
				return
			}
			directives = append(directives, Directive{
				Kind:     p.kind,
				TypeName: spec.Name.Name,
				Pos:      pkg.Fset.Position(spec.Pos()),
			})
			delete(commentToDirective, line)
		}

		for _, decl := range f.Decls {
			gen, ok := decl.(*ast.GenDecl)
			if !ok || gen.Tok != token.TYPE {
				continue
			}
			for _, s := range gen.Specs {
				spec := s.(*ast.TypeSpec)
				match(spec.Doc, spec)
				if len(gen.Specs) == 1 {
					match(gen.Doc, spec)
				}
			}
		}

		for _, p := range commentToDirective {
			return nil, fmt.Errorf("%s: %s%s directive must be followed by a type declaration", p.pos, prefix, p.kind)
		}
	}

	return directives, nil
}

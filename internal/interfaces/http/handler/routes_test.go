package handler

import (
	"go/ast"
	"go/parser"
	"go/token"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// routerAnnotations reads the @Router line of every handler method in this package
func routerAnnotations(t *testing.T) map[string]string {
	t.Helper()
	files, err := filepath.Glob("*.go")
	require.NoError(t, err)

	fset := token.NewFileSet()
	routes := make(map[string]string)
	for _, name := range files {
		if strings.HasSuffix(name, "_test.go") {
			continue
		}
		file, err := parser.ParseFile(fset, name, nil, parser.ParseComments)
		require.NoError(t, err)
		for _, decl := range file.Decls {
			fn, ok := decl.(*ast.FuncDecl)
			if !ok || fn.Recv == nil || fn.Doc == nil {
				continue
			}
			for _, c := range fn.Doc.List {
				fields := strings.Fields(strings.TrimPrefix(c.Text, "//"))
				if len(fields) != 3 || fields[0] != "@Router" {
					continue
				}
				path := strings.NewReplacer("{", ":", "}", "").Replace(fields[1])
				method := strings.ToUpper(strings.Trim(fields[2], "[]"))
				routes[method+" "+path] = fn.Name.Name
			}
		}
	}
	return routes
}

func TestHandlers_RouterAnnotations(t *testing.T) {
	annotated := routerAnnotations(t)

	registered := []string{"GET /health"}
	for _, group := range (&Handlers{}).RouteGroups() {
		registered = append(registered, group.Routes()...)
	}

	for _, route := range registered {
		assert.Contains(t, annotated, route, "route %s has no @Router annotation", route)
	}
	assert.Len(t, annotated, len(registered))
}

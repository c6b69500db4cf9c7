package domain_test

import (
	"go/parser"
	"go/token"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const modulePath = "github.com/reglet-dev/rtools-bridge/"

// TestDomainHasNoOuterDependencies checks that domain packages import only
// the standard library and other domain packages.
func TestDomainHasNoOuterDependencies(t *testing.T) {
	fset := token.NewFileSet()
	for _, pkg := range []string{"entities", "errors", "ports"} {
		files, err := filepath.Glob(filepath.Join(pkg, "*.go"))
		require.NoError(t, err)
		require.NotEmpty(t, files, "domain/%s should contain Go files", pkg)

		for _, file := range files {
			if strings.HasSuffix(file, "_test.go") {
				continue
			}
			f, err := parser.ParseFile(fset, file, nil, parser.ImportsOnly)
			require.NoError(t, err, "failed to parse %s", file)

			for _, imp := range f.Imports {
				path := strings.Trim(imp.Path.Value, `"`)
				if strings.HasPrefix(path, modulePath) {
					assert.True(t, strings.HasPrefix(path, modulePath+"domain/"),
						"domain/%s (%s) imports %s", pkg, filepath.Base(file), path)
					continue
				}
				first := strings.SplitN(path, "/", 2)[0]
				assert.False(t, strings.Contains(first, "."),
					"domain/%s (%s) imports third-party package %s", pkg, filepath.Base(file), path)
			}
		}
	}
}

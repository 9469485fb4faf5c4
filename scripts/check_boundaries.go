package main

import (
	"fmt"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const rootModule = "campusvote"

type violation struct {
	File   string
	Line   int
	Import string
	Rule   string
}

// layerRule restricts what one layer of a service may import. local holds
// prefixes relative to the service module, external holds third-party
// prefixes. Stdlib is always allowed.
type layerRule struct {
	name      string
	local     []string
	external  []string
	sharedLib bool
}

var layerRules = map[string]layerRule{
	"domain": {
		name:  "domain",
		local: []string{"/domain"},
	},
	"ports": {
		name:      "ports",
		local:     []string{"/domain", "/ports"},
		sharedLib: true,
	},
	"application": {
		name:      "application",
		local:     []string{"/application", "/domain", "/ports"},
		external:  []string{"github.com/cenkalti/backoff/v4", "golang.org/x/sync/errgroup"},
		sharedLib: true,
	},
	"transport": {
		name:  "transport",
		local: []string{"/transport"},
	},
}

func main() {
	violations := collectViolations("contexts")
	if len(violations) == 0 {
		fmt.Println("boundary checks passed")
		return
	}

	sort.Slice(violations, func(i, j int) bool {
		if violations[i].File != violations[j].File {
			return violations[i].File < violations[j].File
		}
		if violations[i].Line != violations[j].Line {
			return violations[i].Line < violations[j].Line
		}
		return violations[i].Import < violations[j].Import
	})

	fmt.Println("boundary violations found:")
	for _, v := range violations {
		fmt.Printf("- %s:%d imports %q (%s)\n", v.File, v.Line, v.Import, v.Rule)
	}
	os.Exit(1)
}

func collectViolations(root string) []violation {
	var violations []violation
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		normalized := filepath.ToSlash(path)
		parts := strings.Split(normalized, "/")
		if len(parts) < 4 || parts[0] != "contexts" {
			return nil
		}
		modulePrefix := fmt.Sprintf("%s/contexts/%s/%s", rootModule, parts[1], parts[2])

		fset := token.NewFileSet()
		file, err := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
		if err != nil {
			violations = append(violations, violation{File: normalized, Line: 1, Rule: "file must parse"})
			return nil
		}
		for _, imp := range file.Imports {
			importPath := strings.Trim(imp.Path.Value, "\"")
			for _, rule := range checkImport(parts[3], importPath, modulePrefix) {
				violations = append(violations, violation{
					File:   normalized,
					Line:   fset.Position(imp.Pos()).Line,
					Import: importPath,
					Rule:   rule,
				})
			}
		}
		return nil
	})
	return violations
}

// checkImport returns the rules importPath breaks when imported from layer.
func checkImport(layer string, importPath string, modulePrefix string) []string {
	var broken []string
	if hasPrefix(importPath, rootModule+"/contexts") && !hasPrefix(importPath, modulePrefix) {
		broken = append(broken, "cross-module imports are forbidden")
	}

	rule, ok := layerRules[layer]
	if !ok || isStdlib(importPath) {
		return broken
	}
	if strings.Contains(importPath, "/adapters/") {
		broken = append(broken, rule.name+" must not import adapters")
	}
	if hasPrefix(importPath, rootModule+"/internal/platform") {
		broken = append(broken, rule.name+" must not import runtime infrastructure")
	}

	allowed := make([]string, 0, len(rule.local)+len(rule.external)+1)
	for _, local := range rule.local {
		allowed = append(allowed, modulePrefix+local)
	}
	allowed = append(allowed, rule.external...)
	if rule.sharedLib {
		allowed = append(allowed, rootModule+"/internal/shared")
	}
	if !isAllowed(importPath, allowed) {
		broken = append(broken, rule.name+" import is outside explicit allowlist")
	}
	return broken
}

func hasPrefix(path string, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

func isAllowed(importPath string, allowedPrefixes []string) bool {
	for _, p := range allowedPrefixes {
		if hasPrefix(importPath, p) {
			return true
		}
	}
	return false
}

func isStdlib(importPath string) bool {
	if hasPrefix(importPath, rootModule) {
		return false
	}
	first := importPath
	if idx := strings.Index(first, "/"); idx != -1 {
		first = first[:idx]
	}
	return !strings.Contains(first, ".")
}

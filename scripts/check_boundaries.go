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

const modulePath = "hoaportal"

type violation struct {
	File   string
	Line   int
	Import string
	Rule   string
}

// layerRule lists, relative to the service root, what a layer may import
// besides the standard library. Layers are matched longest first, so
// "domain/projection" overrides "domain".
type layerRule struct {
	layer      string
	allowed    []string
	thirdParty bool
}

var layerRules = []layerRule{
	{layer: "domain", allowed: []string{"domain/entities", "domain/errors"}},
	{layer: "domain/services", allowed: []string{"domain/entities", "domain/errors"}},
	{layer: "domain/projection", allowed: []string{"domain/entities", "domain/services"}},
	{layer: "ports", allowed: []string{"domain/entities", "@contracts"}},
	{layer: "application", allowed: []string{"application", "domain/entities", "domain/errors", "domain/services", "ports", "@contracts"}},
	{layer: "application/queries", allowed: []string{"application", "domain", "ports"}},
	{layer: "transport"},
	{layer: "adapters", allowed: []string{"domain", "ports", "@contracts"}, thirdParty: true},
	{layer: "adapters/http", allowed: []string{"application", "domain", "transport"}},
	{layer: "adapters/events", allowed: []string{"domain/entities", "ports"}},
}

func main() {
	violations := collectViolations("contexts")
	if len(violations) == 0 {
		fmt.Println("boundary checks passed")
		return
	}

	sort.Slice(violations, func(i, j int) bool {
		if violations[i].File == violations[j].File {
			if violations[i].Line == violations[j].Line {
				return violations[i].Import < violations[j].Import
			}
			return violations[i].Line < violations[j].Line
		}
		return violations[i].File < violations[j].File
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
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		parts := strings.Split(filepath.ToSlash(rel), "/")
		// <context>/<service>/<layer...>/<file>.go; files at the service root
		// (module.go, doc.go) compose the layers and are not checked.
		if len(parts) < 4 {
			return nil
		}
		servicePrefix := fmt.Sprintf("%s/contexts/%s/%s", modulePath, parts[0], parts[1])
		layerPath := strings.Join(parts[2:len(parts)-1], "/")
		violations = append(violations, validateFile(path, filepath.ToSlash(path), layerPath, servicePrefix)...)
		return nil
	})

	return violations
}

func validateFile(path string, normalizedPath string, layerPath string, servicePrefix string) []violation {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
	if err != nil {
		return []violation{{File: normalizedPath, Line: 1, Rule: "file must parse"}}
	}

	var violations []violation
	for _, imp := range file.Imports {
		importPath := strings.Trim(imp.Path.Value, "\"")
		line := fset.Position(imp.Pos()).Line
		if rule := checkImport(layerPath, importPath, servicePrefix); rule != "" {
			violations = append(violations, violation{
				File:   normalizedPath,
				Line:   line,
				Import: importPath,
				Rule:   rule,
			})
		}
	}
	return violations
}

// checkImport returns the broken rule, or "" when layerPath may import
// importPath.
func checkImport(layerPath string, importPath string, servicePrefix string) string {
	if isStdlib(importPath) {
		return ""
	}
	if strings.HasPrefix(importPath, modulePath+"/contexts/") && !hasPrefix(importPath, servicePrefix) {
		return "cross-service imports are forbidden"
	}
	if isRuntimeInfrastructure(importPath) {
		return layerName(layerPath) + " must not import runtime infrastructure"
	}
	// Outcome hints are for display; nothing that resolves a stage may read them.
	if hasPrefix(importPath, servicePrefix+"/domain/projection") &&
		!hasPrefix(layerPath, "domain/projection") && !hasPrefix(layerPath, "application/queries") {
		return "only queries may import the outcome projection"
	}

	rule, ok := ruleFor(layerPath)
	if !ok {
		return ""
	}
	if !strings.HasPrefix(importPath, modulePath+"/") {
		if rule.thirdParty {
			return ""
		}
		return rule.layer + " must not import third-party packages"
	}
	for _, allowed := range rule.allowed {
		prefix := servicePrefix + "/" + allowed
		if strings.HasPrefix(allowed, "@") {
			prefix = modulePath + "/" + strings.TrimPrefix(allowed, "@")
		}
		if hasPrefix(importPath, prefix) {
			return ""
		}
	}
	return rule.layer + " import is outside its allowlist"
}

func ruleFor(layerPath string) (layerRule, bool) {
	best := layerRule{}
	found := false
	for _, rule := range layerRules {
		if hasPrefix(layerPath, rule.layer) && len(rule.layer) > len(best.layer) {
			best = rule
			found = true
		}
	}
	return best, found
}

func layerName(layerPath string) string {
	if idx := strings.Index(layerPath, "/"); idx != -1 {
		return layerPath[:idx]
	}
	return layerPath
}

func isRuntimeInfrastructure(importPath string) bool {
	return strings.HasPrefix(importPath, modulePath+"/internal/") ||
		strings.HasPrefix(importPath, modulePath+"/cmd/")
}

func hasPrefix(path string, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

func isStdlib(importPath string) bool {
	if strings.HasPrefix(importPath, modulePath+"/") {
		return false
	}
	first := importPath
	if idx := strings.Index(first, "/"); idx != -1 {
		first = first[:idx]
	}
	return !strings.Contains(first, ".")
}

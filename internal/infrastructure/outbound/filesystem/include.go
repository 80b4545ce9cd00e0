package filesystem

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const maxIncludeDepth = 10

var errEscapesRoot = errors.New("path escapes root directory")

// IncludeResolver replaces !include tagged nodes with the referenced file.
// YAML files are spliced in as nodes, any other file as a string scalar.
//
// References are "@root/<p>" (relative to the rules root), "@here/<p>" or a
// bare relative path (both relative to the including file). Absolute paths
// and paths leaving the root are rejected.
type IncludeResolver struct {
	rootDir string
}

// NewIncludeResolver creates a resolver bound to rootDir for @root references.
func NewIncludeResolver(rootDir string) *IncludeResolver {
	return &IncludeResolver{rootDir: rootDir}
}

// ResolveIncludes rewrites node in place.
func (r *IncludeResolver) ResolveIncludes(node *yaml.Node, currentDir string) error {
	return r.resolve(node, currentDir, 0)
}

func (r *IncludeResolver) resolve(node *yaml.Node, dir string, depth int) error {
	if depth > maxIncludeDepth {
		return fmt.Errorf("!include depth exceeds maximum of %d", maxIncludeDepth)
	}
	if node == nil {
		return nil
	}
	if node.Tag == "!include" {
		return r.include(node, dir, depth)
	}
	for _, child := range node.Content {
		if err := r.resolve(child, dir, depth); err != nil {
			return err
		}
	}
	return nil
}

func (r *IncludeResolver) include(node *yaml.Node, dir string, depth int) error {
	ref := node.Value
	if ref == "" {
		return errors.New("!include tag has empty value")
	}

	path, err := r.locate(ref, dir)
	if err != nil {
		return fmt.Errorf("!include %q: %w", ref, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read included file %q: %w", path, err)
	}

	if !isYAMLFile(path) {
		*node = yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: string(data)}
		return nil
	}

	var included yaml.Node
	if err := yaml.Unmarshal(data, &included); err != nil {
		return fmt.Errorf("failed to parse included YAML %q: %w", path, err)
	}
	if err := r.resolve(&included, filepath.Dir(path), depth+1); err != nil {
		return err
	}
	if included.Kind == yaml.DocumentNode && len(included.Content) > 0 {
		*node = *included.Content[0]
	}
	return nil
}

// locate turns ref into a path and checks it stays under the root, following symlinks.
func (r *IncludeResolver) locate(ref, dir string) (string, error) {
	var path string
	if rest, ok := strings.CutPrefix(ref, "@root/"); ok {
		path = filepath.Join(r.rootDir, rest)
	} else if rest, ok := strings.CutPrefix(ref, "@here/"); ok {
		path = filepath.Join(dir, rest)
	} else if filepath.IsAbs(ref) {
		return "", errors.New("absolute paths are not allowed")
	} else {
		path = filepath.Join(dir, ref)
	}

	if !within(realPath(r.rootDir), realPath(path)) {
		return "", errEscapesRoot
	}
	return path, nil
}

func realPath(p string) string {
	if resolved, err := filepath.EvalSymlinks(p); err == nil {
		return resolved
	}
	return filepath.Clean(p)
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

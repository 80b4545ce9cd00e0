package filesystem_test

import (
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/sophialabs/clientmock/internal/infrastructure/outbound/filesystem"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func resolveDoc(t *testing.T, root, dir, content string) (*yaml.Node, error) {
	t.Helper()
	var node yaml.Node
	if err := yaml.Unmarshal([]byte(content), &node); err != nil {
		t.Fatal(err)
	}
	return &node, filesystem.NewIncludeResolver(root).ResolveIncludes(&node, dir)
}

// valueOf returns the value node of the only key in a one-key mapping document.
func valueOf(node *yaml.Node) *yaml.Node {
	return node.Content[0].Content[1]
}

func TestIncludeResolver_Rejects(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "self.yaml"), "body: !include self.yaml\n")
	writeFile(t, filepath.Join(dir, "bad.yaml"), ":\n\t\tbad")

	tests := []struct {
		name    string
		content string
	}{
		{"depth limit", "body: !include self.yaml\n"},
		{"empty value", "body: !include \"\"\n"},
		{"absolute path", "body: !include /etc/passwd\n"},
		{"traversal", "body: !include ../../etc/passwd\n"},
		{"root traversal", "body: !include \"@root/../outside.json\"\n"},
		{"missing file", "body: !include nonexistent.json\n"},
		{"invalid included yaml", "body: !include bad.yaml\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := resolveDoc(t, dir, dir, tt.content); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestIncludeResolver_RawFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "response.json"), `{"ok":true}`)

	node, err := resolveDoc(t, dir, dir, "body: !include response.json\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	body := valueOf(node)
	if body.Kind != yaml.ScalarNode || body.Value != `{"ok":true}` {
		t.Errorf("expected raw JSON scalar, got kind %d value %q", body.Kind, body.Value)
	}
}

func TestIncludeResolver_References(t *testing.T) {
	dir := t.TempDir()
	subdir := filepath.Join(dir, "subdir")
	writeFile(t, filepath.Join(dir, "shared.json"), "shared")
	writeFile(t, filepath.Join(subdir, "local.json"), "local")

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"at root", "body: !include \"@root/shared.json\"\n", "shared"},
		{"at here", "body: !include \"@here/local.json\"\n", "local"},
		{"relative", "body: !include local.json\n", "local"},
		{"relative parent inside root", "body: !include ../shared.json\n", "shared"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node, err := resolveDoc(t, dir, subdir, tt.content)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := valueOf(node).Value; got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestIncludeResolver_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "response.yaml"), "status: 200\nbody: !include body.txt\n")
	writeFile(t, filepath.Join(dir, "body.txt"), "nested")

	node, err := resolveDoc(t, dir, dir, "response: !include response.yaml\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var decoded struct {
		Response struct {
			Status int    `yaml:"status"`
			Body   string `yaml:"body"`
		} `yaml:"response"`
	}
	if err := node.Decode(&decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Response.Status != 200 || decoded.Response.Body != "nested" {
		t.Errorf("unexpected include result: %+v", decoded.Response)
	}
}

func TestIncludeResolver_NilNode(t *testing.T) {
	dir := t.TempDir()
	if err := filesystem.NewIncludeResolver(dir).ResolveIncludes(nil, dir); err != nil {
		t.Errorf("expected nil error for nil node, got %v", err)
	}
}

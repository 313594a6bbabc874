package filesystem

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTestFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestReadFileTool(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "hello.txt", "hello world")
	tool := NewReadFileTool(NewRoot(dir))

	res := tool.Fn(context.Background(), map[string]any{"path": "hello.txt"})
	if !res.Success {
		t.Fatalf("read failed: %s", res.Message)
	}
	if res.Data != "hello world" {
		t.Errorf("data = %v", res.Data)
	}

	res = tool.Fn(context.Background(), map[string]any{"path": "missing.txt"})
	if res.Success {
		t.Error("read of missing file succeeded")
	}
	if !strings.Contains(res.Message, "File not found") {
		t.Errorf("message = %q", res.Message)
	}
}

func TestReadFileToolRejectsEscape(t *testing.T) {
	dir := t.TempDir()
	tool := NewReadFileTool(NewRoot(dir))

	res := tool.Fn(context.Background(), map[string]any{"path": "../../etc/passwd"})
	if res.Success {
		t.Error("path escape succeeded")
	}
	if !strings.Contains(res.Message, "outside the working directory") {
		t.Errorf("message = %q", res.Message)
	}
}

func TestWriteFileTool(t *testing.T) {
	dir := t.TempDir()
	tool := NewWriteFileTool(NewRoot(dir))

	res := tool.Fn(context.Background(), map[string]any{
		"path":    "nested/out.txt",
		"content": "written",
	})
	if !res.Success {
		t.Fatalf("write failed: %s", res.Message)
	}
	data, err := os.ReadFile(filepath.Join(dir, "nested", "out.txt"))
	if err != nil || string(data) != "written" {
		t.Errorf("file content = %q, err = %v", data, err)
	}

	// create_dirs=false must not invent the parent directory.
	res = tool.Fn(context.Background(), map[string]any{
		"path":        "other/deep/file.txt",
		"content":     "x",
		"create_dirs": false,
	})
	if res.Success {
		t.Error("write succeeded without parent directory")
	}
}

func TestListFilesTool(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "a.txt", "a")
	writeTestFile(t, dir, "sub/b.txt", "b")
	writeTestFile(t, dir, ".git/config", "ignored")
	tool := NewListFilesTool(NewRoot(dir))

	res := tool.Fn(context.Background(), map[string]any{"directory": "."})
	if !res.Success {
		t.Fatalf("list failed: %s", res.Message)
	}
	files := res.Data.([]string)
	if len(files) != 1 || filepath.Base(files[0]) != "a.txt" {
		t.Errorf("non-recursive listing = %v", files)
	}

	res = tool.Fn(context.Background(), map[string]any{"directory": ".", "recursive": true})
	files = res.Data.([]string)
	if len(files) != 2 {
		t.Errorf("recursive listing = %v, want a.txt and sub/b.txt", files)
	}
	for _, f := range files {
		if strings.Contains(f, ".git") {
			t.Errorf("ignored path listed: %s", f)
		}
	}

	res = tool.Fn(context.Background(), map[string]any{"directory": "nope"})
	if res.Success {
		t.Error("listing a missing directory succeeded")
	}
}

func TestListFilesHonorsGitignore(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, ".gitignore", "*.log\n")
	writeTestFile(t, dir, "keep.txt", "k")
	writeTestFile(t, dir, "noise.log", "n")
	tool := NewListFilesTool(NewRoot(dir))

	res := tool.Fn(context.Background(), map[string]any{"directory": ".", "recursive": true})
	files := res.Data.([]string)
	for _, f := range files {
		if strings.HasSuffix(f, ".log") {
			t.Errorf("gitignored file listed: %s", f)
		}
	}
}

func TestSearchFilesTool(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "main.go", "")
	writeTestFile(t, dir, "sub/util.go", "")
	writeTestFile(t, dir, "sub/readme.md", "")
	tool := NewSearchFilesTool(NewRoot(dir))

	res := tool.Fn(context.Background(), map[string]any{"directory": ".", "pattern": ".go"})
	if !res.Success {
		t.Fatalf("search failed: %s", res.Message)
	}
	if matches := res.Data.([]string); len(matches) != 2 {
		t.Errorf("recursive matches = %v", matches)
	}

	res = tool.Fn(context.Background(), map[string]any{
		"directory": "sub",
		"pattern":   "*.md",
		"recursive": false,
	})
	if matches := res.Data.([]string); len(matches) != 1 {
		t.Errorf("glob matches = %v", matches)
	}
}

package walker

import (
	"os"
	"path/filepath"
	"testing"
)

// lessonDir builds a small lesson tree in a temp directory.
func lessonDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	write := func(rel, content string) {
		t.Helper()
		path := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	write("lesson1.md", "# Present Tense\n\nNotes.")
	write("unit2/lesson2.txt", "Vocabulary list.")
	write("unit2/drafts/scratch.markdown", "Draft notes.")
	write("notes.docx", "not a lesson format")
	write("node_modules/pkg/readme.md", "dependency noise")
	write(".git/config", "[core]")
	return dir
}

func TestWalkDefaultIncludes(t *testing.T) {
	files, err := Walk(Config{RootDir: lessonDir(t)})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}

	got := map[string]bool{}
	for _, f := range files {
		got[f.RelPath] = true
	}

	for _, want := range []string{"lesson1.md", "unit2/lesson2.txt", "unit2/drafts/scratch.markdown"} {
		if !got[want] {
			t.Errorf("missing %s in %v", want, got)
		}
	}
	if got["notes.docx"] {
		t.Error("docx should not match default includes")
	}
	if got["node_modules/pkg/readme.md"] {
		t.Error("node_modules should be excluded")
	}
}

func TestWalkExcludePatterns(t *testing.T) {
	files, err := Walk(Config{RootDir: lessonDir(t), Exclude: []string{"**/drafts/**"}})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	for _, f := range files {
		if f.RelPath == "unit2/drafts/scratch.markdown" {
			t.Error("drafts should be excluded")
		}
	}
}

func TestWalkRecordsHashAndSize(t *testing.T) {
	files, err := Walk(Config{RootDir: lessonDir(t), Include: []string{"lesson1.md"}})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("expected 1 file, got %d", len(files))
	}
	f := files[0]
	if f.Size == 0 || len(f.ContentHash) != 64 {
		t.Errorf("unexpected metadata %+v", f)
	}
	if !filepath.IsAbs(f.Path) {
		t.Errorf("expected absolute path, got %s", f.Path)
	}
}

func TestWalkRespectsGitignore(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, ".gitignore"), []byte("ignored.md\n"), 0o644)
	os.WriteFile(filepath.Join(dir, "ignored.md"), []byte("x"), 0o644)
	os.WriteFile(filepath.Join(dir, "kept.md"), []byte("y"), 0o644)

	files, err := Walk(Config{RootDir: dir})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if len(files) != 1 || files[0].RelPath != "kept.md" {
		t.Errorf("unexpected files %+v", files)
	}
}

func TestWalkSkipsBinaryAndOversized(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "binary.md"), []byte{0x00, 0x01, 0x02}, 0o644)
	big := make([]byte, 64)
	for i := range big {
		big[i] = 'a'
	}
	os.WriteFile(filepath.Join(dir, "big.md"), big, 0o644)
	os.WriteFile(filepath.Join(dir, "small.md"), []byte("ok"), 0o644)

	files, err := Walk(Config{RootDir: dir, MaxFileSize: 32})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if len(files) != 1 || files[0].RelPath != "small.md" {
		t.Errorf("unexpected files %+v", files)
	}
}

func TestMatchesIncludeExclude(t *testing.T) {
	if !MatchesInclude("a/b/lesson.md", []string{"**/*.md"}) {
		t.Error("doublestar include should match nested path")
	}
	if MatchesInclude("a/b/lesson.md", []string{"*.txt"}) {
		t.Error("include should not match wrong extension")
	}
	if !MatchesExclude("drafts/x.md", []string{"drafts/**"}) {
		t.Error("exclude should match directory glob")
	}
	if MatchesExclude("x.md", nil) {
		t.Error("empty excludes match nothing")
	}
}

package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hyperjump/principia/internal/indexer"
)

type fakeCorpus struct {
	mu       sync.Mutex
	imported []string
	removed  []string
}

func (c *fakeCorpus) Supports(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".txt" || ext == ".md"
}

func (c *fakeCorpus) ImportFile(_ context.Context, path string) (*indexer.IngestStats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.imported = append(c.imported, path)
	return &indexer.IngestStats{Articles: 1, Chunks: 1}, nil
}

func (c *fakeCorpus) RemoveSource(_ context.Context, path string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removed = append(c.removed, path)
	return 1, nil
}

func (c *fakeCorpus) snapshot() (imported, removed []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.imported...), append([]string(nil), c.removed...)
}

func startWatcher(t *testing.T, root string, corpus Corpus) *Watcher {
	t.Helper()
	w := NewWatcher([]string{root}, corpus, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		w.Stop()
		cancel()
	})
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	return w
}

func waitFor(t *testing.T, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(20 * time.Millisecond)
	}
	return cond()
}

func containsSuffix(paths []string, suffix string) bool {
	for _, p := range paths {
		if strings.HasSuffix(p, suffix) {
			return true
		}
	}
	return false
}

func TestWatcher_Directories(t *testing.T) {
	dir := t.TempDir()
	w := NewWatcher([]string{dir}, &fakeCorpus{})
	dirs := w.Directories()
	if len(dirs) != 1 || dirs[0] != filepath.Clean(dir) {
		t.Errorf("Directories() = %v", dirs)
	}
}

func TestWatcher_DebounceAndExtensionFilter(t *testing.T) {
	dir := t.TempDir()
	corpus := &fakeCorpus{}
	startWatcher(t, dir, corpus)

	path := filepath.Join(dir, "principia.txt")
	for i := 0; i < 3; i++ {
		if err := writeFile(path, strings.Repeat("Newton. ", i+1)); err != nil {
			t.Fatal(err)
		}
	}
	if err := writeFile(filepath.Join(dir, "ignore.xyz"), "x"); err != nil {
		t.Fatal(err)
	}

	ok := waitFor(t, func() bool {
		imported, _ := corpus.snapshot()
		return len(imported) > 0
	})
	if !ok {
		t.Fatal("expected principia.txt to be imported")
	}
	time.Sleep(200 * time.Millisecond)
	imported, _ := corpus.snapshot()
	if len(imported) != 1 {
		t.Errorf("expected writes to collapse into one import, got %v", imported)
	}
	if containsSuffix(imported, "ignore.xyz") {
		t.Error("ignore.xyz should not be imported")
	}
}

func TestWatcher_RemoveDeletesSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "optics.md")
	if err := writeFile(path, "Light is a stream of corpuscles."); err != nil {
		t.Fatal(err)
	}
	corpus := &fakeCorpus{}
	startWatcher(t, dir, corpus)

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	ok := waitFor(t, func() bool {
		_, removed := corpus.snapshot()
		return containsSuffix(removed, "optics.md")
	})
	if !ok {
		t.Error("expected optics.md to be removed from the corpus")
	}
}

func TestInDir(t *testing.T) {
	tests := []struct {
		dir  string
		path string
		want bool
	}{
		{"/tmp/a", "/tmp/a", true},
		{"/tmp/a", "/tmp/a/b.txt", true},
		{"/tmp/a", "/tmp/b", false},
		{"/tmp/a", "/tmp/a/../b", false},
		{"/tmp/a", "/tmp/a..b/c", true},
	}
	for _, tt := range tests {
		got := inDir(tt.dir, tt.path)
		if got != tt.want {
			t.Errorf("inDir(%q, %q) = %v, want %v", tt.dir, tt.path, got, tt.want)
		}
	}
}

func TestWatcher_Sync_importsSupportedFiles(t *testing.T) {
	dir := t.TempDir()
	if err := writeFile(filepath.Join(dir, "a.txt"), "hello"); err != nil {
		t.Fatal(err)
	}
	if err := mkdirAll(filepath.Join(dir, "nested")); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(dir, "nested", "b.md"), "world"); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(dir, "ignore.xyz"), "x"); err != nil {
		t.Fatal(err)
	}

	corpus := &fakeCorpus{}
	w := NewWatcher([]string{dir}, corpus)
	stats, err := w.Sync(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.Articles != 2 || stats.Chunks != 2 {
		t.Errorf("stats = %+v", stats)
	}
	imported, _ := corpus.snapshot()
	if len(imported) != 2 || !containsSuffix(imported, "a.txt") || !containsSuffix(imported, "b.md") {
		t.Errorf("imported = %v", imported)
	}
}

func TestWatcher_Sync_missingRoot(t *testing.T) {
	w := NewWatcher([]string{filepath.Join(t.TempDir(), "absent")}, &fakeCorpus{})
	stats, err := w.Sync(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.Articles != 0 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestWatcher_Start_createsMissingRootDirectory(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "watch", "me")
	startWatcher(t, root, &fakeCorpus{})

	if _, err := os.Stat(root); err != nil {
		t.Errorf("root directory should exist after Start: %v", err)
	}
}

func TestWatcher_NewDirectory_importsFilesInNewFolder(t *testing.T) {
	dir := t.TempDir()
	corpus := &fakeCorpus{}
	startWatcher(t, dir, corpus)

	newFolder := filepath.Join(dir, "new-folder")
	if err := mkdirAll(newFolder); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(newFolder, "doc1.txt"), "hello"); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(newFolder, "doc2.md"), "world"); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(newFolder, "ignore.xyz"), "skip"); err != nil {
		t.Fatal(err)
	}

	ok := waitFor(t, func() bool {
		imported, _ := corpus.snapshot()
		return containsSuffix(imported, "doc1.txt") && containsSuffix(imported, "doc2.md")
	})
	if !ok {
		imported, _ := corpus.snapshot()
		t.Errorf("expected doc1.txt and doc2.md to be imported, got %v", imported)
	}
	imported, _ := corpus.snapshot()
	if containsSuffix(imported, "ignore.xyz") {
		t.Error("ignore.xyz should not be imported")
	}
}

func TestWatcher_NewDirectory_recursiveSubfolders(t *testing.T) {
	dir := t.TempDir()
	corpus := &fakeCorpus{}
	startWatcher(t, dir, corpus)

	nested := filepath.Join(dir, "level1", "level2")
	if err := mkdirAll(nested); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(nested, "deep.txt"), "deep content"); err != nil {
		t.Fatal(err)
	}

	ok := waitFor(t, func() bool {
		imported, _ := corpus.snapshot()
		return containsSuffix(imported, "deep.txt")
	})
	if !ok {
		imported, _ := corpus.snapshot()
		t.Errorf("expected deep.txt to be imported, got %v", imported)
	}
}

func mkdirAll(path string) error {
	return os.MkdirAll(path, 0755)
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0600)
}

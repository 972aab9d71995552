package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/chazu/leap/leap"
)

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[project]
name = "loops"
version = "0.1.0"

[source]
dirs = ["src", "lib"]
entry = "main"

[limits]
max-labels = 4
max-gotos = 2

[debug]
trace = true

[cache]
path = "rewrites.db"

[server]
addr = ":9000"

[image]
output = "loops.img"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Project.Name != "loops" {
		t.Errorf("project name = %q, want loops", m.Project.Name)
	}
	if m.Project.Version != "0.1.0" {
		t.Errorf("project version = %q, want 0.1.0", m.Project.Version)
	}
	if len(m.Source.Dirs) != 2 {
		t.Errorf("source dirs count = %d, want 2", len(m.Source.Dirs))
	}
	if m.Source.Entry != "main" {
		t.Errorf("source entry = %q, want main", m.Source.Entry)
	}
	if m.Limits.MaxLabels != 4 || m.Limits.MaxGotos != 2 {
		t.Errorf("limits = %+v, want 4/2", m.Limits)
	}
	if !m.Debug.Trace {
		t.Error("debug trace = false, want true")
	}
	if m.Server.Addr != ":9000" {
		t.Errorf("server addr = %q, want :9000", m.Server.Addr)
	}
	if got, want := m.CachePath(), filepath.Join(m.Dir, "rewrites.db"); got != want {
		t.Errorf("CachePath() = %q, want %q", got, want)
	}
	if got, want := m.ImagePath(), filepath.Join(m.Dir, "loops.img"); got != want {
		t.Errorf("ImagePath() = %q, want %q", got, want)
	}
}

func TestLoadManifestDefaults(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[project]
name = "minimal"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(m.Source.Dirs) != 1 || m.Source.Dirs[0] != DefaultSourceDir {
		t.Errorf("source dirs = %v, want [%s]", m.Source.Dirs, DefaultSourceDir)
	}
	if m.Cache.Path != DefaultCachePath {
		t.Errorf("cache path = %q, want %q", m.Cache.Path, DefaultCachePath)
	}
	if m.Server.Addr != DefaultServerAddr {
		t.Errorf("server addr = %q, want %q", m.Server.Addr, DefaultServerAddr)
	}
	if got, want := m.ImagePath(), filepath.Join(m.Dir, "minimal.leapc"); got != want {
		t.Errorf("ImagePath() = %q, want %q", got, want)
	}

	cfg := leap.NewConfig(m.Options()...)
	if cfg.MaxLabels != leap.DefaultMaxLabels || cfg.MaxGotos != leap.DefaultMaxGotos {
		t.Errorf("caps = %d/%d, want defaults", cfg.MaxLabels, cfg.MaxGotos)
	}
	if cfg.Debug {
		t.Error("debug = true, want false")
	}
}

func TestManifestOptions(t *testing.T) {
	m := &Manifest{
		Limits: Limits{MaxLabels: 3, MaxGotos: 1},
		Debug:  Debug{Trace: true},
	}
	cfg := leap.NewConfig(m.Options()...)
	if cfg.MaxLabels != 3 {
		t.Errorf("MaxLabels = %d, want 3", cfg.MaxLabels)
	}
	if cfg.MaxGotos != 1 {
		t.Errorf("MaxGotos = %d, want 1", cfg.MaxGotos)
	}
	if !cfg.Debug {
		t.Error("Debug = false, want true")
	}

	// Later options override the manifest.
	cfg = leap.NewConfig(append(m.Options(), leap.WithMaxLabels(7))...)
	if cfg.MaxLabels != 7 {
		t.Errorf("MaxLabels = %d, want 7", cfg.MaxLabels)
	}
}

func TestLoadManifestErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"syntax", "[project\nname = 1"},
		{"negative limit", "[limits]\nmax-labels = -1"},
		{"wrong type", "[limits]\nmax-gotos = \"many\""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeManifest(t, dir, tt.content)
			if _, err := Load(dir); err == nil {
				t.Error("expected error")
			}
		})
	}

	if _, err := Load(t.TempDir()); err == nil {
		t.Error("expected error for missing manifest")
	}
}

func TestCacheDisabled(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "[cache]\ndisabled = true\n")
	m, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if p := m.CachePath(); p != "" {
		t.Errorf("CachePath() = %q, want empty", p)
	}
}

func TestFindAndLoad(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "[project]\nname = \"root-project\"\n")

	subDir := filepath.Join(root, "src", "deep")
	if err := os.MkdirAll(subDir, 0755); err != nil {
		t.Fatal(err)
	}

	m, err := FindAndLoad(subDir)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m == nil {
		t.Fatal("FindAndLoad returned nil")
	}
	if m.Project.Name != "root-project" {
		t.Errorf("project name = %q, want root-project", m.Project.Name)
	}
}

func TestFindAndLoadNoManifest(t *testing.T) {
	m, err := FindAndLoad(t.TempDir())
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m != nil {
		t.Error("expected nil manifest")
	}
}

func TestSourceFiles(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "[source]\ndirs = [\"src\"]\n")
	for _, name := range []string{"src/b.leap", "src/a.leap", "src/nested/c.leap", "src/notes.txt"} {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, nil, 0644); err != nil {
			t.Fatal(err)
		}
	}

	m, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	files, err := m.SourceFiles()
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		filepath.Join(m.Dir, "src", "a.leap"),
		filepath.Join(m.Dir, "src", "b.leap"),
		filepath.Join(m.Dir, "src", "nested", "c.leap"),
	}
	if len(files) != len(want) {
		t.Fatalf("files = %v, want %v", files, want)
	}
	for i := range want {
		if files[i] != want[i] {
			t.Errorf("files[%d] = %q, want %q", i, files[i], want[i])
		}
	}
}

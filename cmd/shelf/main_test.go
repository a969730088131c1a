package main

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/puzzlepages/shelf/internal/config"
	"github.com/puzzlepages/shelf/internal/library"
	"github.com/puzzlepages/shelf/internal/models"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{config.EnvMode, config.EnvContentDir, config.EnvPort} {
		t.Setenv(k, "")
	}
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(origWd) })
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
}

func TestSearchArgsReorder(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{"flags after query are moved first", []string{"poetry", "-limit", "3"}, []string{"-limit", "3", "poetry"}},
		{"flags first returns unchanged", []string{"-limit", "3", "poetry"}, []string{"-limit", "3", "poetry"}},
		{"query only returns unchanged", []string{"poetry"}, []string{"poetry"}},
		{"empty args returns unchanged", []string{}, []string{}},
		{"bool flag takes no value", []string{"kids", "-debug", "books"}, []string{"-debug", "kids", "books"}},
		{"inline value", []string{"kids", "-format=json"}, []string{"-format=json", "kids"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := searchArgsReorder(tt.args)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("searchArgsReorder() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestBuildSearchQuery(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{"single word", []string{"poetry"}, "poetry"},
		{"multiple words", []string{"corner", "shelf"}, "corner shelf"},
		{"empty args", []string{}, ""},
		{"blank args", []string{"  ", "  "}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buildSearchQuery(tt.args); got != tt.expected {
				t.Errorf("buildSearchQuery(%v) = %q, want %q", tt.args, got, tt.expected)
			}
		})
	}
}

func TestLoadConfig_prefersCwdConfigWhenDefaultPath(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("debug: true\nserver:\n  port: 9001\n"), 0600); err != nil {
		t.Fatal(err)
	}
	chdir(t, dir)

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	// On macOS, cwd can be /private/var/... while t.TempDir() is /var/...; compare canonical paths.
	resolvedCanon, _ := filepath.EvalSymlinks(resolved)
	configPathCanon, _ := filepath.EvalSymlinks(configPath)
	if resolvedCanon != configPathCanon {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if !cfg.Debug || cfg.Server.Port != 9001 {
		t.Errorf("unexpected config: debug=%v port=%d", cfg.Debug, cfg.Server.Port)
	}
}

func TestLoadConfig_defaultsWhenAbsent(t *testing.T) {
	clearEnv(t)
	chdir(t, t.TempDir())

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != "" {
		t.Errorf("resolved = %q, want empty", resolved)
	}
	if cfg.Mode != config.ModeProduction || cfg.Server.Port != 8080 {
		t.Errorf("unexpected defaults: mode=%s port=%d", cfg.Mode, cfg.Server.Port)
	}
}

func TestLoadConfig_usesExplicitPath(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	configPath := filepath.Join(dir, "shelf.yaml")
	if err := os.WriteFile(configPath, []byte("server:\n  host: \"127.0.0.1\"\n  port: 9000\n"), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != configPath {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
}

func TestInitializeComponents(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	lib := filepath.Join(dir, "content", "libraries", "corner")
	if err := os.MkdirAll(lib, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(lib, "index.md"), []byte("---\nlibrary_id: 7\ntitle: Corner Shelf\n---\nPoetry and maps.\n"), 0644); err != nil {
		t.Fatal(err)
	}
	configPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("storage:\n  database_path: ./data/test.db\n"), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		t.Fatal(err)
	}

	components, err := initializeComponents(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer components.Close()

	ctx := context.Background()
	res, err := components.Indexer.IndexAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.Indexed != 1 {
		t.Errorf("indexed = %d, want 1", res.Indexed)
	}

	recs, source := components.Library.ListRecords(ctx)
	if source != library.SourcePrimary || len(recs) != 1 || recs[0].LibraryID != "00007" {
		t.Errorf("ListRecords = %+v from %s", recs, source)
	}

	resp, err := components.Library.Search(ctx, &models.SearchQuery{Query: "poetry"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Total != 1 || resp.Results[0].Library.Slug != "corner-shelf" {
		t.Errorf("search = %+v", resp)
	}
}

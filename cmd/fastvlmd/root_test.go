package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/spf13/pflag"

	"fastvlmd/internal/config"
	"fastvlmd/pkg/types"
)

func TestSplitCSV(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"a,b,c", []string{"a", "b", "c"}},
		{" a , b , c ", []string{"a", "b", "c"}},
		{"a,,c", []string{"a", "c"}},
		{"", nil},
	}
	for _, c := range cases {
		got := splitCSV(c.in)
		if len(got) != len(c.want) {
			t.Fatalf("%q -> %v, want %v", c.in, got, c.want)
		}
		for i := range got {
			if got[i] != c.want[i] {
				t.Fatalf("%q -> %v, want %v", c.in, got, c.want)
			}
		}
	}
}

func envMap(m map[string]string) config.LookupFunc {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestResolveConfig_Precedence(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "fastvlmd.yaml")
	if err := os.WriteFile(file, []byte("port: 4000\nmax_new_tokens: 64\ntemperature: 0.5\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	g := &globalOpts{configFile: file, logLevel: "DEBUG"}
	env := envMap(map[string]string{"FASTVLM_PORT": "4001", "MAX_NEW_TOKENS": "128", "FASTVLM_ANALYZE_TIMEOUT": "30"})

	newFlags := func(args ...string) (*serverFlags, *pflag.FlagSet) {
		f := &serverFlags{}
		fs := pflag.NewFlagSet("serve", pflag.ContinueOnError)
		f.register(fs)
		if err := fs.Parse(args); err != nil {
			t.Fatalf("parse flags: %v", err)
		}
		return f, fs
	}

	f, fs := newFlags()
	cfg, err := resolveConfig(g, env, func(c *config.Config) { f.apply(fs, c) })
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.Port != 4001 || cfg.MaxNewTokens != 128 || cfg.Temperature != 0.5 || cfg.LogLevel != "DEBUG" {
		t.Fatalf("env should override file: %+v", cfg)
	}
	if cfg.AnalyzeTimeoutSeconds != 30 {
		t.Fatalf("analyze timeout from env=%d", cfg.AnalyzeTimeoutSeconds)
	}
	if cfg.OllamaModel != config.Default().OllamaModel {
		t.Fatalf("unset flag overrode default: %q", cfg.OllamaModel)
	}

	f, fs = newFlags("--port", "4002", "--cors-origins", "http://a, http://b", "--analyze-timeout", "45")
	cfg, err = resolveConfig(g, env, func(c *config.Config) { f.apply(fs, c) })
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.Port != 4002 || cfg.AnalyzeTimeoutSeconds != 45 {
		t.Fatalf("flag should override env: port=%d analyze_timeout=%d", cfg.Port, cfg.AnalyzeTimeoutSeconds)
	}
	if !reflect.DeepEqual(cfg.CORSOrigins, []string{"http://a", "http://b"}) {
		t.Fatalf("cors origins=%v", cfg.CORSOrigins)
	}
}

func TestResolveConfig_ValidationError(t *testing.T) {
	_, err := resolveConfig(&globalOpts{}, envMap(map[string]string{"FASTVLM_BACKEND": "nope"}), nil)
	if err == nil || !strings.Contains(err.Error(), "unknown backend") {
		t.Fatalf("expected backend error, got %v", err)
	}
}

func TestResolvePromptFile(t *testing.T) {
	if got := resolvePromptFile(""); got != "" {
		t.Fatalf("empty -> %q", got)
	}
	abs := filepath.Join(t.TempDir(), "prompt.md")
	if got := resolvePromptFile(abs); got != abs {
		t.Fatalf("abs -> %q", got)
	}
	exe, err := os.Executable()
	if err != nil {
		t.Skip("no executable path")
	}
	want := filepath.Join(filepath.Dir(exe), "missing-prompt-file.md")
	if got := resolvePromptFile("missing-prompt-file.md"); got != want {
		t.Fatalf("relative missing -> %q, want %q", got, want)
	}
}

func TestPrintDescription(t *testing.T) {
	var buf bytes.Buffer
	printDescription(&buf, types.AnalyzeResponse{
		Analysis:    "A blue denim jacket.",
		Translation: "Синяя джинсовая куртка.",
		Device:      "cpu",
		ModelUsed:   "qwen2",
		Garment:     &types.Garment{ClassName: "jacket", ClassNameRu: "Куртка"},
		DurationMS:  1500,
	}, true)
	out := buf.String()
	for _, want := range []string{"A blue denim jacket.", "Синяя джинсовая куртка.", "Garment: jacket (Куртка)", "Generation time: 1.50 seconds"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}

	buf.Reset()
	printDescription(&buf, types.AnalyzeResponse{Analysis: "x"}, false)
	if strings.Contains(buf.String(), "(RU)") {
		t.Fatalf("translation section printed without translation: %q", buf.String())
	}
}

func TestClientAnalyzeCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			_ = json.NewEncoder(w).Encode(types.HealthResponse{Status: "healthy", ModelLoaded: true})
		case "/analyze":
			_ = json.NewEncoder(w).Encode(types.AnalyzeResponse{Success: true, Analysis: "A white shirt.", Device: "cpu", ModelUsed: "qwen2"})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	img := filepath.Join(t.TempDir(), "1.jpg")
	if err := os.WriteFile(img, []byte("jpeg"), 0o644); err != nil {
		t.Fatal(err)
	}

	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs([]string{"client", "analyze", "--server", srv.URL, img})
	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v (stderr %s)", err, errOut.String())
	}
	if !strings.Contains(out.String(), "A white shirt.") || !strings.Contains(out.String(), "Model: qwen2") {
		t.Fatalf("unexpected output: %q", out.String())
	}
}

func TestClientHealthCommand_ServerDown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"client", "health", "--server", url})
	if err := root.Execute(); err == nil || !strings.Contains(err.Error(), "server unavailable") {
		t.Fatalf("expected server unavailable, got %v", err)
	}
}

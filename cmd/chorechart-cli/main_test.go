package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	chorechart "github.com/Rorschach3/chore-chart"
	"github.com/Rorschach3/chore-chart/internal/requestlog"
	"github.com/Rorschach3/chore-chart/providers"
)

type echoGenerator struct{}

func (echoGenerator) Name() string { return "echo" }

func (echoGenerator) Generate(_ context.Context, prompt string) (string, error) {
	return "echo: " + prompt, nil
}

func init() {
	providers.Register("echo", func(context.Context, providers.Settings) (providers.Generator, error) {
		return echoGenerator{}, nil
	})
}

func envFrom(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func execute(t *testing.T, env map[string]string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd(envFrom(env))
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestValidate_ValidConfig(t *testing.T) {
	path := writeFile(t, "config.yaml", `
upstream:
  backend: openai
  model: gpt-4o-mini
cache:
  ttl: 30m
rate_limit:
  enabled: true
  requests_per_second: 2
  burst: 4
`)
	out, err := execute(t, nil, "validate", path)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	for _, want := range []string{"Config is valid", "Backend:     openai", "Cache TTL:   30m0s", "2 req/s", "Request log: none", "Admin API:   disabled"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestValidate_InvalidConfig(t *testing.T) {
	path := writeFile(t, "config.json", `{"upstream":{"backend":"nope"}}`)
	_, err := execute(t, nil, "validate", path)
	if err == nil || !strings.Contains(err.Error(), "unknown upstream backend") {
		t.Errorf("err = %v, want unknown backend error", err)
	}
}

func TestValidate_RequiresPath(t *testing.T) {
	_, err := execute(t, nil, "validate")
	if !errors.Is(err, errUsage) {
		t.Errorf("err = %v, want usage error", err)
	}
}

func TestAsk_PrintsEnvelope(t *testing.T) {
	out, err := execute(t, nil, "ask", "--backend", "echo", "How", "do", "I", "mop?")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	var env chorechart.Envelope
	if err := json.Unmarshal([]byte(out), &env); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if env.GeneratedText != "echo: How do I mop?" {
		t.Errorf("generatedText = %q", env.GeneratedText)
	}
}

func TestAsk_MissingKeyIsFault(t *testing.T) {
	out, err := execute(t, nil, "ask", "hello")
	if !errors.Is(err, errFaultReply) {
		t.Fatalf("err = %v, want fault reply", err)
	}
	var env chorechart.Envelope
	if err := json.Unmarshal([]byte(out), &env); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if env.Error != "OPENAI_API_KEY is not set in the environment variables" {
		t.Errorf("error = %q", env.Error)
	}
}

func TestAsk_RequiresPrompt(t *testing.T) {
	_, err := execute(t, nil, "ask")
	if !errors.Is(err, errUsage) {
		t.Errorf("err = %v, want usage error", err)
	}
}

func TestBackends(t *testing.T) {
	out, err := execute(t, nil, "backends")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"openai (default)", "bedrock", "echo"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestVersion(t *testing.T) {
	out, err := execute(t, nil, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "chorechart-cli ") {
		t.Errorf("output = %q", out)
	}
}

func TestLogs_ListAndPrune(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "requests.db")
	store, err := requestlog.Open(requestlog.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	ctx := context.Background()
	old := time.Now().Add(-48 * time.Hour)
	for _, e := range []requestlog.Entry{
		{Outcome: "success", Backend: "openai", CreatedAt: old},
		{Outcome: "degraded", Reason: "quota_exceeded", Backend: "openai"},
	} {
		if err := store.Write(ctx, e); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	_ = store.Close()

	env := map[string]string{"REQUEST_LOG_DRIVER": "sqlite", "REQUEST_LOG_DSN": dsn}

	out, err := execute(t, env, "logs", "list")
	if err != nil {
		t.Fatalf("logs list: %v", err)
	}
	var page requestlog.ListResult
	if err := json.Unmarshal([]byte(out), &page); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if page.Total != 2 {
		t.Errorf("total = %d, want 2", page.Total)
	}

	out, err = execute(t, env, "logs", "prune", "--older-than", "24h")
	if err != nil {
		t.Fatalf("logs prune: %v", err)
	}
	if !strings.Contains(out, "Deleted 1 entries") {
		t.Errorf("output = %q", out)
	}

	out, err = execute(t, env, "logs", "list", "--outcome", "degraded")
	if err != nil {
		t.Fatalf("logs list: %v", err)
	}
	page = requestlog.ListResult{}
	if err := json.Unmarshal([]byte(out), &page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if page.Total != 1 || page.Data[0].Reason != "quota_exceeded" {
		t.Errorf("page = %+v", page)
	}
}

func TestLogs_DisabledStore(t *testing.T) {
	_, err := execute(t, nil, "logs", "list")
	if !errors.Is(err, errUsage) {
		t.Errorf("err = %v, want usage error", err)
	}
}

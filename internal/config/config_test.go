package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
databaseURL: postgres://localhost/personify
jwtSecret: super-secret
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "5000" {
		t.Fatalf("port = %q", cfg.Port)
	}
	if cfg.ImageModel != "dall-e-3" || cfg.TextModel != "gpt-4" {
		t.Fatalf("models = %q / %q", cfg.ImageModel, cfg.TextModel)
	}
	if cfg.ImageDailyLimit != 10 || cfg.TextDailyLimit != 50 {
		t.Fatalf("limits = %d / %d", cfg.ImageDailyLimit, cfg.TextDailyLimit)
	}
	if cfg.UploadDir != "uploads" || cfg.StorageBackend != "file" {
		t.Fatalf("storage = %q / %q", cfg.UploadDir, cfg.StorageBackend)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
databaseURL: postgres://localhost/personify
jwtSecret: super-secret
port: "5000"
`)
	t.Setenv("PORT", "8080")
	t.Setenv("IMAGE_DAILY_LIMIT", "3")
	t.Setenv("OPENAI_API_KEY", "sk-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("port = %q, want env override", cfg.Port)
	}
	if cfg.ImageDailyLimit != 3 {
		t.Fatalf("imageDailyLimit = %d", cfg.ImageDailyLimit)
	}
	if cfg.OpenAIAPIKey != "sk-env" {
		t.Fatalf("apiKey = %q", cfg.OpenAIAPIKey)
	}
}

func TestLoadValidation(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{
			name:    "missing database url",
			content: "jwtSecret: s\n",
		},
		{
			name:    "missing jwt secret",
			content: "databaseURL: postgres://localhost/p\n",
		},
		{
			name: "unknown storage backend",
			content: `
databaseURL: postgres://localhost/p
jwtSecret: s
storageBackend: tape
`,
		},
		{
			name: "minio without endpoint",
			content: `
databaseURL: postgres://localhost/p
jwtSecret: s
storageBackend: minio
`,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, tc.content)
			if _, err := Load(path); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestParseSessionTTL(t *testing.T) {
	d, err := ParseSessionTTL("")
	if err != nil || d != 0 {
		t.Fatalf("empty ttl: d=%v err=%v", d, err)
	}
	d, err = ParseSessionTTL("168h")
	if err != nil || d != 168*time.Hour {
		t.Fatalf("168h ttl: d=%v err=%v", d, err)
	}
	if _, err := ParseSessionTTL("one week"); err == nil {
		t.Fatal("expected parse error")
	}
}

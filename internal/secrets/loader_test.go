package secrets

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(path, []byte("  s3cret\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	secret, err := Load(Source{Name: "api token", File: path, Value: "ignored"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if secret != "s3cret" {
		t.Errorf("secret: got %q, want trimmed file contents", secret)
	}
}

func TestLoadPrecedence(t *testing.T) {
	t.Setenv("TEST_SECRET_ENV", "from-env")

	secret, err := Load(Source{Name: "api token", Value: "from-value", Env: "TEST_SECRET_ENV"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if secret != "from-value" {
		t.Errorf("value should beat env: got %q", secret)
	}

	secret, err = Load(Source{Name: "api token", Env: "TEST_SECRET_ENV"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if secret != "from-env" {
		t.Errorf("env fallback: got %q", secret)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(Source{Name: "api token"}); err == nil {
		t.Error("empty source should fail")
	}

	empty := filepath.Join(t.TempDir(), "empty")
	if err := os.WriteFile(empty, []byte("  \n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(Source{Name: "api token", File: empty}); err == nil {
		t.Error("empty file should fail")
	}

	if _, err := Load(Source{Name: "api token", File: filepath.Join(t.TempDir(), "missing")}); err == nil {
		t.Error("missing file should fail")
	}
}

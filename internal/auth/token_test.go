package auth

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolveToken_Literal(t *testing.T) {
	tok, err := ResolveToken("tok-abc123")
	if err != nil {
		t.Fatalf("ResolveToken failed: %v", err)
	}
	if tok != "tok-abc123" {
		t.Errorf("token = %q, want %q", tok, "tok-abc123")
	}
}

func TestResolveToken_EmptySpec(t *testing.T) {
	tok, err := ResolveToken("")
	if err != nil {
		t.Fatalf("ResolveToken failed: %v", err)
	}
	if tok != "" {
		t.Errorf("token = %q, want empty", tok)
	}
}

func TestResolveToken_Env(t *testing.T) {
	t.Setenv("TEST_ATELIER_TOKEN", "tok-from-env")

	tok, err := ResolveToken("env:TEST_ATELIER_TOKEN")
	if err != nil {
		t.Fatalf("ResolveToken failed: %v", err)
	}
	if tok != "tok-from-env" {
		t.Errorf("token = %q, want %q", tok, "tok-from-env")
	}
}

func TestResolveToken_EnvMissing(t *testing.T) {
	_, err := ResolveToken("env:TEST_ATELIER_TOKEN_UNSET")
	if err == nil {
		t.Error("expected error for unset environment variable")
	}
}

func TestResolveToken_EnvUnnamed(t *testing.T) {
	_, err := ResolveToken("env:")
	if err == nil {
		t.Error("expected error for empty variable name")
	}
}

func TestResolveToken_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(path, []byte("  tok-from-file\n"), 0600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	tok, err := ResolveToken("file:" + path)
	if err != nil {
		t.Fatalf("ResolveToken failed: %v", err)
	}
	if tok != "tok-from-file" {
		t.Errorf("token = %q, want trimmed %q", tok, "tok-from-file")
	}
}

func TestResolveToken_FileMissing(t *testing.T) {
	_, err := ResolveToken("file:/nonexistent/token")
	if err == nil {
		t.Error("expected error for missing file")
	}
}

func TestResolveToken_FileEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(path, []byte("\n  \n"), 0600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	_, err := ResolveToken("file:" + path)
	if err == nil {
		t.Error("expected error for empty token file")
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestStringAndRequired(t *testing.T) {
	t.Setenv("CLUB_TEST_STR", "  value ")
	if got := String("CLUB_TEST_STR", "x"); got != "value" {
		t.Fatalf("expected trimmed value, got %q", got)
	}
	if got := String("CLUB_TEST_MISSING", "fallback"); got != "fallback" {
		t.Fatalf("expected fallback, got %q", got)
	}
	if _, err := RequiredString("CLUB_TEST_MISSING"); err == nil {
		t.Fatal("expected error for missing required value")
	}
}

func TestPort(t *testing.T) {
	t.Setenv("CLUB_TEST_PORT", "70000")
	if _, err := Port("CLUB_TEST_PORT", "8080"); err == nil {
		t.Fatal("expected out-of-range port to fail")
	}
	if p, err := Port("CLUB_TEST_PORT_UNSET", "8083"); err != nil || p != "8083" {
		t.Fatalf("expected fallback port, got %q %v", p, err)
	}
}

func TestIntDurationBool(t *testing.T) {
	t.Setenv("CLUB_TEST_INT", "25")
	t.Setenv("CLUB_TEST_BAD_INT", "many")
	t.Setenv("CLUB_TEST_DUR", "20m")
	t.Setenv("CLUB_TEST_NEG_DUR", "-1s")
	t.Setenv("CLUB_TEST_BOOL", "true")

	if n, err := Int("CLUB_TEST_INT", 1); err != nil || n != 25 {
		t.Fatalf("Int() = %d %v", n, err)
	}
	if _, err := Int("CLUB_TEST_BAD_INT", 1); err == nil {
		t.Fatal("expected parse error")
	}
	if d, err := Duration("CLUB_TEST_DUR", time.Minute); err != nil || d != 20*time.Minute {
		t.Fatalf("Duration() = %s %v", d, err)
	}
	if _, err := Duration("CLUB_TEST_NEG_DUR", time.Minute); err == nil {
		t.Fatal("expected negative duration to fail")
	}
	if d, _ := Duration("CLUB_TEST_DUR_UNSET", time.Minute); d != time.Minute {
		t.Fatalf("expected fallback duration, got %s", d)
	}
	if !Bool("CLUB_TEST_BOOL", false) || Bool("CLUB_TEST_BOOL_UNSET", false) {
		t.Fatal("unexpected Bool() result")
	}
}

func TestLoadDotenv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	if err := os.WriteFile(path, []byte("CLUB_DOTENV_A=from-file\nCLUB_DOTENV_B=from-file\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("CLUB_DOTENV_B", "from-process")
	t.Cleanup(func() { _ = os.Unsetenv("CLUB_DOTENV_A") })

	if err := LoadDotenv(path, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("LoadDotenv() error: %v", err)
	}
	if got := os.Getenv("CLUB_DOTENV_A"); got != "from-file" {
		t.Fatalf("expected value from file, got %q", got)
	}
	if got := os.Getenv("CLUB_DOTENV_B"); got != "from-process" {
		t.Fatalf("process environment must win, got %q", got)
	}
}

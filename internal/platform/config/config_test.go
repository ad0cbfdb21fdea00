package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestGetEnvInt(t *testing.T) {
	t.Setenv("TEST_INT", "42")
	if got := GetEnvInt("TEST_INT", 1); got != 42 {
		t.Errorf("GetEnvInt = %d, want 42", got)
	}
	t.Setenv("TEST_INT", "forty-two")
	if got := GetEnvInt("TEST_INT", 1); got != 1 {
		t.Errorf("GetEnvInt invalid = %d, want fallback 1", got)
	}
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("TEST_DURATION", "1500ms")
	if got := GetEnvDuration("TEST_DURATION", time.Second); got != 1500*time.Millisecond {
		t.Errorf("GetEnvDuration = %v, want 1.5s", got)
	}
	t.Setenv("TEST_DURATION", "soon")
	if got := GetEnvDuration("TEST_DURATION", time.Second); got != time.Second {
		t.Errorf("GetEnvDuration invalid = %v, want fallback", got)
	}
}

func TestGetEnvBool(t *testing.T) {
	t.Setenv("TEST_BOOL", "true")
	if !GetEnvBool("TEST_BOOL", false) {
		t.Error("GetEnvBool should parse true")
	}
	t.Setenv("TEST_BOOL", "maybe")
	if GetEnvBool("TEST_BOOL", false) {
		t.Error("GetEnvBool invalid should fall back")
	}
}

func TestGetEnvList(t *testing.T) {
	fallback := []string{"/cart"}
	tests := []struct {
		name  string
		value string
		want  []string
	}{
		{"unset", "", fallback},
		{"single", "/basket", []string{"/basket"}},
		{"trimmed", " /a , /b ,, ", []string{"/a", "/b"}},
		{"only_commas", ",,", fallback},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_LIST", tt.value)
			if got := GetEnvList("TEST_LIST", fallback); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("GetEnvList = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFromEnv_defaults(t *testing.T) {
	for _, key := range []string{"PORT", "DIRECTORY_TYPE", "FAILOVER_GRACE", "COUNTDOWN_INTERVAL", "LIVE_PAGE_PREFIX", "HIDDEN_ROUTES"} {
		t.Setenv(key, "")
	}
	s := FromEnv([]string{"/cart"})

	if s.Port != "8080" || s.DirectoryType != "http" {
		t.Errorf("unexpected defaults: %+v", s)
	}
	if s.FailoverGrace != 1500*time.Millisecond || s.CountdownInterval != time.Second {
		t.Errorf("unexpected timings: grace=%v interval=%v", s.FailoverGrace, s.CountdownInterval)
	}
	if s.LivePagePrefix != "/live" || !reflect.DeepEqual(s.HiddenRoutes, []string{"/cart"}) {
		t.Errorf("unexpected routes: prefix=%q hidden=%v", s.LivePagePrefix, s.HiddenRoutes)
	}
}

func TestFromEnv_overrides(t *testing.T) {
	t.Setenv("DIRECTORY_TYPE", "Redis")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("FAILOVER_GRACE", "2s")
	t.Setenv("HIDDEN_ROUTES", "/basket,/pay")

	s := FromEnv(nil)
	if s.DirectoryType != "redis" {
		t.Errorf("DirectoryType = %q, want redis", s.DirectoryType)
	}
	if s.RedisDB != 3 || s.FailoverGrace != 2*time.Second {
		t.Errorf("unexpected overrides: %+v", s)
	}
	if !reflect.DeepEqual(s.HiddenRoutes, []string{"/basket", "/pay"}) {
		t.Errorf("HiddenRoutes = %v", s.HiddenRoutes)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("LIVESTREAM_TEST_LOAD=from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LIVESTREAM_TEST_LOAD", "")
	os.Unsetenv("LIVESTREAM_TEST_LOAD")

	if err := Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := GetEnv("LIVESTREAM_TEST_LOAD", ""); got != "from-file" {
		t.Errorf("GetEnv = %q, want from-file", got)
	}
	if err := Load(filepath.Join(t.TempDir(), "missing.env")); err == nil {
		t.Error("Load of a missing file should fail")
	}
}

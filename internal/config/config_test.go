package config

import (
	"reflect"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "9000")

	cfg := Load()

	if cfg.Server.Port != "9000" {
		t.Errorf("Expected port 9000, got %s", cfg.Server.Port)
	}
	if cfg.Cache.PopularTTL != 30*time.Second {
		t.Errorf("Expected default popular TTL, got %v", cfg.Cache.PopularTTL)
	}
	if cfg.MongoDB.PoolSize == 0 {
		t.Error("Expected a non-zero default pool size")
	}
}

func TestSeparateDatabases(t *testing.T) {
	t.Setenv("MONGO_QUIZZES_DBNAME", "quiz_db")
	t.Setenv("MONGO_USERS_DBNAME", "user_db")

	cfg := Load()

	if cfg.MongoDB.QuizDatabase != "quiz_db" || cfg.MongoDB.UserDatabase != "user_db" {
		t.Errorf("Unexpected databases: %+v", cfg.MongoDB)
	}
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("T_INT", "42")
	t.Setenv("T_BAD_INT", "forty-two")
	t.Setenv("T_UINT", "7")
	t.Setenv("T_DURATION", "90s")
	t.Setenv("T_BAD_DURATION", "soon")
	t.Setenv("T_BOOL", "true")
	t.Setenv("T_BAD_BOOL", "maybe")

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"int", getEnvAsInt("T_INT", 1), 42},
		{"bad int falls back", getEnvAsInt("T_BAD_INT", 1), 1},
		{"missing int", getEnvAsInt("T_MISSING", 3), 3},
		{"uint64", getEnvAsUint64("T_UINT", 1), uint64(7)},
		{"duration", getEnvAsDuration("T_DURATION", time.Second), 90 * time.Second},
		{"bad duration falls back", getEnvAsDuration("T_BAD_DURATION", time.Second), time.Second},
		{"bool", getEnvAsBool("T_BOOL", false), true},
		{"bad bool falls back", getEnvAsBool("T_BAD_BOOL", false), false},
		{"string", getEnv("T_MISSING", "fallback"), "fallback"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, tt.got)
			}
		})
	}
}

func TestGetEnvAsSlice(t *testing.T) {
	t.Setenv("T_ORIGINS", " http://a.test , ,http://b.test")
	t.Setenv("T_EMPTY", " , ")

	if got := getEnvAsSlice("T_ORIGINS", nil); !reflect.DeepEqual(got, []string{"http://a.test", "http://b.test"}) {
		t.Errorf("Unexpected origins %v", got)
	}
	if got := getEnvAsSlice("T_EMPTY", []string{"x"}); !reflect.DeepEqual(got, []string{"x"}) {
		t.Errorf("Expected default for empty list, got %v", got)
	}
}

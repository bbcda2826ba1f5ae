package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fortuna/almanac/internal/roto"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"REST_PORT", "REFRESH_CONCURRENCY", "REFRESH_MIN_INTERVAL", "ROTO_TIE_MODE", "ROTO_CATEGORIES", "ENABLE_SCHEDULER", "VOCAB_FILE"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.RESTPort != "8080" || cfg.TieMode != roto.TieKeepOrder || !cfg.EnableScheduler {
		t.Fatalf("config = %+v", cfg)
	}
	if cfg.Refresh.Concurrency != 1 || cfg.Refresh.MinInterval != 50*time.Millisecond {
		t.Fatalf("refresh config = %+v", cfg.Refresh)
	}
	calc, err := cfg.Calculator()
	if err != nil || len(calc.Categories()) != 10 {
		t.Fatalf("calculator = %v, %v", calc, err)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("REFRESH_CONCURRENCY", "4")
	t.Setenv("REFRESH_MIN_INTERVAL", "200ms")
	t.Setenv("ROTO_TIE_MODE", "split")
	t.Setenv("ROTO_CATEGORIES", "R,HR,ERA")
	t.Setenv("ENABLE_SCHEDULER", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Refresh.Concurrency != 4 || cfg.Refresh.MinInterval != 200*time.Millisecond {
		t.Fatalf("refresh config = %+v", cfg.Refresh)
	}
	if cfg.TieMode != roto.TieSplit || len(cfg.Categories) != 3 || !cfg.Categories[2].LowerIsBetter || cfg.EnableScheduler {
		t.Fatalf("config = %+v", cfg)
	}
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	cases := map[string]string{
		"REFRESH_CONCURRENCY":  "many",
		"REFRESH_CALL_TIMEOUT": "10",
		"ROTO_TIE_MODE":        "coin-flip",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			if _, err := Load(); err == nil {
				t.Fatalf("%s=%s accepted", key, value)
			}
		})
	}
}

func TestVocabularyFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocab.json")
	if err := os.WriteFile(path, []byte(`{"team_aliases": [{"alias": "Zebras", "code": "zzz"}]}`), 0o644); err != nil {
		t.Fatal(err)
	}

	vocab, err := Config{VocabFile: path}.Vocabulary()
	if err != nil {
		t.Fatal(err)
	}
	if code, ok := vocab.MatchTeam("Zebras"); !ok || code != "ZZZ" {
		t.Fatalf("MatchTeam = %q, %v", code, ok)
	}

	if _, err := (Config{VocabFile: filepath.Join(t.TempDir(), "missing.json")}).Vocabulary(); err == nil {
		t.Fatal("missing vocabulary file accepted")
	}
}

func TestConfigureLogging(t *testing.T) {
	defer logrus.SetLevel(logrus.InfoLevel)
	defer logrus.SetFormatter(&logrus.TextFormatter{})

	if err := ConfigureLogging("debug", "json"); err != nil {
		t.Fatal(err)
	}
	if logrus.GetLevel() != logrus.DebugLevel {
		t.Fatalf("level = %s", logrus.GetLevel())
	}
	if err := ConfigureLogging("loud", "text"); err == nil {
		t.Fatal("bad level accepted")
	}
	if err := ConfigureLogging("info", "xml"); err == nil {
		t.Fatal("bad format accepted")
	}
}

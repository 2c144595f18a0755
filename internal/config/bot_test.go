package config

import "testing"

func TestLoadBotDefaults(t *testing.T) {
	t.Setenv("PARTICIPANT_ID", "priv-a")

	cfg, err := LoadBot()
	if err != nil {
		t.Fatalf("LoadBot() error = %v", err)
	}
	if cfg.ServerURL != "http://localhost:8080" {
		t.Fatalf("ServerURL = %q, want http://localhost:8080", cfg.ServerURL)
	}
	if cfg.StageID != "chips" {
		t.Fatalf("StageID = %q, want chips", cfg.StageID)
	}
}

func TestLoadBotRequiresParticipant(t *testing.T) {
	t.Setenv("PARTICIPANT_ID", "")
	if _, err := LoadBot(); err == nil {
		t.Fatal("LoadBot() expected error, got nil")
	}
}

func TestLoadBotOverrides(t *testing.T) {
	t.Setenv("SERVER_URL", "http://127.0.0.1:9000")
	t.Setenv("PARTICIPANT_ID", "priv-b")
	t.Setenv("PARTICIPANT_PUBLIC_ID", "pub-b")
	t.Setenv("COHORT_ID", "c9")

	cfg, err := LoadBot()
	if err != nil {
		t.Fatalf("LoadBot() error = %v", err)
	}
	if cfg.ServerURL != "http://127.0.0.1:9000" || cfg.CohortID != "c9" {
		t.Fatalf("unexpected bot config: %+v", cfg)
	}
	if cfg.ParticipantID != "priv-b" || cfg.ParticipantPublicID != "pub-b" {
		t.Fatalf("unexpected bot identity: %+v", cfg)
	}
}

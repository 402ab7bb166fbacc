package config

import "testing"

func TestLoad_ExpandsEnvAndDefaults(t *testing.T) {
	t.Setenv("RENTCAST_API_KEY", "test-key-123")
	t.Setenv("OLLAMA_HOST", "http://ollama:11434")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Provider.APIKey != "test-key-123" {
		t.Errorf("api key not expanded: %q", cfg.Provider.APIKey)
	}
	if cfg.Ollama.BaseURL != "http://ollama:11434" {
		t.Errorf("ollama host not expanded: %q", cfg.Ollama.BaseURL)
	}
	if cfg.Provider.TimeoutSeconds != 15 || cfg.Provider.MaxRetries != 2 {
		t.Errorf("provider defaults wrong: %+v", cfg.Provider)
	}
	if cfg.Comps.SizeTolerancePct != 30 || cfg.Comps.RecencyDays != 180 {
		t.Errorf("comps defaults wrong: %+v", cfg.Comps)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("port default wrong: %q", cfg.Server.Port)
	}
}

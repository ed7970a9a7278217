package config

import "testing"

func validConfig() Config {
	cfg := Config{
		HTTP:  HTTPConfig{Port: 8080},
		Redis: RedisConfig{Addrs: []string{"localhost:6379"}},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.HTTP.Port = 0

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_MissingRedisAddrs(t *testing.T) {
	cfg := validConfig()
	cfg.Redis.Addrs = nil

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing redis addrs")
	}
}

func TestValidate_OverlapNotSmallerThanSize(t *testing.T) {
	cfg := validConfig()
	cfg.Chunking.Size = 200
	cfg.Chunking.Overlap = 200

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for overlap >= size")
	}
}

func TestValidate_RetrievalBounds(t *testing.T) {
	cfg := validConfig()
	cfg.Retrieval.TopKPerKnowledge = 11
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for top_k_per_knowledge > 10")
	}

	cfg = validConfig()
	cfg.Retrieval.FinalTopK = 21
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for final_top_k > 20")
	}
}

func TestApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()

	if cfg.Chunking.Size != 1000 || cfg.Chunking.Overlap != 200 {
		t.Errorf("unexpected chunking defaults: %+v", cfg.Chunking)
	}
	if cfg.Embedding.Model != "text-embedding-3-small" {
		t.Errorf("unexpected embedding model default: %q", cfg.Embedding.Model)
	}
	if cfg.Completion.DefaultModel != "gpt-4o-mini" {
		t.Errorf("unexpected completion model default: %q", cfg.Completion.DefaultModel)
	}
	if cfg.Retrieval.TopKPerKnowledge != 3 || cfg.Retrieval.FinalTopK != 5 {
		t.Errorf("unexpected retrieval defaults: %+v", cfg.Retrieval)
	}
	if cfg.Storage.KeyPrefix != "kbrag:" {
		t.Errorf("unexpected key prefix default: %q", cfg.Storage.KeyPrefix)
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("KBRAG_TEST_KEY", "secret")

	in := []byte("api_key: ${KBRAG_TEST_KEY}\nbase_url: ${KBRAG_TEST_URL:-https://api.openai.com/v1}\n")
	out := string(expandEnvVars(in))

	want := "api_key: secret\nbase_url: https://api.openai.com/v1\n"
	if out != want {
		t.Errorf("unexpected expansion:\ngot:  %q\nwant: %q", out, want)
	}
}

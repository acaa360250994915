package infra

import "testing"

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "")
	t.Setenv("GENAI_PROVIDER", "")
	t.Setenv("PORT", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.StorageBackend != StorageBackendFilesystem {
		t.Fatalf("StorageBackend mismatch: got %q", cfg.StorageBackend)
	}
	if cfg.GenAIProvider != "gemini" {
		t.Fatalf("GenAIProvider mismatch: got %q", cfg.GenAIProvider)
	}
	if cfg.GenerationWorkers < 1 {
		t.Fatalf("GenerationWorkers should be at least 1, got %d", cfg.GenerationWorkers)
	}
}

func TestLoadConfigS3RequiresBucket(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "s3")
	t.Setenv("S3_BUCKET", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error when S3 bucket is missing")
	}
}

func TestLoadConfigS3BasePrefix(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "s3")
	t.Setenv("S3_BUCKET", "assets")
	t.Setenv("S3_BASE_PREFIX", "creative-engine/prod")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.S3BasePrefix != "creative-engine/prod" {
		t.Fatalf("S3BasePrefix mismatch: got %q", cfg.S3BasePrefix)
	}
}

func TestLoadConfigRejectsUnknownProvider(t *testing.T) {
	t.Setenv("GENAI_PROVIDER", "dalle-9000")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for unsupported provider")
	}
}

package provider

import "testing"

func TestGetModelInfoKnownModel(t *testing.T) {
	info := GetModelInfo("claude-opus-4-6")
	if info == nil {
		t.Fatal("expected claude-opus-4-6 to be in the catalog")
	}
	if info.ContextWindow != 200000 {
		t.Fatalf("context window = %d, want 200000", info.ContextWindow)
	}
}

func TestGetModelInfoUnknownModel(t *testing.T) {
	if GetModelInfo("does-not-exist") != nil {
		t.Fatal("expected nil for an unknown model id")
	}
}

func TestContextWindowForFallsBack(t *testing.T) {
	if ContextWindowFor("does-not-exist") != 32000 {
		t.Fatalf("expected the 32000 fallback for an unknown model")
	}
}

func TestListModelsFiltersByProvider(t *testing.T) {
	models := ListModels("anthropic")
	if len(models) == 0 {
		t.Fatal("expected at least one anthropic model")
	}
	for _, m := range models {
		if m.Provider != "anthropic" {
			t.Fatalf("got model %q from provider %q, want anthropic", m.ID, m.Provider)
		}
	}
}

func TestListModelsUnknownProviderIsEmpty(t *testing.T) {
	if len(ListModels("does-not-exist")) != 0 {
		t.Fatal("expected no models for an unknown provider")
	}
}

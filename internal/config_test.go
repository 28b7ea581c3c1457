package internal

import (
	"strings"
	"testing"

	"github.com/starford/ansuz/internal/anki"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestDefaultExportConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	if cfg.Export.ParentDeckName != anki.DefaultParentDeckName {
		t.Errorf("parent deck name = %q", cfg.Export.ParentDeckName)
	}
	if cfg.Export.NoteTypeName != anki.DefaultNoteTypeName {
		t.Errorf("note type name = %q", cfg.Export.NoteTypeName)
	}
	if cfg.Export.VideoInlineLimit != anki.DefaultMaxVideoBytes {
		t.Errorf("video inline limit = %d", cfg.Export.VideoInlineLimit)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestExportConfig_NegativeVideoLimit(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Export.VideoInlineLimit = -1
	if err := cfg.Validate(); err == nil {
		t.Fatal("negative video limit should fail validation")
	}
}

package config

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func kvServer(t *testing.T, wantPath string, values map[string]interface{}) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if wantPath != "" && r.URL.Path != wantPath {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("X-Vault-Token") != "test-token" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{"data": values},
		})
	}))
	t.Cleanup(server.Close)
	return server
}

func TestResolveVault_Success(t *testing.T) {
	server := kvServer(t, "/v1/secret/data/guardrail", map[string]interface{}{"api_token": "dapi-s3cret"})
	t.Setenv("VAULT_ADDR", server.URL)
	t.Setenv("VAULT_TOKEN", "test-token")

	val, err := resolveVault("secret/data/guardrail#api_token")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != "dapi-s3cret" {
		t.Errorf("expected 'dapi-s3cret', got %q", val)
	}
}

func TestResolveVault_Namespace(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Vault-Namespace") != "team-dq/" && r.Header.Get("X-Vault-Namespace") != "team-dq" {
			http.Error(w, "wrong namespace", http.StatusForbidden)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{"data": map[string]interface{}{"k": "v"}},
		})
	}))
	defer server.Close()

	t.Setenv("VAULT_ADDR", server.URL)
	t.Setenv("VAULT_TOKEN", "test-token")
	t.Setenv("VAULT_NAMESPACE", "team-dq")

	val, err := resolveVault("secret/data/guardrail#k")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != "v" {
		t.Errorf("expected 'v', got %q", val)
	}
}

func TestResolveVault_MissingKey(t *testing.T) {
	server := kvServer(t, "", map[string]interface{}{"username": "admin"})
	t.Setenv("VAULT_ADDR", server.URL)
	t.Setenv("VAULT_TOKEN", "test-token")

	if _, err := resolveVault("secret/data/guardrail#nonexistent"); err == nil {
		t.Error("expected error for missing key")
	}
}

func TestResolveVault_InvalidFormat(t *testing.T) {
	t.Setenv("VAULT_ADDR", "http://localhost:8200")
	t.Setenv("VAULT_TOKEN", "test-token")

	for _, ref := range []string{"no-hash-separator", "#key", "path#"} {
		if _, err := resolveVault(ref); err == nil {
			t.Errorf("expected error for %q", ref)
		}
	}
}

func TestResolveVault_MissingEnv(t *testing.T) {
	t.Setenv("VAULT_ADDR", "")
	t.Setenv("VAULT_TOKEN", "")

	if _, err := resolveVault("secret/data/path#key"); err == nil {
		t.Error("expected error when VAULT_ADDR not set")
	}
}

func TestResolveValue_Vault(t *testing.T) {
	server := kvServer(t, "", map[string]interface{}{"api_token": "hunter2"})
	t.Setenv("VAULT_ADDR", server.URL)
	t.Setenv("VAULT_TOKEN", "test-token")

	val, err := ResolveValue("${VAULT:secret/data/guardrail#api_token}")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != "hunter2" {
		t.Errorf("expected 'hunter2', got %q", val)
	}
}

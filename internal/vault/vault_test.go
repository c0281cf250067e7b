package vault

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
)

const testKey = "MDEyMzQ1Njc4OTAxMjM0NTY3ODkwMTIzNDU2Nzg5MDE=" // base64("01234567890123456789012345678901")

type fakeStore struct {
	creds map[string]*ProviderCredential
}

func (f *fakeStore) GetProviderCredential(ctx context.Context, tenantID, providerName string) (*ProviderCredential, error) {
	c, ok := f.creds[tenantID+"/"+providerName]
	if !ok {
		return nil, errors.New("not found")
	}
	return c, nil
}

func newTestVault(t *testing.T, creds map[string]*ProviderCredential) *Vault {
	t.Helper()
	v, err := New(&fakeStore{creds: creds}, testKey)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return v
}

func TestNew_RejectsShortKey(t *testing.T) {
	shortKey := base64.StdEncoding.EncodeToString([]byte("tooshort"))
	if _, err := New(&fakeStore{}, shortKey); err == nil {
		t.Fatal("expected error for non-32-byte key")
	}
}

func TestNew_SanitizesEmbeddedBackslashesAndWhitespace(t *testing.T) {
	raw := testKey[:10] + "\\ \\" + testKey[10:]
	if _, err := New(&fakeStore{}, raw); err != nil {
		t.Fatalf("expected sanitized key to decode cleanly, got: %v", err)
	}
}

func TestGetProviderSecret_DecryptsEncryptedSecret(t *testing.T) {
	v := newTestVault(t, nil)
	ciphertext, err := v.Encrypt("sk_live_abc123")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	v.store = &fakeStore{creds: map[string]*ProviderCredential{
		"tenant-1/STRIPE": {TenantID: "tenant-1", ProviderName: "STRIPE", EncryptedSecret: ciphertext},
	}}

	secret, ok := v.GetProviderSecret(context.Background(), "tenant-1", "STRIPE")
	if !ok {
		t.Fatal("expected ok=true")
	}
	if secret != "sk_live_abc123" {
		t.Errorf("secret = %q, want sk_live_abc123", secret)
	}
}

func TestGetProviderSecret_FallsBackToParametersJSON(t *testing.T) {
	v := newTestVault(t, map[string]*ProviderCredential{
		"tenant-2/SES": {TenantID: "tenant-2", ProviderName: "SES", ParametersJSON: `{"region":"us-east-1","secretKey":"legacy-secret"}`},
	})

	secret, ok := v.GetProviderSecret(context.Background(), "tenant-2", "SES")
	if !ok || secret != "legacy-secret" {
		t.Errorf("got (%q, %v), want (legacy-secret, true)", secret, ok)
	}
}

func TestGetProviderSecret_UnconfiguredTenantCachesNegative(t *testing.T) {
	v := newTestVault(t, nil)

	secret, ok := v.GetProviderSecret(context.Background(), "tenant-missing", "STRIPE")
	if ok || secret != "" {
		t.Errorf("got (%q, %v), want (\"\", false)", secret, ok)
	}

	// Second call must hit the negative cache, not the store, even though
	// the store would still return "not found" either way — verify the
	// cached entry directly.
	v.mu.Lock()
	_, cached := v.cache[cacheKey{"tenant-missing", "STRIPE"}]
	v.mu.Unlock()
	if !cached {
		t.Error("expected negative result to be cached")
	}
}

func TestReset_ClearsCache(t *testing.T) {
	v := newTestVault(t, nil)
	v.GetProviderSecret(context.Background(), "tenant-missing", "STRIPE")
	v.Reset()

	v.mu.Lock()
	n := len(v.cache)
	v.mu.Unlock()
	if n != 0 {
		t.Errorf("cache size after Reset = %d, want 0", n)
	}
}

func TestDecrypt_RejectsTamperedCiphertext(t *testing.T) {
	v := newTestVault(t, nil)
	ciphertext, err := v.Encrypt("secret")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	raw, _ := base64.StdEncoding.DecodeString(ciphertext)
	raw[len(raw)-1] ^= 0xFF // flip a byte in the auth tag
	tampered := base64.StdEncoding.EncodeToString(raw)

	if _, err := v.decrypt(tampered); err == nil {
		t.Fatal("expected GCM auth failure on tampered ciphertext")
	}
}

func TestExtractSecretKey(t *testing.T) {
	cases := []struct {
		json string
		want string
		ok   bool
	}{
		{`{"secretKey":"abc"}`, "abc", true},
		{`{"secretKey": "with space"}`, "with space", true},
		{`{"other":"value"}`, "", false},
		{`not json at all`, "", false},
	}
	for _, c := range cases {
		got, ok := extractSecretKey(c.json)
		if got != c.want || ok != c.ok {
			t.Errorf("extractSecretKey(%q) = (%q, %v), want (%q, %v)", c.json, got, ok, c.want, c.ok)
		}
	}
}

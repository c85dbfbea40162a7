// Package identity tests validate key generation, loading, and signing
// behavior for participant identities. These tests ensure persistent key
// files can be created, re-loaded, signed with, and that file permissions
// match security expectations.
package identity

import (
	"os"
	"path/filepath"
	"testing"
)

func TestIdentityLifecycle(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "participant.pem")

	identity1, err := LoadOrCreateIdentity(keyPath)
	if err != nil {
		t.Fatalf("Failed to create identity: %v", err)
	}

	identity2, err := LoadOrCreateIdentity(keyPath)
	if err != nil {
		t.Fatalf("Failed to load identity: %v", err)
	}

	if identity1.ID() != identity2.ID() {
		t.Errorf("Loaded identity differs from original. Got %s, want %s",
			identity2.ID(), identity1.ID())
	}
	if !ValidID(identity1.ID()) {
		t.Errorf("ID %q is not a valid identity string", identity1.ID())
	}
}

func TestEmptyKeyFileIsRegenerated(t *testing.T) {
	tmpFile, err := os.CreateTemp(t.TempDir(), "empty_key_*.pem")
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	tmpFile.Close()

	id, err := LoadOrCreateIdentity(tmpFile.Name())
	if err != nil {
		t.Fatalf("LoadOrCreateIdentity on empty file: %v", err)
	}

	loaded, err := LoadIdentity(tmpFile.Name())
	if err != nil {
		t.Fatalf("LoadIdentity: %v", err)
	}
	if loaded.ID() != id.ID() {
		t.Errorf("regenerated key was not persisted")
	}
}

func TestLoadIdentityRejectsGarbage(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "garbage.pem")
	if err := os.WriteFile(keyPath, []byte("not a key"), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadIdentity(keyPath); err == nil {
		t.Fatal("expected error loading garbage key file")
	}
	if _, err := LoadIdentity(filepath.Join(t.TempDir(), "missing.pem")); err == nil {
		t.Fatal("expected error loading missing key file")
	}
}

func TestSignAndVerify(t *testing.T) {
	identity, err := Generate()
	if err != nil {
		t.Fatalf("Failed to create identity: %v", err)
	}

	message := []byte("bid 60 on auction 7")
	signature := identity.Sign(message)

	if !identity.Verify(message, signature) {
		t.Error("Failed to verify signature with own public key")
	}

	otherIdentity, err := Generate()
	if err != nil {
		t.Fatalf("Failed to create other identity: %v", err)
	}

	if otherIdentity.Verify(message, signature) {
		t.Error("Incorrectly verified signature with wrong public key")
	}
}

func TestPermissions(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "keys", "secure.pem")

	if _, err := LoadOrCreateIdentity(keyPath); err != nil {
		t.Fatalf("Failed to create identity: %v", err)
	}

	info, err := os.Stat(keyPath)
	if err != nil {
		t.Fatalf("Failed to stat key file: %v", err)
	}

	if info.Mode().Perm() != 0600 {
		t.Errorf("Key file has wrong permissions. Got %v, want %v",
			info.Mode().Perm(), 0600)
	}
}

func TestValidID(t *testing.T) {
	id, _ := Generate()
	cases := []struct {
		in   string
		want bool
	}{
		{id.ID(), true},
		{"", false},
		{"deadbeef", false},
		{id.ID()[:62] + "zz", false},
		{"government-of-somewhere", false},
	}
	for _, tc := range cases {
		if got := ValidID(tc.in); got != tc.want {
			t.Errorf("ValidID(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestParseID(t *testing.T) {
	id, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	pub, err := ParseID(id.String())
	if err != nil {
		t.Fatalf("ParseID: %v", err)
	}
	if !pub.Equal(id.PublicKey()) {
		t.Errorf("ParseID returned a different key")
	}

	for _, bad := range []string{"", "zz", id.ID()[:10]} {
		if _, err := ParseID(bad); err == nil {
			t.Errorf("ParseID(%q) succeeded", bad)
		}
	}
}

package auth

import (
	"testing"
)

type memStore struct {
	hashes map[string]string
}

func newMemStore() *memStore {
	return &memStore{hashes: make(map[string]string)}
}

func (m *memStore) UpsertUser(username, pwdHash string) error {
	m.hashes[username] = pwdHash
	return nil
}

func (m *memStore) UserHash(username string) (string, error) {
	return m.hashes[username], nil
}

func TestEnsureUserAndVerify(t *testing.T) {
	store := newMemStore()
	a := New(store)

	if err := a.EnsureUser("admin", "hunter2"); err != nil {
		t.Fatalf("EnsureUser failed: %v", err)
	}
	if store.hashes["admin"] == "hunter2" {
		t.Fatal("password must not be stored in plain text")
	}

	if !a.Verify("admin", "hunter2") {
		t.Error("correct credentials should verify")
	}
	if a.Verify("admin", "wrong") {
		t.Error("wrong password must not verify")
	}
	if a.Verify("ghost", "hunter2") {
		t.Error("unknown user must not verify")
	}
}

func TestEnsureUserRejectsBlankCredential(t *testing.T) {
	a := New(newMemStore())
	if err := a.EnsureUser("admin", ""); err == nil {
		t.Error("expected error for blank password")
	}
	if err := a.EnsureUser("", "pw"); err == nil {
		t.Error("expected error for blank username")
	}
}

func TestEnsureUserRotatesPassword(t *testing.T) {
	store := newMemStore()
	a := New(store)

	if err := a.EnsureUser("admin", "old"); err != nil {
		t.Fatalf("EnsureUser failed: %v", err)
	}
	if err := a.EnsureUser("admin", "new"); err != nil {
		t.Fatalf("EnsureUser failed: %v", err)
	}
	if a.Verify("admin", "old") {
		t.Error("old password should stop working after rotation")
	}
	if !a.Verify("admin", "new") {
		t.Error("new password should verify")
	}
}

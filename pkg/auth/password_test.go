package auth

import "testing"

func TestHashPasswordAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("secret1")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if hash == "" || hash == "secret1" {
		t.Fatalf("expected non-trivial hash, got %q", hash)
	}
	if !CheckPassword("secret1", hash) {
		t.Fatalf("expected password check to pass")
	}
	if CheckPassword("wrong", hash) {
		t.Fatalf("expected wrong password to fail")
	}
}

func TestCheckPasswordEmptyHashNeverMatches(t *testing.T) {
	if CheckPassword("", "") {
		t.Fatalf("federated accounts without a hash must not authenticate by password")
	}
	if CheckPassword("anything", "") {
		t.Fatalf("empty stored hash must not match")
	}
}

func TestValidatePassword(t *testing.T) {
	if err := ValidatePassword("secret1"); err != nil {
		t.Fatalf("expected valid password, got: %v", err)
	}
	if err := ValidatePassword("abc"); err == nil {
		t.Fatalf("expected short password to fail")
	}
}

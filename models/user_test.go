package models_test

import (
	"encoding/json"
	"testing"

	"github.com/Teodorcosmovici/Flat2study-GitHub-sub000/models"
	"golang.org/x/crypto/bcrypt"
)

// Users are cached in redis as JSON, so a lookup served from the cache must
// still carry the bcrypt hash for credential checks.
func TestUserCacheRoundTripKeepsPasswordHash(t *testing.T) {
	hashed, err := bcrypt.GenerateFromPassword([]byte("s3cret-pw"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	user := models.User{Username: "agent", Password: string(hashed)}

	raw, err := json.Marshal(user)
	if err != nil {
		t.Fatalf("marshal user: %v", err)
	}

	var cached models.User
	if err := json.Unmarshal(raw, &cached); err != nil {
		t.Fatalf("unmarshal user: %v", err)
	}

	if cached.Password == "" {
		t.Fatal("password hash lost in cache round trip")
	}
	if err := cached.VerifyPassword("s3cret-pw"); err != nil {
		t.Fatalf("verify on cached copy: %v", err)
	}
	// A second check mirrors a repeat login served entirely from cache.
	if err := cached.VerifyPassword("s3cret-pw"); err != nil {
		t.Fatalf("verify on repeat login: %v", err)
	}
	if err := cached.VerifyPassword("wrong-pw"); err == nil {
		t.Fatal("expected mismatch error for wrong password")
	}
}

package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHashAndCompare(t *testing.T) {
	req := require.New(t)
	password := "MonMotDePasseTr0pSûr!"

	hash, err := HashPassword(password)
	req.NoError(err)
	req.True(strings.HasPrefix(hash, "$argon2id$"))

	match, err := ComparePassword(password, hash)
	req.NoError(err)
	req.True(match)

	// Wrong password must not match
	match, err = ComparePassword("MauvaisMDP", hash)
	req.NoError(err)
	req.False(match)
}

func TestTokenRoundTrip(t *testing.T) {
	req := require.New(t)
	manager := NewTokenManager([]byte("test-secret"), time.Hour)

	token, err := manager.Generate("user-42")
	req.NoError(err)
	req.NotEmpty(token)

	claims, err := manager.Validate(token)
	req.NoError(err)
	req.Equal("user-42", claims.UserID)
	req.Equal("chat-relay", claims.Issuer)
}

func TestTokenRejectsWrongSecret(t *testing.T) {
	req := require.New(t)
	manager := NewTokenManager([]byte("test-secret"), time.Hour)
	other := NewTokenManager([]byte("another-secret"), time.Hour)

	token, err := manager.Generate("user-42")
	req.NoError(err)

	_, err = other.Validate(token)
	req.Error(err)
}

func TestTokenRejectsExpired(t *testing.T) {
	req := require.New(t)
	manager := NewTokenManager([]byte("test-secret"), -time.Minute)

	token, err := manager.Generate("user-42")
	req.NoError(err)

	_, err = manager.Validate(token)
	req.Error(err)
}

func TestRegistrationValidation(t *testing.T) {
	req := require.New(t)
	tests := []struct {
		name    string
		req     RegisterRequest
		wantErr bool
	}{
		{"Valid request", RegisterRequest{"alice", "a-long-enough-password", "fr"}, false},
		{"Valid without lang", RegisterRequest{"alice", "a-long-enough-password", ""}, false},
		{"Username too short", RegisterRequest{"al", "a-long-enough-password", ""}, true},
		{"Password too short", RegisterRequest{"alice", "short", ""}, true},
		{"Password too long (edge case)", RegisterRequest{"alice", strings.Repeat("a", 73), ""}, true},
		{"Lang not two letters", RegisterRequest{"alice", "a-long-enough-password", "french"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRegister(tt.req)
			if tt.wantErr {
				req.Error(err)
			} else {
				req.NoError(err)
			}
		})
	}
}

// BenchmarkHashPassword measures the CPU/RAM cost of one hash.
func BenchmarkHashPassword(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = HashPassword("A-very-long-and-complex-password-for-bench-123!")
	}
}

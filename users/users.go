package users

import (
	"encoding/json"

	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

// Provider identifies which identity provider issued a user record.
type Provider string

const (
	ProviderEmail  Provider = "email"
	ProviderGoogle Provider = "google"
	ProviderGithub Provider = "github"
	ProviderApple  Provider = "apple"
)

func (p Provider) String() string { return string(p) }

// IsValid returns true if the provider is a known value.
func (p Provider) IsValid() bool {
	switch p {
	case ProviderEmail, ProviderGoogle, ProviderGithub, ProviderApple:
		return true
	}
	return false
}

// User is the identity record issued by the authentication backend.
// Records are immutable once issued - a login or refresh replaces the
// whole record, individual fields are never mutated in place.
type User struct {
	ID        string   `json:"id"`                   // Unique identifier for the user
	Email     string   `json:"email"`                // User's email address
	Name      string   `json:"name,omitempty"`       // Display name
	AvatarURL string   `json:"avatar_url,omitempty"` // Profile image URL
	Provider  Provider `json:"provider"`             // Identity provider that issued the record
}

// Marshal serializes a user for storage under the shared current_user key.
func Marshal(u *User) (string, error) {
	b, err := json.Marshal(u)
	if err != nil {
		return "", errors.Wrap(err, "[users.Marshal] json.Marshal")
	}
	return string(b), nil
}

// Unmarshal restores a user previously serialized with Marshal.
func Unmarshal(raw string) (*User, error) {
	var u User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return nil, errors.Wrap(err, "[users.Unmarshal] json.Unmarshal")
	}
	return &u, nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

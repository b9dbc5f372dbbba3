// Package auth owns accounts and the API keys daemons sync with. Keys are
// bearer tokens shown once at mint time; only a sha256 digest is stored.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/bcrypt"

	"github.com/KohlJary/geocass/db"
	"github.com/KohlJary/geocass/models"
)

const (
	keyPrefix = "gc_"
	// prefixLen covers "gc_" plus enough of the token to make prefix
	// collisions rare; verification compares full hashes either way.
	prefixLen = 8
	keyBytes  = 32
)

var (
	ErrInvalidKey         = errors.New("invalid api key")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUsernameTaken      = errors.New("username is taken")
)

type Auth struct {
	db *db.DB
}

func New(database *db.DB) *Auth {
	return &Auth{db: database}
}

// Register creates the account and mints its first key. The plaintext token
// is returned exactly once.
func (a *Auth) Register(username, password string) (*models.User, *models.ApiKey, string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, "", err
	}

	user := &models.User{
		Id:           uuid.NewString(),
		Username:     username,
		PasswordHash: string(hash),
	}

	if err := db.AddUser(a.db, user); err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return nil, nil, "", ErrUsernameTaken
		}
		return nil, nil, "", err
	}

	key, token, err := a.MintKey(user.Id, "default")
	if err != nil {
		return nil, nil, "", err
	}

	return user, key, token, nil
}

// Login checks the password and mints a fresh key on success.
func (a *Auth) Login(username, password string) (*models.User, *models.ApiKey, string, error) {
	user, err := db.GetUser(a.db, db.FilterEq("username", username))
	if errors.Is(err, db.ErrNotFound) {
		return nil, nil, "", ErrInvalidCredentials
	}
	if err != nil {
		return nil, nil, "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil, "", ErrInvalidCredentials
	}

	key, token, err := a.MintKey(user.Id, "login")
	if err != nil {
		return nil, nil, "", err
	}

	return user, key, token, nil
}

// MintKey creates a named key for the user and returns its plaintext token
// alongside the stored record.
func (a *Auth) MintKey(userId, name string) (*models.ApiKey, string, error) {
	raw := make([]byte, keyBytes)
	if _, err := rand.Read(raw); err != nil {
		return nil, "", fmt.Errorf("failed to generate key: %w", err)
	}
	token := keyPrefix + base64.RawURLEncoding.EncodeToString(raw)

	key := &models.ApiKey{
		Id:     uuid.NewString(),
		UserId: userId,
		Name:   name,
		Prefix: token[:prefixLen],
		Hash:   hashKey(token),
	}

	if err := db.AddApiKey(a.db, key); err != nil {
		return nil, "", err
	}

	return key, token, nil
}

// VerifyKey resolves an Authorization header to the owning user. The key
// prefix narrows the candidate set; the full digest decides. A malformed,
// unknown or revoked token is ErrInvalidKey, never anything more specific.
func (a *Auth) VerifyKey(header string) (*models.User, error) {
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if len(token) < prefixLen || !strings.HasPrefix(token, keyPrefix) {
		return nil, ErrInvalidKey
	}

	keys, err := db.GetApiKeys(a.db, db.FilterEq("key_prefix", token[:prefixLen]))
	if err != nil {
		return nil, err
	}

	digest := hashKey(token)
	for _, key := range keys {
		if subtle.ConstantTimeCompare([]byte(key.Hash), []byte(digest)) != 1 {
			continue
		}

		user, err := db.GetUser(a.db, db.FilterEq("id", key.UserId))
		if err != nil {
			return nil, err
		}
		if err := db.TouchApiKey(a.db, key.Id); err != nil {
			return nil, err
		}
		return user, nil
	}

	return nil, ErrInvalidKey
}

// RevokeKey deletes the user's key. Reports whether the key existed.
func (a *Auth) RevokeKey(userId, keyId string) (bool, error) {
	return db.DeleteApiKey(a.db, db.FilterEq("user_id", userId), db.FilterEq("id", keyId))
}

// Keys lists the user's keys, hashes and all. Serialization decides what
// the client sees.
func (a *Auth) Keys(userId string) ([]models.ApiKey, error) {
	return db.GetApiKeys(a.db, db.FilterEq("user_id", userId))
}

func hashKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

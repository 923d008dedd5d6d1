// Package auth is the account directory: registration, credential checks,
// stats lookups and the session tokens that let a second connection (or a
// reconnecting client) prove it belongs to an account that already logged in.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/playhub/lobby/internal/core/data"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrEmptyCredentials   = errors.New("username and password are required")
	ErrUsernameTaken      = errors.New("username is already taken")
	ErrInvalidRole        = errors.New("role must be player or developer")
	ErrInvalidToken       = errors.New("session token is invalid or expired")
	ErrAccountNotFound    = errors.New("account not found")
	ErrUnknown            = errors.New("unknown error")
)

// Swapped out in tests.
var (
	findAccount    = data.FindAccountByUsername
	findAnyAccount = data.FindUnscopedAccount
	createAccount  = data.CreateAccount
)

// Stats is the pair of counters tracked for every account.
type Stats struct {
	Wins   int
	Played int
}

// Directory authenticates accounts against the database and tracks the session
// tokens handed out on login.
type Directory struct {
	db       *gorm.DB
	sessions *gocache.Cache
}

// NewDirectory returns a Directory whose session tokens expire after tokenTTL.
func NewDirectory(db *gorm.DB, tokenTTL time.Duration) *Directory {
	return &Directory{
		db:       db,
		sessions: gocache.New(tokenTTL, time.Minute),
	}
}

// HashPassword returns the bcrypt hash stored for a password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("error hashing password: %w", err)
	}
	return string(hash), nil
}

// Register creates a new account with zeroed stats.
func (d *Directory) Register(username, password, role string) (*data.Account, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrEmptyCredentials
	}
	if role == "" {
		role = data.RolePlayer
	}
	if !data.ValidRole(role) {
		return nil, ErrInvalidRole
	}

	// Deleted accounts keep their name until they are purged.
	existing, err := findAnyAccount(d.db, username)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknown, err)
	} else if existing != nil {
		return nil, ErrUsernameTaken
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	account := &data.Account{Username: username, Password: hash, Role: role}
	if err := createAccount(d.db, account); err != nil {
		// Lost a race with a concurrent registration of the same name.
		if existing, _ := findAnyAccount(d.db, username); existing != nil {
			return nil, ErrUsernameTaken
		}
		return nil, err
	}
	return account, nil
}

// Authenticate verifies a username and password. A non-empty role must match
// the account's role.
func (d *Directory) Authenticate(username, password, role string) (*data.Account, error) {
	account, err := findAccount(d.db, strings.TrimSpace(username))
	if err != nil {
		return nil, ErrUnknown
	}
	if account == nil {
		return nil, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(account.Password), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	if role != "" && role != account.Role {
		return nil, ErrInvalidCredentials
	}
	return account, nil
}

// Account returns the current state of a registered account.
func (d *Directory) Account(username string) (*data.Account, error) {
	account, err := findAccount(d.db, username)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknown, err)
	} else if account == nil {
		return nil, ErrAccountNotFound
	}
	return account, nil
}

// Stats returns the live counters for an account.
func (d *Directory) Stats(username string) (Stats, error) {
	account, err := d.Account(username)
	if err != nil {
		return Stats{}, err
	}
	return Stats{Wins: account.Wins, Played: account.Played}, nil
}

// DeleteAccount removes an account, soft-deleting it unless permanent is set.
func (d *Directory) DeleteAccount(username string, permanent bool) error {
	account, err := data.FindUnscopedAccount(d.db, username)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnknown, err)
	} else if account == nil {
		return ErrAccountNotFound
	}

	if permanent {
		return data.PermanentlyDeleteAccount(d.db, account)
	}
	return data.DeleteAccount(d.db, account)
}

// IssueToken creates a session token bound to username.
func (d *Directory) IssueToken(username string) string {
	token := uuid.NewString()
	d.sessions.SetDefault(token, username)
	return token
}

// ValidateToken returns the account a token was issued to.
func (d *Directory) ValidateToken(token string) (string, error) {
	username, ok := d.sessions.Get(token)
	if !ok {
		return "", ErrInvalidToken
	}
	return username.(string), nil
}

// RevokeToken invalidates a token, e.g. on explicit logout.
func (d *Directory) RevokeToken(token string) {
	d.sessions.Delete(token)
}

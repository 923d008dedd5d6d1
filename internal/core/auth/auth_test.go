package auth

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/playhub/lobby/internal/core/data"
	"github.com/playhub/lobby/internal/core/data/datatest"
)

func mustHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword() returned an unexpected error: %v", err)
	}
	return hash
}

func TestRegister(t *testing.T) {
	type args struct {
		username string
		password string
		role     string
	}
	tests := map[string]struct {
		dbFindFn   func(db *gorm.DB, username string) (*data.Account, error)
		dbCreateFn func(db *gorm.DB, account *data.Account) error
		args       args
		wantedErr  error
	}{
		"database_error": {
			dbFindFn:   func(*gorm.DB, string) (*data.Account, error) { return nil, fmt.Errorf("database error") },
			dbCreateFn: func(*gorm.DB, *data.Account) error { return nil },
			args:       args{username: "alice", password: "pw", role: "player"},
			wantedErr:  ErrUnknown,
		},
		"username_taken": {
			dbFindFn:   func(*gorm.DB, string) (*data.Account, error) { return &data.Account{Username: "alice"}, nil },
			dbCreateFn: func(*gorm.DB, *data.Account) error { return nil },
			args:       args{username: "alice", password: "pw", role: "player"},
			wantedErr:  ErrUsernameTaken,
		},
		"invalid_role": {
			args:      args{username: "alice", password: "pw", role: "admin"},
			wantedErr: ErrInvalidRole,
		},
		"empty_password": {
			args:      args{username: "alice", password: "", role: "player"},
			wantedErr: ErrEmptyCredentials,
		},
		"happy_path": {
			dbFindFn:   func(*gorm.DB, string) (*data.Account, error) { return nil, nil },
			dbCreateFn: func(*gorm.DB, *data.Account) error { return nil },
			args:       args{username: "alice", password: "pw", role: ""},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			originalFind, originalCreate := findAnyAccount, createAccount
			defer func() {
				findAnyAccount, createAccount = originalFind, originalCreate
			}()
			if tt.dbFindFn != nil {
				findAnyAccount = tt.dbFindFn
			}
			if tt.dbCreateFn != nil {
				createAccount = tt.dbCreateFn
			}

			account, err := NewDirectory(nil, time.Minute).Register(tt.args.username, tt.args.password, tt.args.role)
			if !errors.Is(err, tt.wantedErr) {
				t.Fatalf("expected error = %v, got = %v", tt.wantedErr, err)
			}
			if err != nil {
				return
			}

			if account.Username != tt.args.username {
				t.Errorf("expected account username = %s, got = %s", tt.args.username, account.Username)
			}
			if account.Role != data.RolePlayer {
				t.Errorf("expected the default role %s, got %s", data.RolePlayer, account.Role)
			}
			if account.Password == tt.args.password {
				t.Error("expected the stored password to be hashed")
			}
		})
	}
}

func TestRegister_DeletedUsernameIsTaken(t *testing.T) {
	d := NewDirectory(datatest.NewDatabase(t), time.Minute)

	if _, err := d.Register("alice", "pw", data.RolePlayer); err != nil {
		t.Fatalf("Register() returned an unexpected error: %v", err)
	}
	if err := d.DeleteAccount("alice", false); err != nil {
		t.Fatalf("DeleteAccount() returned an unexpected error: %v", err)
	}

	if _, err := d.Register("alice", "pw2", data.RolePlayer); !errors.Is(err, ErrUsernameTaken) {
		t.Errorf("expected ErrUsernameTaken for a deleted username, got %v", err)
	}
	if _, err := d.Authenticate("alice", "pw", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected a deleted account to be unable to log in, got %v", err)
	}
}

func TestAuthenticate(t *testing.T) {
	type context struct {
		account *data.Account
		err     error
	}
	type args struct {
		username string
		password string
		role     string
	}

	happyPathAccount := &data.Account{Username: "test", Password: mustHash(t, "test"), Role: data.RolePlayer}

	tests := map[string]struct {
		context context
		args    args
		wantErr error
	}{
		"database_error": {
			context{account: nil, err: fmt.Errorf("something exploded")},
			args{username: "test", password: "test"},
			ErrUnknown,
		},
		"no_account": {
			context{account: nil, err: nil},
			args{username: "test", password: "test"},
			ErrInvalidCredentials,
		},
		"invalid_password": {
			context{account: happyPathAccount, err: nil},
			args{username: "test", password: "nope"},
			ErrInvalidCredentials,
		},
		"role_mismatch": {
			context{account: happyPathAccount, err: nil},
			args{username: "test", password: "test", role: data.RoleDeveloper},
			ErrInvalidCredentials,
		},
		"happy": {
			context{account: happyPathAccount, err: nil},
			args{username: "test", password: "test", role: data.RolePlayer},
			nil,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			originalFindAccount := findAccount
			defer func() { findAccount = originalFindAccount }()

			findAccount = func(*gorm.DB, string) (*data.Account, error) {
				return tt.context.account, tt.context.err
			}

			account, err := NewDirectory(nil, time.Minute).Authenticate(tt.args.username, tt.args.password, tt.args.role)
			if err != tt.wantErr {
				t.Errorf("expected wantedErr = %v, got = %v", tt.wantErr, err)
			}
			if err == nil && account != happyPathAccount {
				t.Errorf("expected the stored account to be returned, got %v", account)
			}
		})
	}
}

func TestHashPassword(t *testing.T) {
	hashed := mustHash(t, "password")
	if hashed == "password" {
		t.Fatalf("expected hashed password not to equal password")
	}

	// bcrypt salts every hash.
	if again := mustHash(t, "password"); again == hashed {
		t.Errorf("expected two hashes of the same password to differ")
	}
}

func TestDirectory_Tokens(t *testing.T) {
	d := NewDirectory(nil, time.Minute)

	token := d.IssueToken("alice")
	username, err := d.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken() returned an unexpected error: %v", err)
	}
	if username != "alice" {
		t.Errorf("expected token to belong to alice, got %s", username)
	}

	if _, err := d.ValidateToken("not-a-token"); err != ErrInvalidToken {
		t.Errorf("expected ErrInvalidToken for an unknown token, got %v", err)
	}

	d.RevokeToken(token)
	if _, err := d.ValidateToken(token); err != ErrInvalidToken {
		t.Errorf("expected ErrInvalidToken after revocation, got %v", err)
	}
}

func TestDirectory_TokenExpiry(t *testing.T) {
	d := NewDirectory(nil, 10*time.Millisecond)

	token := d.IssueToken("alice")
	time.Sleep(20 * time.Millisecond)
	if _, err := d.ValidateToken(token); err != ErrInvalidToken {
		t.Errorf("expected ErrInvalidToken after the ttl elapsed, got %v", err)
	}
}

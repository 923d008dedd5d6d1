package data

import (
	"math/rand"
	"strconv"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"gorm.io/gorm"
)

func seedRandomAccounts(t *testing.T, db *gorm.DB) {
	t.Helper()
	for i := 0; i < 10; i++ {
		if err := CreateAccount(db, generateAccount(t)); err != nil {
			t.Fatalf("error seeding test account: %v", err)
		}
	}
}

func generateAccount(t *testing.T) *Account {
	t.Helper()
	return &Account{
		Username: strconv.Itoa(rand.Int()),
		Password: strconv.Itoa(rand.Int()),
		Role:     RolePlayer,
	}
}

func assertAccountsMatch(t *testing.T, expected *Account, got *Account) {
	t.Helper()
	if expected == nil && got == nil {
		return
	}

	if got != nil {
		got.DeletedAt = gorm.DeletedAt{}
	}
	// sqlite round trips drop the monotonic clock reading.
	if diff := cmp.Diff(expected, got, cmpopts.EquateApproxTime(time.Second)); diff != "" {
		t.Errorf("account did not match expected; diff:\n%s", diff)
	}
}

func TestFindAccountByUsername(t *testing.T) {
	db := setUpDatabase(t)
	seedRandomAccounts(t, db)

	testAccount := generateAccount(t)
	tests := []struct {
		name     string
		seedData func(db *gorm.DB)
		want     *Account
		wantErr  bool
	}{
		{
			name:     "account does not exist",
			seedData: func(db *gorm.DB) {},
			want:     nil,
			wantErr:  false,
		},
		{
			name: "account exists",
			seedData: func(db *gorm.DB) {
				if err := CreateAccount(db, testAccount); err != nil {
					t.Fatalf("error creating test account data: %s", err)
				}
			},
			want:    testAccount,
			wantErr: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.seedData(db)

			account, err := FindAccountByUsername(db, testAccount.Username)
			if (err != nil) != tt.wantErr {
				t.Fatalf("FindAccountByUsername() wantErr = %v, error = %v", tt.wantErr, err)
			}
			assertAccountsMatch(t, tt.want, account)
		})
	}
}

func TestCreateAccount_DuplicateUsername(t *testing.T) {
	db := setUpDatabase(t)

	account := generateAccount(t)
	if err := CreateAccount(db, account); err != nil {
		t.Fatalf("CreateAccount() returned an unexpected error: %v", err)
	}
	if account.RegistrationDate.IsZero() {
		t.Error("expected CreateAccount() to set the registration date")
	}

	duplicate := &Account{Username: account.Username, Password: "x", Role: RolePlayer}
	if err := CreateAccount(db, duplicate); err == nil {
		t.Error("expected CreateAccount() to reject a duplicate username")
	}
}

func TestFindUnscopedAccount(t *testing.T) {
	db := setUpDatabase(t)

	testAccount := generateAccount(t)
	if err := CreateAccount(db, testAccount); err != nil {
		t.Fatalf("error creating test account: %v", err)
	}
	account, err := FindUnscopedAccount(db, testAccount.Username)
	if err != nil {
		t.Fatalf("FindUnscopedAccount() returned an unexpected error: %v", err)
	}
	assertAccountsMatch(t, testAccount, account)

	// Account exists, but has been soft deleted.
	if err := DeleteAccount(db, account); err != nil {
		t.Fatalf("error deleting test account: %s", err)
	}
	if scoped, _ := FindAccountByUsername(db, testAccount.Username); scoped != nil {
		t.Errorf("FindAccountByUsername() returned a soft deleted account: %v", scoped)
	}
	account, err = FindUnscopedAccount(db, testAccount.Username)
	if err != nil {
		t.Fatalf("FindUnscopedAccount() returned an unexpected error: %v", err)
	}
	assertAccountsMatch(t, testAccount, account)

	// Account has been hard deleted.
	if err := PermanentlyDeleteAccount(db, account); err != nil {
		t.Fatalf("error deleting test account: %s", err)
	}
	account, err = FindUnscopedAccount(db, testAccount.Username)
	if err != nil {
		t.Fatalf("FindUnscopedAccount() returned an unexpected error: %v", err)
	}
	if account != nil {
		t.Fatalf("FindUnscopedAccount() returned an account unexpectedly: %v", account)
	}
}

func TestRankedAccounts(t *testing.T) {
	db := setUpDatabase(t)

	for _, a := range []*Account{
		{Username: "carol", Password: "x", Role: RolePlayer, Wins: 3, Played: 9},
		{Username: "alice", Password: "x", Role: RolePlayer, Wins: 3, Played: 4},
		{Username: "dave", Password: "x", Role: RolePlayer, Wins: 0, Played: 0},
		{Username: "bob", Password: "x", Role: RolePlayer, Wins: 3, Played: 4},
	} {
		if err := CreateAccount(db, a); err != nil {
			t.Fatalf("error creating test account: %v", err)
		}
	}

	accounts, err := RankedAccounts(db)
	if err != nil {
		t.Fatalf("RankedAccounts() returned an unexpected error: %v", err)
	}

	var got []string
	for _, a := range accounts {
		got = append(got, a.Username)
	}
	if diff := cmp.Diff([]string{"alice", "bob", "carol", "dave"}, got); diff != "" {
		t.Errorf("RankedAccounts() returned the wrong order; diff:\n%s", diff)
	}
}

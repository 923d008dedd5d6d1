package data

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

const (
	RolePlayer    = "player"
	RoleDeveloper = "developer"
)

// Account contains the login information and cumulative stats of each registered user.
type Account struct {
	ID               uint64 `gorm:"primaryKey"`
	Username         string `gorm:"unique; not null"`
	Password         string `gorm:"not null"`
	Role             string `gorm:"not null; default:player"`
	Wins             int    `gorm:"not null; default:0"`
	Played           int    `gorm:"not null; default:0"`
	RegistrationDate time.Time
	DeletedAt        gorm.DeletedAt `gorm:"index"`
}

// ValidRole reports whether role is one an account can register with.
func ValidRole(role string) bool {
	return role == RolePlayer || role == RoleDeveloper
}

// FindAccountByUsername searches for an account with the specified username, returning the
// *Account instance if found or nil if there is no match.
func FindAccountByUsername(db *gorm.DB, username string) (*Account, error) {
	var account Account
	err := db.Where("username = ?", username).First(&account).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &account, nil
}

// FindUnscopedAccount searches for a potentially soft-deleted account with the
// specified username, returning the *Account instance if found or nil if
// there is no match.
func FindUnscopedAccount(db *gorm.DB, username string) (*Account, error) {
	var account Account
	err := db.Unscoped().Where("username = ?", username).First(&account).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &account, nil
}

// RankedAccounts returns every account ordered for the leaderboard: most wins
// first, then fewest games played, then username.
func RankedAccounts(db *gorm.DB) ([]Account, error) {
	var accounts []Account
	err := db.Order("wins desc").Order("played asc").Order("username asc").Find(&accounts).Error
	return accounts, err
}

// CreateAccount persists the Account record to the database.
func CreateAccount(db *gorm.DB, account *Account) error {
	if account.RegistrationDate.IsZero() {
		account.RegistrationDate = time.Now()
	}
	return db.Create(account).Error
}

// DeleteAccount soft-deletes an Account record from the database.
func DeleteAccount(db *gorm.DB, account *Account) error {
	return db.Delete(account).Error
}

// PermanentlyDeleteAccount permanently deletes an Account record from the database.
func PermanentlyDeleteAccount(db *gorm.DB, account *Account) error {
	return db.Unscoped().Delete(account).Error
}

package data

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

var (
	ErrMatchAlreadyRecorded = errors.New("match already recorded")
	ErrUnknownAccount       = errors.New("unknown account")
)

// MatchResult is the permanent record of one finished match. Its MatchID is
// unique, which is what makes result recording idempotent across restarts.
type MatchResult struct {
	ID           uint64   `gorm:"primaryKey"`
	MatchID      string   `gorm:"uniqueIndex; not null"`
	RoomID       int      `gorm:"not null"`
	Winners      []string `gorm:"serializer:json"`
	Participants []string `gorm:"serializer:json"`
	RecordedAt   time.Time
}

// FindMatchResult returns the result recorded for matchID, or nil if none was.
func FindMatchResult(db *gorm.DB, matchID string) (*MatchResult, error) {
	var result MatchResult
	err := db.Where("match_id = ?", matchID).First(&result).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &result, nil
}

// RecordMatch stores result and applies its stat changes in one transaction:
// every participant's played count goes up by one and every winner's wins by one.
// Nothing is written if the match was already recorded or any account is missing.
func RecordMatch(db *gorm.DB, result *MatchResult) error {
	return db.Transaction(func(tx *gorm.DB) error {
		existing, err := FindMatchResult(tx, result.MatchID)
		if err != nil {
			return err
		} else if existing != nil {
			return ErrMatchAlreadyRecorded
		}

		if result.RecordedAt.IsZero() {
			result.RecordedAt = time.Now()
		}
		if err := tx.Create(result).Error; err != nil {
			return fmt.Errorf("error saving match result: %w", err)
		}

		if err := incrementColumn(tx, "played", result.Participants); err != nil {
			return err
		}
		return incrementColumn(tx, "wins", result.Winners)
	})
}

func incrementColumn(tx *gorm.DB, column string, usernames []string) error {
	if len(usernames) == 0 {
		return nil
	}

	update := tx.Model(&Account{}).
		Where("username IN ?", usernames).
		UpdateColumn(column, gorm.Expr(column+" + ?", 1))
	if update.Error != nil {
		return fmt.Errorf("error updating %s: %w", column, update.Error)
	}
	if int(update.RowsAffected) != len(usernames) {
		return fmt.Errorf("%w: %d of %v", ErrUnknownAccount, len(usernames)-int(update.RowsAffected), usernames)
	}
	return nil
}

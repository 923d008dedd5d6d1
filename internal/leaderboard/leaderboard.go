// Package leaderboard ranks accounts by their recorded results and keeps a
// snapshot of the ranking in a Store.
package leaderboard

import (
	"context"
	"fmt"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/playhub/lobby/internal/core/data"
)

const snapshotKey = "leaderboard"

// Entry is one ranked account. Accounts with the same wins and played share a rank.
type Entry struct {
	Rank     int    `json:"rank"`
	Username string `json:"username"`
	Wins     int    `json:"wins"`
	Played   int    `json:"played"`
}

// Store persists the latest snapshot so it survives a restart.
type Store interface {
	Save(ctx context.Context, entries []Entry) error
	// Load returns the saved snapshot, or nil if nothing has been saved.
	Load(ctx context.Context) ([]Entry, error)
}

// Used to get the ranked accounts; swapped out in tests.
var rankedAccounts = data.RankedAccounts

// Service serves the leaderboard from memory. The first read rebuilds it from
// the account table, falling back to the saved snapshot if the table can't be read.
type Service struct {
	db     *gorm.DB
	store  Store
	logger *logrus.Logger
	cache  *gocache.Cache

	// Serializes refreshes so an older ranking never replaces a newer one.
	mu sync.Mutex
}

func NewService(db *gorm.DB, store Store, logger *logrus.Logger) *Service {
	return &Service{
		db:     db,
		store:  store,
		logger: logger,
		cache:  gocache.New(gocache.NoExpiration, 0),
	}
}

// Rank turns accounts that are already in leaderboard order into entries
// using competition ranking (1, 2, 2, 4).
func Rank(accounts []data.Account) []Entry {
	entries := make([]Entry, len(accounts))
	for i, account := range accounts {
		rank := i + 1
		if i > 0 && account.Wins == accounts[i-1].Wins && account.Played == accounts[i-1].Played {
			rank = entries[i-1].Rank
		}
		entries[i] = Entry{Rank: rank, Username: account.Username, Wins: account.Wins, Played: account.Played}
	}
	return entries
}

// Top returns up to limit entries of the current ranking. A limit <= 0 returns all of them.
func (s *Service) Top(ctx context.Context, limit int) ([]Entry, error) {
	entries, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return append([]Entry(nil), entries...), nil
}

func (s *Service) snapshot(ctx context.Context) ([]Entry, error) {
	if cached, ok := s.cache.Get(snapshotKey); ok {
		return cached.([]Entry), nil
	}

	entries, err := s.Refresh(ctx)
	if err == nil {
		return entries, nil
	}

	saved, loadErr := s.store.Load(ctx)
	if loadErr != nil || len(saved) == 0 {
		return nil, err
	}
	s.logger.Warnf("serving saved leaderboard snapshot: %v", err)
	return saved, nil
}

// Refresh rebuilds the ranking from the account table and saves it. The
// returned entries are valid even when saving the snapshot failed, in which
// case the failure is logged.
func (s *Service) Refresh(ctx context.Context) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	accounts, err := rankedAccounts(s.db.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("error loading ranked accounts: %w", err)
	}

	entries := Rank(accounts)
	s.cache.SetDefault(snapshotKey, entries)

	start := time.Now()
	if err := s.store.Save(ctx, entries); err != nil {
		s.logger.Errorf("failed to save leaderboard snapshot: %v", err)
	} else {
		s.logger.WithField("duration", time.Since(start)).Debugf("saved leaderboard snapshot of %d entries", len(entries))
	}
	return entries, nil
}

package data

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gorm.io/gorm"
)

func createPlayers(t *testing.T, db *gorm.DB, usernames ...string) {
	t.Helper()
	for _, username := range usernames {
		if err := CreateAccount(db, &Account{Username: username, Password: "x", Role: RolePlayer}); err != nil {
			t.Fatalf("error creating test account %s: %v", username, err)
		}
	}
}

func statsOf(t *testing.T, db *gorm.DB, username string) [2]int {
	t.Helper()
	account, err := FindAccountByUsername(db, username)
	if err != nil || account == nil {
		t.Fatalf("error looking up %s: %v", username, err)
	}
	return [2]int{account.Wins, account.Played}
}

func TestRecordMatch(t *testing.T) {
	db := setUpDatabase(t)
	createPlayers(t, db, "alice", "bob")

	result := &MatchResult{
		MatchID:      "match-1",
		RoomID:       1,
		Winners:      []string{"alice"},
		Participants: []string{"alice", "bob"},
	}
	if err := RecordMatch(db, result); err != nil {
		t.Fatalf("RecordMatch() returned an unexpected error: %v", err)
	}

	if diff := cmp.Diff([2]int{1, 1}, statsOf(t, db, "alice")); diff != "" {
		t.Errorf("alice stats mismatch; diff:\n%s", diff)
	}
	if diff := cmp.Diff([2]int{0, 1}, statsOf(t, db, "bob")); diff != "" {
		t.Errorf("bob stats mismatch; diff:\n%s", diff)
	}

	stored, err := FindMatchResult(db, "match-1")
	if err != nil || stored == nil {
		t.Fatalf("FindMatchResult() = %v, %v", stored, err)
	}
	if diff := cmp.Diff(result.Participants, stored.Participants); diff != "" {
		t.Errorf("stored participants mismatch; diff:\n%s", diff)
	}
}

func TestRecordMatch_Twice(t *testing.T) {
	db := setUpDatabase(t)
	createPlayers(t, db, "alice", "bob")

	for i := 0; i < 2; i++ {
		err := RecordMatch(db, &MatchResult{
			MatchID:      "match-1",
			RoomID:       1,
			Winners:      []string{"alice"},
			Participants: []string{"alice", "bob"},
		})
		if i == 1 && !errors.Is(err, ErrMatchAlreadyRecorded) {
			t.Fatalf("expected ErrMatchAlreadyRecorded on the second report, got %v", err)
		}
	}

	if diff := cmp.Diff([2]int{1, 1}, statsOf(t, db, "alice")); diff != "" {
		t.Errorf("alice stats counted twice; diff:\n%s", diff)
	}
}

func TestRecordMatch_UnknownAccountRollsBack(t *testing.T) {
	db := setUpDatabase(t)
	createPlayers(t, db, "alice")

	err := RecordMatch(db, &MatchResult{
		MatchID:      "match-2",
		RoomID:       2,
		Winners:      []string{"alice"},
		Participants: []string{"alice", "mallory"},
	})
	if !errors.Is(err, ErrUnknownAccount) {
		t.Fatalf("expected ErrUnknownAccount, got %v", err)
	}

	if diff := cmp.Diff([2]int{0, 0}, statsOf(t, db, "alice")); diff != "" {
		t.Errorf("alice stats changed despite rollback; diff:\n%s", diff)
	}
	if stored, _ := FindMatchResult(db, "match-2"); stored != nil {
		t.Errorf("expected no stored result after rollback, got %v", stored)
	}
}

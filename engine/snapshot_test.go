package engine

import (
	"testing"
)

func TestSnapshot(t *testing.T) {
	eng, db := newTestEngine(t, Config{HistoryLimit: 30})
	userID := seedUser(t, db, "")

	if _, err := eng.GrantFreezes(userID, 2); err != nil {
		t.Fatalf("grant freezes: %v", err)
	}
	day := "2024-03-01"
	for i := 0; i < 3; i++ {
		if _, err := eng.EvaluateDay(userID, day, true); err != nil {
			t.Fatalf("evaluate %s: %v", day, err)
		}
		day, _ = NextDay(day)
	}

	snap, err := eng.Snapshot(userID)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.CurrentStreak != 3 || snap.LongestStreak != 3 {
		t.Fatalf("streak = %d/%d, want 3/3", snap.CurrentStreak, snap.LongestStreak)
	}
	if snap.LastEvaluatedDate != "2024-03-03" {
		t.Fatalf("last evaluated = %s", snap.LastEvaluatedDate)
	}
	if snap.FreezesAvailable != 2 {
		t.Fatalf("freezes = %d, want 2", snap.FreezesAvailable)
	}
	if snap.CoinBalance != 25 {
		t.Fatalf("balance = %d, want 25 from the 3-day milestone", snap.CoinBalance)
	}
	if len(snap.History) != 3 {
		t.Fatalf("history = %d records, want 3", len(snap.History))
	}
	if snap.NextMilestone == nil || snap.NextMilestone.Threshold != 7 {
		t.Fatalf("next milestone = %+v, want threshold 7", snap.NextMilestone)
	}
	if snap.DaysUntilNext != 4 {
		t.Fatalf("days until next = %d, want 4", snap.DaysUntilNext)
	}
}

func TestSnapshotUntouchedUser(t *testing.T) {
	eng, db := newTestEngine(t, Config{})
	userID := seedUser(t, db, "")

	snap, err := eng.Snapshot(userID)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.CurrentStreak != 0 || snap.CoinBalance != 0 || snap.FreezesAvailable != 0 {
		t.Fatalf("fresh user snapshot not zeroed: %+v", snap)
	}
	if len(snap.History) != 0 {
		t.Fatalf("history = %d, want empty", len(snap.History))
	}
	if snap.NextMilestone == nil || snap.NextMilestone.Threshold != 3 {
		t.Fatalf("next milestone = %+v, want threshold 3", snap.NextMilestone)
	}
}

func TestHistoryBounds(t *testing.T) {
	eng, db := newTestEngine(t, Config{})
	userID := seedUser(t, db, "")

	day := "2024-03-01"
	for i := 0; i < 5; i++ {
		if _, err := eng.EvaluateDay(userID, day, true); err != nil {
			t.Fatalf("evaluate %s: %v", day, err)
		}
		day, _ = NextDay(day)
	}

	records, err := eng.History(userID, "2024-03-02", "2024-03-04")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("records = %d, want 3", len(records))
	}
	if records[0].Date != "2024-03-02" || records[2].Date != "2024-03-04" {
		t.Fatalf("range = %s..%s, want oldest first", records[0].Date, records[2].Date)
	}

	// Open-ended bounds return everything up to the history limit.
	records, err = eng.History(userID, "", "")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(records) != 5 {
		t.Fatalf("records = %d, want 5", len(records))
	}

	if _, err := eng.History(userID, "bogus", ""); err == nil {
		t.Fatal("expected error for malformed bound")
	}
}

func TestCelebrations(t *testing.T) {
	eng, db := newTestEngine(t, Config{})
	userID := seedUser(t, db, "")

	day := "2024-03-01"
	for i := 0; i < 3; i++ {
		if _, err := eng.EvaluateDay(userID, day, true); err != nil {
			t.Fatalf("evaluate %s: %v", day, err)
		}
		day, _ = NextDay(day)
	}

	pending, err := eng.PendingCelebrations(userID)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 1 || pending[0].Threshold != 3 {
		t.Fatalf("pending = %+v, want the 3-day award", pending)
	}

	if err := eng.AcknowledgeCelebration(userID, 3); err != nil {
		t.Fatalf("acknowledge: %v", err)
	}
	pending, _ = eng.PendingCelebrations(userID)
	if len(pending) != 0 {
		t.Fatalf("pending = %+v after ack, want none", pending)
	}

	// Acking twice, or acking an award that does not exist, fails.
	if err := eng.AcknowledgeCelebration(userID, 3); err == nil {
		t.Fatal("expected error on double acknowledge")
	}
	if err := eng.AcknowledgeCelebration(userID, 7); err == nil {
		t.Fatal("expected error for unearned threshold")
	}
}

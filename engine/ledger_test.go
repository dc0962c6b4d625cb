package engine

import (
	"errors"
	"testing"

	"github.com/joshshshshs/mymacroai-sub002/models"
)

func TestCreditAndDebit(t *testing.T) {
	eng, db := newTestEngine(t, Config{})
	userID := seedUser(t, db, "")

	if err := eng.Credit(userID, 500, "purchase:coins", "receipt:abc"); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := eng.Debit(userID, 200, "shop:freeze"); err != nil {
		t.Fatalf("debit: %v", err)
	}

	balance, err := eng.Balance(userID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 300 {
		t.Fatalf("balance = %d, want 300", balance)
	}

	txs, err := eng.Transactions(userID, 10)
	if err != nil {
		t.Fatalf("transactions: %v", err)
	}
	if len(txs) != 2 {
		t.Fatalf("ledger entries = %d, want 2", len(txs))
	}
	// Newest first: the debit with its signed amount.
	if txs[0].Amount != -200 || txs[1].Amount != 500 {
		t.Fatalf("amounts = %d, %d; want -200, 500", txs[0].Amount, txs[1].Amount)
	}

	// The balance must equal the running sum of the ledger.
	var sum int64
	for _, tx := range txs {
		sum += tx.Amount
	}
	if sum != balance {
		t.Fatalf("ledger sum %d != balance %d", sum, balance)
	}
}

func TestCreditDuplicateReference(t *testing.T) {
	eng, db := newTestEngine(t, Config{})
	userID := seedUser(t, db, "")

	if err := eng.Credit(userID, 100, "purchase:coins", "receipt:dup"); err != nil {
		t.Fatalf("credit: %v", err)
	}
	err := eng.Credit(userID, 100, "purchase:coins", "receipt:dup")
	if !errors.Is(err, ErrDuplicateReference) {
		t.Fatalf("got %v, want ErrDuplicateReference", err)
	}

	balance, _ := eng.Balance(userID)
	if balance != 100 {
		t.Fatalf("balance = %d after replayed receipt, want 100", balance)
	}
	var count int64
	db.Model(&models.CoinTransaction{}).Where("user_id = ?", userID).Count(&count)
	if count != 1 {
		t.Fatalf("ledger entries = %d, want 1", count)
	}
}

func TestDebitInsufficientBalance(t *testing.T) {
	eng, db := newTestEngine(t, Config{})
	userID := seedUser(t, db, "")

	if err := eng.Credit(userID, 50, "purchase:coins", ""); err != nil {
		t.Fatalf("credit: %v", err)
	}
	err := eng.Debit(userID, 100, "shop:freeze")
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("got %v, want ErrInsufficientBalance", err)
	}

	balance, _ := eng.Balance(userID)
	if balance != 50 {
		t.Fatalf("balance = %d after rejected spend, want 50", balance)
	}
	var count int64
	db.Model(&models.CoinTransaction{}).Where("user_id = ?", userID).Count(&count)
	if count != 1 {
		t.Fatalf("ledger entries = %d, rejected spend must not append", count)
	}
}

func TestDebitFromEmptyWallet(t *testing.T) {
	eng, db := newTestEngine(t, Config{})
	userID := seedUser(t, db, "")

	if err := eng.Debit(userID, 1, "shop:freeze"); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("got %v, want ErrInsufficientBalance", err)
	}
	balance, _ := eng.Balance(userID)
	if balance != 0 {
		t.Fatalf("balance = %d, want 0", balance)
	}
}

func TestNonPositiveAmountsRejected(t *testing.T) {
	eng, db := newTestEngine(t, Config{})
	userID := seedUser(t, db, "")

	if err := eng.Credit(userID, 0, "purchase:coins", ""); err == nil {
		t.Fatal("expected error for zero credit")
	}
	if err := eng.Credit(userID, -10, "purchase:coins", ""); err == nil {
		t.Fatal("expected error for negative credit")
	}
	if err := eng.Debit(userID, 0, "shop:freeze"); err == nil {
		t.Fatal("expected error for zero debit")
	}
}

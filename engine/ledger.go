package engine

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/joshshshshs/mymacroai-sub002/models"
)

// Credit adds coins to a user's wallet and appends a ledger entry. reference
// is an external idempotency key (payment receipt id); pass "" to generate
// one. Crediting the same reference twice fails with ErrDuplicateReference
// and leaves the ledger untouched.
func (e *Engine) Credit(userID uint, amount int64, reason, reference string) error {
	unlock := e.locks.acquire(userID)
	defer unlock()

	return e.db.Transaction(func(tx *gorm.DB) error {
		return e.creditTx(tx, userID, amount, reason, reference)
	})
}

// Debit removes coins from a user's wallet. The balance check and mutation
// happen inside one transaction on a locked wallet row, so a spend that would
// drive the balance negative is rejected with no partial effect.
func (e *Engine) Debit(userID uint, amount int64, reason string) error {
	unlock := e.locks.acquire(userID)
	defer unlock()

	return e.db.Transaction(func(tx *gorm.DB) error {
		return e.debitTx(tx, userID, amount, reason)
	})
}

// Balance returns the user's current coin balance.
func (e *Engine) Balance(userID uint) (int64, error) {
	var w models.Wallet
	err := e.db.Where("user_id = ?", userID).First(&w).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load wallet: %w", err)
	}
	if w.CoinBalance < 0 {
		e.log.Errorw("negative wallet balance detected", "user_id", userID, "balance", w.CoinBalance)
		return 0, fmt.Errorf("%w: wallet balance %d", ErrCorruptedState, w.CoinBalance)
	}
	return w.CoinBalance, nil
}

// Transactions returns the most recent ledger entries, newest first.
func (e *Engine) Transactions(userID uint, limit int) ([]models.CoinTransaction, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var txs []models.CoinTransaction
	if err := e.db.Where("user_id = ?", userID).Order("id DESC").Limit(limit).Find(&txs).Error; err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

func (e *Engine) creditTx(tx *gorm.DB, userID uint, amount int64, reason, reference string) error {
	if amount <= 0 {
		return fmt.Errorf("credit amount must be positive, got %d", amount)
	}
	if reference == "" {
		reference = uuid.NewString()
	} else {
		var dup models.CoinTransaction
		err := tx.Where("reference = ?", reference).First(&dup).Error
		if err == nil {
			return fmt.Errorf("%w: %s", ErrDuplicateReference, reference)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("check reference: %w", err)
		}
	}

	w, err := e.walletForUpdate(tx, userID)
	if err != nil {
		return err
	}

	entry := models.CoinTransaction{
		UserID:    userID,
		Amount:    amount,
		Reason:    reason,
		Reference: reference,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return fmt.Errorf("append credit: %w", err)
	}

	w.CoinBalance += amount
	if err := tx.Save(w).Error; err != nil {
		return fmt.Errorf("update balance: %w", err)
	}
	return nil
}

func (e *Engine) debitTx(tx *gorm.DB, userID uint, amount int64, reason string) error {
	if amount <= 0 {
		return fmt.Errorf("debit amount must be positive, got %d", amount)
	}

	w, err := e.walletForUpdate(tx, userID)
	if err != nil {
		return err
	}
	if w.CoinBalance < amount {
		return fmt.Errorf("%w: have %d, need %d", ErrInsufficientBalance, w.CoinBalance, amount)
	}

	entry := models.CoinTransaction{
		UserID:    userID,
		Amount:    -amount,
		Reason:    reason,
		Reference: uuid.NewString(),
	}
	if err := tx.Create(&entry).Error; err != nil {
		return fmt.Errorf("append debit: %w", err)
	}

	w.CoinBalance -= amount
	if err := tx.Save(w).Error; err != nil {
		return fmt.Errorf("update balance: %w", err)
	}
	return nil
}

// walletForUpdate loads the user's wallet row with a write lock, creating it
// on first touch. The lock serializes concurrent spends on MySQL; SQLite
// (tests) serializes writers itself.
func (e *Engine) walletForUpdate(tx *gorm.DB, userID uint) (*models.Wallet, error) {
	var w models.Wallet
	err := forUpdate(tx).Where("user_id = ?", userID).First(&w).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		w = models.Wallet{UserID: userID}
		if err := tx.Create(&w).Error; err != nil {
			return nil, fmt.Errorf("create wallet: %w", err)
		}
		return &w, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lock wallet: %w", err)
	}
	if w.CoinBalance < 0 {
		e.log.Errorw("negative wallet balance detected", "user_id", userID, "balance", w.CoinBalance)
		return nil, fmt.Errorf("%w: wallet balance %d", ErrCorruptedState, w.CoinBalance)
	}
	return &w, nil
}

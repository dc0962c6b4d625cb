package engine

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/joshshshshs/mymacroai-sub002/models"
)

// GrantFreezes adds freeze tokens to a user's inventory, e.g. on purchase
// fulfillment or a subscription perk. Returns the new token count.
func (e *Engine) GrantFreezes(userID uint, n int) (int, error) {
	unlock := e.locks.acquire(userID)
	defer unlock()

	var count int
	err := e.db.Transaction(func(tx *gorm.DB) error {
		var err error
		count, err = e.grantFreezesTx(tx, userID, n)
		return err
	})
	return count, err
}

// FreezeBalance returns the user's unconsumed freeze token count.
func (e *Engine) FreezeBalance(userID uint) (int, error) {
	var inv models.FreezeInventory
	err := e.db.Where("user_id = ?", userID).First(&inv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load freeze inventory: %w", err)
	}
	if inv.FreezesAvailable < 0 {
		e.log.Errorw("negative freeze inventory detected", "user_id", userID, "count", inv.FreezesAvailable)
		return 0, fmt.Errorf("%w: freeze inventory %d", ErrCorruptedState, inv.FreezesAvailable)
	}
	return inv.FreezesAvailable, nil
}

func (e *Engine) grantFreezesTx(tx *gorm.DB, userID uint, n int) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("freeze grant must be positive, got %d", n)
	}
	inv, err := e.freezesForUpdate(tx, userID)
	if err != nil {
		return 0, err
	}
	if e.cfg.MaxFreezes > 0 && inv.FreezesAvailable+n > e.cfg.MaxFreezes {
		return 0, fmt.Errorf("freeze inventory capped at %d", e.cfg.MaxFreezes)
	}
	inv.FreezesAvailable += n
	if err := tx.Save(inv).Error; err != nil {
		return 0, fmt.Errorf("update freeze inventory: %w", err)
	}
	return inv.FreezesAvailable, nil
}

// consumeFreezeTx burns exactly one freeze token. It is the only decrement
// path, invoked by day evaluation and manual restore.
func (e *Engine) consumeFreezeTx(tx *gorm.DB, userID uint) error {
	inv, err := e.freezesForUpdate(tx, userID)
	if err != nil {
		return err
	}
	if inv.FreezesAvailable < 1 {
		return fmt.Errorf("%w: have %d", ErrInsufficientFreezes, inv.FreezesAvailable)
	}
	inv.FreezesAvailable--
	if err := tx.Save(inv).Error; err != nil {
		return fmt.Errorf("update freeze inventory: %w", err)
	}
	return nil
}

func (e *Engine) freezesForUpdate(tx *gorm.DB, userID uint) (*models.FreezeInventory, error) {
	var inv models.FreezeInventory
	err := forUpdate(tx).Where("user_id = ?", userID).First(&inv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		inv = models.FreezeInventory{UserID: userID}
		if err := tx.Create(&inv).Error; err != nil {
			return nil, fmt.Errorf("create freeze inventory: %w", err)
		}
		return &inv, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lock freeze inventory: %w", err)
	}
	if inv.FreezesAvailable < 0 {
		e.log.Errorw("negative freeze inventory detected", "user_id", userID, "count", inv.FreezesAvailable)
		return nil, fmt.Errorf("%w: freeze inventory %d", ErrCorruptedState, inv.FreezesAvailable)
	}
	return &inv, nil
}

package engine

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/joshshshshs/mymacroai-sub002/models"
)

// DefaultFreezePrice is the coin cost of one freeze token when the config
// does not override it.
const DefaultFreezePrice int64 = 200

// CosmeticItem is one purchasable cosmetic unlock in the shop catalog.
// The catalog is reference data, immutable at runtime.
type CosmeticItem struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Icon  string `json:"icon"`
	Price int64  `json:"price"`
}

// DefaultCosmetics is the built-in cosmetic catalog.
var DefaultCosmetics = []CosmeticItem{
	{ID: "flame-ember", Name: "Ember Flame", Icon: "flame-orange", Price: 150},
	{ID: "flame-azure", Name: "Azure Flame", Icon: "flame-blue", Price: 300},
	{ID: "flame-aurora", Name: "Aurora Flame", Icon: "flame-gradient", Price: 600},
	{ID: "badge-gold-ring", Name: "Gold Ring Badge", Icon: "ring-gold", Price: 450},
	{ID: "theme-midnight", Name: "Midnight Theme", Icon: "theme-dark", Price: 800},
}

// Cosmetics returns the shop catalog.
func (e *Engine) Cosmetics() []CosmeticItem {
	out := make([]CosmeticItem, len(e.cosmetics))
	copy(out, e.cosmetics)
	return out
}

// CosmeticUnlocks lists the cosmetics a user has purchased.
func (e *Engine) CosmeticUnlocks(userID uint) ([]models.CosmeticUnlock, error) {
	var unlocks []models.CosmeticUnlock
	if err := e.db.Where("user_id = ?", userID).Order("id ASC").Find(&unlocks).Error; err != nil {
		return nil, fmt.Errorf("list cosmetic unlocks: %w", err)
	}
	return unlocks, nil
}

// PurchaseFreezes spends coins on n freeze tokens: one transaction debits the
// wallet with reason "shop:freeze" and grants the tokens, or does neither.
// Returns the new freeze count.
func (e *Engine) PurchaseFreezes(userID uint, n int) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("freeze purchase count must be positive, got %d", n)
	}

	unlock := e.locks.acquire(userID)
	defer unlock()

	var count int
	err := e.db.Transaction(func(tx *gorm.DB) error {
		cost := e.cfg.FreezePrice * int64(n)
		if err := e.debitTx(tx, userID, cost, "shop:freeze"); err != nil {
			return err
		}
		var err error
		count, err = e.grantFreezesTx(tx, userID, n)
		return err
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// PurchaseCosmetic spends coins on a cosmetic unlock. The debit and the
// unlock row commit together; buying an owned item or an unknown id fails
// with no ledger effect.
func (e *Engine) PurchaseCosmetic(userID uint, itemID string) (*models.CosmeticUnlock, error) {
	item, ok := e.cosmeticByID(itemID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCosmeticUnknown, itemID)
	}

	unlock := e.locks.acquire(userID)
	defer unlock()

	var out models.CosmeticUnlock
	err := e.db.Transaction(func(tx *gorm.DB) error {
		var existing models.CosmeticUnlock
		err := tx.Where("user_id = ? AND item_id = ?", userID, itemID).First(&existing).Error
		if err == nil {
			return fmt.Errorf("%w: %s", ErrCosmeticOwned, itemID)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("check cosmetic unlock: %w", err)
		}

		if err := e.debitTx(tx, userID, item.Price, "shop:cosmetic:"+item.ID); err != nil {
			return err
		}

		out = models.CosmeticUnlock{UserID: userID, ItemID: item.ID, PaidCoins: item.Price}
		if err := tx.Create(&out).Error; err != nil {
			return fmt.Errorf("record cosmetic unlock: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (e *Engine) cosmeticByID(itemID string) (CosmeticItem, bool) {
	for _, item := range e.cosmetics {
		if item.ID == itemID {
			return item, true
		}
	}
	return CosmeticItem{}, false
}

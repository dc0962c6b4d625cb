package models

import "time"

// Wallet holds one user's coin balance. The balance is denormalized for fast
// reads but must always equal the running sum of the user's CoinTransactions;
// both are written in the same database transaction.
type Wallet struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	CoinBalance int64     `gorm:"not null;default:0" json:"coin_balance"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CoinTransaction is one append-only ledger entry. Amount is signed: credits
// positive, debits negative. Rows are never updated or deleted.
// Reference carries an external idempotency key (payment receipt id) or a
// generated uuid; the unique index rejects double-crediting the same receipt.
type CoinTransaction struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	Amount    int64     `gorm:"not null" json:"amount"`
	Reason    string    `gorm:"size:128;not null" json:"reason"`
	Reference string    `gorm:"size:64;uniqueIndex" json:"reference"`
	CreatedAt time.Time `json:"created_at"`
}

// FreezeInventory counts one user's unconsumed freeze tokens.
type FreezeInventory struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	UserID           uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	FreezesAvailable int       `gorm:"not null;default:0" json:"freezes_available"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// CosmeticUnlock records a cosmetic item purchased with coins. Unlocks are
// permanent; the unique index prevents paying twice for the same item.
type CosmeticUnlock struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_cosmetic_unlocks_user_item" json:"user_id"`
	ItemID    string    `gorm:"size:64;not null;uniqueIndex:idx_cosmetic_unlocks_user_item" json:"item_id"`
	PaidCoins int64     `gorm:"not null" json:"paid_coins"`
	CreatedAt time.Time `json:"created_at"`
}

package controllers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/joshshshshs/mymacroai-sub002/engine"
	"github.com/joshshshshs/mymacroai-sub002/utils"
)

// ShopController serves the wallet, coin purchases and the cosmetic shop.
type ShopController struct {
	DB     *gorm.DB
	Engine *engine.Engine
}

func NewShopController(db *gorm.DB, eng *engine.Engine) *ShopController {
	return &ShopController{DB: db, Engine: eng}
}

// Wallet returns the coin balance and recent transactions.
func (sh *ShopController) Wallet(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		return
	}

	balance, err := sh.Engine.Balance(userID)
	if err != nil {
		streakError(ctx, err)
		return
	}
	txs, err := sh.Engine.Transactions(userID, 50)
	if err != nil {
		streakError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"balance": balance, "transactions": txs})
}

// Transactions returns the caller's ledger entries, newest first.
func (sh *ShopController) Transactions(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "50"))
	txs, err := sh.Engine.Transactions(userID, limit)
	if err != nil {
		streakError(ctx, err)
		return
	}
	utils.Success(ctx, txs)
}

type coinPurchaseRequest struct {
	Amount    int64  `json:"amount" binding:"required"`
	ReceiptID string `json:"receipt_id" binding:"required"`
}

// PurchaseCoins credits coins from a store receipt. The receipt ID is
// the ledger reference, so replaying the same receipt is rejected.
func (sh *ShopController) PurchaseCoins(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		return
	}

	var req coinPurchaseRequest
	if err := ctx.ShouldBindJSON(&req); err != nil || req.Amount <= 0 {
		utils.Error(ctx, http.StatusBadRequest, 40001, "invalid request payload")
		return
	}

	reason := "purchase:coins"
	if err := sh.Engine.Credit(userID, req.Amount, reason, fmt.Sprintf("receipt:%s", req.ReceiptID)); err != nil {
		streakError(ctx, err)
		return
	}

	balance, err := sh.Engine.Balance(userID)
	if err != nil {
		streakError(ctx, err)
		return
	}
	utils.UpdateLeaderboardScore(utils.LeaderboardCoins, userID, float64(balance))
	utils.InvalidateByPrefix(fmt.Sprintf("user:%d:streak", userID))
	utils.Success(ctx, gin.H{"balance": balance})
}

type freezePurchaseRequest struct {
	Count int `json:"count"`
}

// PurchaseFreezes buys freeze tokens with coins.
func (sh *ShopController) PurchaseFreezes(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		return
	}

	var req freezePurchaseRequest
	if err := ctx.ShouldBindJSON(&req); err != nil && ctx.Request.ContentLength > 0 {
		utils.Error(ctx, http.StatusBadRequest, 40001, "invalid request payload")
		return
	}
	if req.Count <= 0 {
		req.Count = 1
	}

	available, err := sh.Engine.PurchaseFreezes(userID, req.Count)
	if err != nil {
		streakError(ctx, err)
		return
	}
	if balance, err := sh.Engine.Balance(userID); err == nil {
		utils.UpdateLeaderboardScore(utils.LeaderboardCoins, userID, float64(balance))
	}
	utils.InvalidateByPrefix(fmt.Sprintf("user:%d:streak", userID))
	utils.Success(ctx, gin.H{"freezes_available": available})
}

// Cosmetics lists the catalog together with the caller's owned items.
func (sh *ShopController) Cosmetics(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		return
	}

	unlocks, err := sh.Engine.CosmeticUnlocks(userID)
	if err != nil {
		streakError(ctx, err)
		return
	}
	owned := make(map[string]bool, len(unlocks))
	for _, u := range unlocks {
		owned[u.ItemID] = true
	}

	type catalogItem struct {
		engine.CosmeticItem
		Owned bool `json:"owned"`
	}
	catalog := make([]catalogItem, 0, len(sh.Engine.Cosmetics()))
	for _, item := range sh.Engine.Cosmetics() {
		catalog = append(catalog, catalogItem{CosmeticItem: item, Owned: owned[item.ID]})
	}
	utils.Success(ctx, catalog)
}

// PurchaseCosmetic unlocks a cosmetic item for coins.
func (sh *ShopController) PurchaseCosmetic(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		return
	}

	itemID := ctx.Param("id")
	if itemID == "" {
		utils.Error(ctx, http.StatusBadRequest, 40001, "missing item id")
		return
	}

	unlock, err := sh.Engine.PurchaseCosmetic(userID, itemID)
	if err != nil {
		streakError(ctx, err)
		return
	}
	if balance, err := sh.Engine.Balance(userID); err == nil {
		utils.UpdateLeaderboardScore(utils.LeaderboardCoins, userID, float64(balance))
	}
	utils.InvalidateByPrefix(fmt.Sprintf("user:%d:streak", userID))
	utils.Success(ctx, unlock)
}

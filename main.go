package main

import (
	"github.com/joshshshshs/mymacroai-sub002/config"
	"github.com/joshshshshs/mymacroai-sub002/engine"
	"github.com/joshshshshs/mymacroai-sub002/jobs"
	"github.com/joshshshshs/mymacroai-sub002/models"
	"github.com/joshshshshs/mymacroai-sub002/routes"
	"github.com/joshshshshs/mymacroai-sub002/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}

	db := config.InitDatabase(
		&models.User{},
		&models.StreakState{},
		&models.DayRecord{},
		&models.MilestoneAward{},
		&models.Wallet{},
		&models.CoinTransaction{},
		&models.FreezeInventory{},
		&models.CosmeticUnlock{},
	)

	eng, err := engine.New(db, engine.Config{
		FreezePrice:  int64(cfg.FreezePriceCoins),
		MaxFreezes:   cfg.MaxFreezes,
		HistoryLimit: cfg.HistoryLimitDays,
	}, utils.Sugar)
	if err != nil {
		utils.Sugar.Fatalf("engine init failed: %v", err)
	}
	eng.Subscribe(func(ev engine.Event) {
		utils.Sugar.Infow("streak event", "name", ev.Name, "user_id", ev.UserID, "day", ev.DayKey)
	})

	scheduler := jobs.NewScheduler(db, eng, utils.Sugar)
	if err := scheduler.Start(cfg.RolloverCron); err != nil {
		utils.Sugar.Fatalf("scheduler start failed: %v", err)
	}
	defer scheduler.Stop()

	r := routes.SetupRouter(db, eng)

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}

package main

import (
	"log"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"rewardvault/pkg/config"
	"rewardvault/pkg/db"
	"rewardvault/pkg/gen"
	"rewardvault/pkg/hashistack/secretmanager"
	"rewardvault/pkg/httpapi"
	"rewardvault/pkg/logger"
	"rewardvault/pkg/redis"
	"rewardvault/pkg/secretcipher"
	"rewardvault/pkg/server"
	"rewardvault/pkg/task"
	"rewardvault/services/audit"
	"rewardvault/services/inventory"
	"rewardvault/services/rewardaccount"
	"rewardvault/services/submission"
)

func main() {
	// Redis-backed modules are chosen before the graph is built.
	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	opts := []fx.Option{
		secretmanager.Module,
		config.Module,
		logger.Module,
		db.Module,
		gen.Module,
		fx.Provide(provideCipher),
		fx.Invoke(migrate),
		httpapi.Module,
		audit.Module,
		submission.Module,
		rewardaccount.Module,
		inventory.Module,
		server.ProvideHTTPServer,
		fxLogger,
	}

	if cfg.RedisEnabled() {
		opts = append(opts,
			redis.Module,
			task.Client,
			task.Server,
			audit.TaskModule,
			rewardaccount.TaskModule,
			inventory.CacheModule,
		)
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	app := fx.New(opts...)

	app.Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	if cfg.AppEnv == "production" {
		return fxevent.NopLogger
	}
	return &fxevent.ZapLogger{Logger: logger}
})

func provideCipher(cfg *config.Config) (*secretcipher.Cipher, error) {
	return secretcipher.New(cfg.SecretAES)
}

// migrate creates the tables when DATABASE.AUTO_MIGRATE is set. The
// submissions table is normally owned elsewhere and only migrated here for
// local setups.
func migrate(cfg *config.Config, conn *gorm.DB) error {
	if !cfg.Database.AutoMigrate {
		return nil
	}

	zap.L().Info("running auto migration")
	return conn.AutoMigrate(
		&rewardaccount.RewardAccount{},
		&audit.Entry{},
		&submission.Submission{},
	)
}

// Package wire provides dependency injection for the image rating
// application. It creates singleton services with lazy initialization.
package wire

import (
	"log"
	"os"
	"sync"

	"github.com/example/imagerank/internal/adapters/filesystem"
	"github.com/example/imagerank/internal/adapters/sqlite"
	"github.com/example/imagerank/internal/app"
	"github.com/example/imagerank/internal/config"
	"github.com/example/imagerank/internal/core/convergence"
	"github.com/example/imagerank/internal/core/pairing"
	"github.com/example/imagerank/internal/core/rating"
	"github.com/example/imagerank/internal/db"
	"github.com/example/imagerank/internal/ports/primary"
)

var (
	catalogService primary.CatalogService
	sessionService primary.SessionService
	coreConfig     config.CoreConfig
	once           sync.Once
)

// CatalogService returns the singleton CatalogService instance.
func CatalogService() primary.CatalogService {
	once.Do(initServices)
	return catalogService
}

// SessionService returns the singleton SessionService instance.
func SessionService() primary.SessionService {
	once.Do(initServices)
	return sessionService
}

// Config returns the CoreConfig the singletons were built from.
func Config() config.CoreConfig {
	once.Do(initServices)
	return coreConfig
}

// initServices initializes all services and their dependencies. This
// is called once via sync.Once.
func initServices() {
	cfg, err := config.Load(configPath())
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	coreConfig = cfg

	database, err := db.GetDB()
	if err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}

	imageRepo := sqlite.NewImageRepository(database, cfg.RecordChoiceRetries)
	choiceRepo := sqlite.NewChoiceRepository(database)
	appStateRepo := sqlite.NewAppStateRepository(database)
	catalogRepo := sqlite.NewCatalogRepository(database)
	scanner := filesystem.NewScanner()

	catalogImpl := app.NewCatalogService(catalogRepo, imageRepo, scanner, cfg.MaxFiles, cfg.MaxFileBytes, cfg.ScanWorkers)
	catalogService = catalogImpl

	sessionService = app.NewSessionService(
		imageRepo, choiceRepo, appStateRepo, catalogRepo, catalogImpl,
		ratingConfig(cfg), pairingConfig(cfg), convergenceConfig(cfg),
	)
}

func ratingConfig(cfg config.CoreConfig) rating.Config {
	return rating.Config{
		SigmaMin:       cfg.SigmaMin,
		SigmaDecay:     cfg.SigmaDecay,
		KFactorBase:    cfg.KFactorBase,
		KFactorMin:     cfg.KFactorMin,
		KFactorMax:     cfg.KFactorMax,
		SkipCooldownLo: cfg.SkipCooldownMin,
		SkipCooldownHi: cfg.SkipCooldownMax,
	}
}

func pairingConfig(cfg config.CoreConfig) pairing.Config {
	return pairing.Config{
		EpsilonGreedy:         cfg.EpsilonGreedy,
		SkipInjectProbability: cfg.SkipInjectProbability,
		RecentImagesWindow:    cfg.RecentImagesWindow,
		RecentPairsWindow:     cfg.RecentPairsWindow,
		ShortlistK:            cfg.ShortlistK,
		InfoGapAlpha:          cfg.InfoGapAlpha,
	}
}

func convergenceConfig(cfg config.CoreConfig) convergence.Config {
	return convergence.Config{
		TargetTopK:        cfg.TargetTopK,
		MinExposures:      cfg.MinExposuresPerImage,
		SigmaConfidentMax: cfg.SigmaConfidentMax,
		StabilityWindow:   cfg.StabilityWindow,
		TargetExposures:   cfg.TargetExposures,
	}
}

// configPath returns the path to the optional config override file,
// honoring IMAGERANK_CONFIG_PATH for tests and custom deployments.
func configPath() string {
	if p := os.Getenv("IMAGERANK_CONFIG_PATH"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home + "/.imagerank/config.json"
}

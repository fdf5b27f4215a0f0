package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/joescharf/sos/internal/classify"
	"github.com/joescharf/sos/internal/emergency"
	"github.com/joescharf/sos/internal/geo"
	"github.com/joescharf/sos/internal/logging"
	"github.com/joescharf/sos/internal/models"
	"github.com/joescharf/sos/internal/store"
	"github.com/joescharf/sos/internal/voice"
)

// app is the in-process orchestrator shared by console, serve and mcp.
type app struct {
	logger     *zap.Logger
	classifier classify.Classifier
	locator    *geo.Geolocator
	archive    store.Store // nil when archive.enabled is false
	machine    *emergency.Machine
}

// Close stops the machine, then the geolocator, then the archive.
func (a *app) Close() {
	a.machine.Close()
	a.locator.Close()
	if a.archive != nil {
		_ = a.archive.Close()
	}
	_ = a.logger.Sync()
}

// newLogger builds the zap logger from log.level and log.development.
func newLogger() (*zap.Logger, error) {
	return logging.New(viper.GetString("log.level"), viper.GetBool("log.development"))
}

// newClassifier builds the configured classifier. The LLM strategy wraps
// the keyword classifier, which it falls back to on any failure.
func newClassifier(logger *zap.Logger) (classify.Classifier, error) {
	sets := classify.DefaultKeywords()
	if path := viper.GetString("classifier.keywords_file"); path != "" {
		loaded, err := classify.LoadKeywordFile(path, sets)
		if err != nil {
			return nil, err
		}
		sets = loaded
	}
	keyword := classify.NewKeywordClassifier(sets)

	switch strategy := viper.GetString("classifier.strategy"); strategy {
	case "", "keyword":
		return keyword, nil
	case "llm":
		apiKey := viper.GetString("anthropic.api_key")
		if apiKey == "" {
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		if apiKey == "" {
			logger.Warn("classifier.strategy is llm but no API key is configured, using keywords")
			return keyword, nil
		}
		return classify.NewLLMClassifier(apiKey, viper.GetString("anthropic.model"), keyword, logger), nil
	default:
		return nil, fmt.Errorf("unknown classifier strategy: %s", strategy)
	}
}

// newGeolocator builds the geolocator from location.* config.
func newGeolocator(logger *zap.Logger) (*geo.Geolocator, error) {
	provider, err := geo.NewProvider(viper.GetString("location.provider"), models.Coordinates{
		Latitude:  viper.GetFloat64("location.latitude"),
		Longitude: viper.GetFloat64("location.longitude"),
	})
	if err != nil {
		return nil, err
	}
	cfg := geo.Config{
		Timeout: viper.GetDuration("location.timeout"),
		Logger:  logger,
	}
	if prober, ok := provider.(geo.PermissionProber); ok {
		cfg.Prober = prober
	}
	return geo.New(provider, cfg), nil
}

// openArchive opens and migrates the incident archive, or returns nil
// when archiving is disabled.
func openArchive(ctx context.Context) (store.Store, error) {
	if !viper.GetBool("archive.enabled") {
		return nil, nil
	}
	s, err := store.NewSQLiteStore(viper.GetString("db_path"))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return s, nil
}

// newApp wires every component from config.
func newApp(ctx context.Context) (*app, error) {
	logger, err := newLogger()
	if err != nil {
		return nil, err
	}

	cls, err := newClassifier(logger)
	if err != nil {
		return nil, err
	}

	locator, err := newGeolocator(logger)
	if err != nil {
		return nil, err
	}

	archive, err := openArchive(ctx)
	if err != nil {
		locator.Close()
		return nil, err
	}

	cfg := emergency.Config{
		Classifier:          cls,
		Locator:             locator,
		Transcriber:         voice.New(viper.GetString("voice.transcript")),
		AutoRequestLocation: viper.GetBool("location.auto_request"),
		Logger:              logger,
	}
	if archive != nil {
		cfg.Archiver = archive
	}

	a := &app{
		logger:     logger,
		classifier: cls,
		locator:    locator,
		archive:    archive,
		machine:    emergency.New(cfg),
	}
	locator.Init(ctx)

	logger.Debug("app ready",
		zap.String("classifier", viper.GetString("classifier.strategy")),
		zap.String("location_provider", viper.GetString("location.provider")),
		zap.Bool("archive", archive != nil))
	return a, nil
}

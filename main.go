package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
	"gopkg.in/yaml.v2"

	"healthaccess/db"
	"healthaccess/engine"
	"healthaccess/features"
	hhttp "healthaccess/http"
	"healthaccess/llm"
	"healthaccess/ml"
)

type Config struct {
	Server   hhttp.ServerConfig `yaml:"server"`
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	Model struct {
		Path string `yaml:"path"`
	} `yaml:"model"`
	Features struct {
		Endpoint  string        `yaml:"endpoint"`
		Timeout   time.Duration `yaml:"timeout"`
		CacheSize int           `yaml:"cache_size"`
	} `yaml:"features"`
	LLM struct {
		BaseURL   string        `yaml:"base_url"`
		APIKeyEnv string        `yaml:"api_key_env"`
		Model     string        `yaml:"model"`
		Timeout   time.Duration `yaml:"timeout"`
		MaxTokens int           `yaml:"max_tokens"`
	} `yaml:"llm"`
	Engine engine.Config `yaml:"engine"`
	Log    struct {
		Level      string `yaml:"level"`
		File       string `yaml:"file"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
	} `yaml:"log"`
}

func main() {
	configPath := "config.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}
	config, err := loadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := newLogger(config)
	defer logger.Sync()

	store, err := db.Open(config.Database.Path)
	if err != nil {
		logger.Fatal("failed to open database", zap.String("path", config.Database.Path), zap.Error(err))
	}
	defer store.Close()
	logger.Info("database ready", zap.String("path", config.Database.Path))

	// A missing model is not fatal: the generator pathway still serves
	// recommendations until a model is trained and the service restarted.
	var classifier engine.Classifier
	model, err := ml.LoadModel(config.Model.Path)
	if err != nil {
		logger.Warn("classifier model not loaded, generator pathway only",
			zap.String("path", config.Model.Path), zap.Error(err))
	} else {
		classifier = model
		logger.Info("classifier model loaded",
			zap.String("version", model.Version),
			zap.Float64("accuracy", model.Accuracy))
		if closeWatcher, err := ml.WatchArtifact(config.Model.Path, logger); err != nil {
			logger.Warn("model artifact watcher unavailable", zap.Error(err))
		} else {
			defer closeWatcher()
		}
	}

	var provider engine.FeatureProvider = features.NewClient(config.Features.Endpoint, config.Features.Timeout)
	if cached, err := features.NewCachedProvider(provider, config.Features.CacheSize); err != nil {
		logger.Warn("feature cache disabled", zap.Error(err))
	} else {
		provider = cached
	}

	apiKeyEnv := config.LLM.APIKeyEnv
	if apiKeyEnv == "" {
		apiKeyEnv = "OPENAI_API_KEY"
	}
	generator := llm.NewClient(config.LLM.BaseURL, os.Getenv(apiKeyEnv), config.LLM.Model,
		config.LLM.Timeout, config.LLM.MaxTokens)

	eng := engine.New(config.Engine, provider, classifier, generator, store, logger)

	api := hhttp.NewAPI(eng, model, store, logger)
	server := hhttp.NewServer(config.Server, api, logger)
	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	if err := server.Stop(); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
}

func loadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var config Config
	if err := yaml.NewDecoder(file).Decode(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

func newLogger(config *Config) *zap.Logger {
	level := zapcore.InfoLevel
	if config.Log.Level != "" {
		if err := level.Set(config.Log.Level); err != nil {
			level = zapcore.InfoLevel
		}
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.Lock(os.Stdout), level),
	}
	if config.Log.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   config.Log.File,
			MaxSize:    config.Log.MaxSizeMB,
			MaxBackups: config.Log.MaxBackups,
			MaxAge:     config.Log.MaxAgeDays,
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(rotator), level))
	}

	return zap.New(zapcore.NewTee(cores...))
}

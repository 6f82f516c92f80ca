package main

import (
	"fmt"
	"log"
	"os"

	"github.com/eisenwinter/mdqd/cmd"
	"github.com/eisenwinter/mdqd/config"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	Version   = "?"
	BuildTime = "?"
	GitCommit = "-"
	GitRef    = "-"
)

func main() {
	//version info
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Printf("mdqd %s, built %s from %s (%s)\n", Version, BuildTime, GitCommit, GitRef)
		return
	}
	logger := bootstrap()
	defer func() {
		_ = logger.Sync()

	}()
	cmd.TopLevelLogger = logger
	cmd.Execute()
}

func bootstrap() *zap.Logger {
	if _, err := os.Stat(".env"); err == nil {
		err := godotenv.Load()
		if err != nil {
			log.Fatal("Error loading .env file")
		}
	}
	cfg := zap.NewProductionConfig()
	if r := os.Getenv("DEBUG_LOG"); r == "true" {
		cfg = zap.NewDevelopmentConfig()
	}
	logger, err := cfg.Build(zap.AddStacktrace(zap.ErrorLevel))
	if err != nil {
		log.Fatal(err)
	}
	cobra.OnInitialize(func() { initConfig(logger) })
	return logger
}

func setDefaults() {
	viper.SetDefault("server.port", 8089)
	viper.SetDefault("server.address", "0.0.0.0")
	viper.SetDefault("server.compression-level", 5)
	viper.SetDefault("metadata.refresh-interval", "24h")
	viper.SetDefault("metadata.load-timeout", "30s")
	viper.SetDefault("metadata.database.table", "client_metadata")
	viper.SetDefault("signing.type", "none")
	viper.SetDefault("signing.remote-timeout", "10s")
	viper.SetDefault("mdq.accept-types", []string{"application/json", "application/jwt"})
	viper.SetDefault("metrics.enable", false)
}

func initConfig(logger *zap.Logger) {
	bind := func(from string, to string) {
		err := viper.BindEnv(to, from)
		if err != nil {
			logger.Error("unable to bindenv", zap.String("from", from), zap.String(to, to), zap.Error(err))
		}

	}
	setDefaults()
	bind("PORT", "server.port")
	bind("ADDRESS", "server.address")

	bind("MDQ_PORT", "server.port")
	bind("MDQ_ADDRESS", "server.address")
	bind("MDQ_SERVER_COMPRESSION_LEVEL", "server.compression-level")

	bind("MDQ_METADATA_SOURCE", "metadata.source")
	bind("MDQ_METADATA_REFRESH_INTERVAL", "metadata.refresh-interval")
	bind("MDQ_METADATA_LOAD_TIMEOUT", "metadata.load-timeout")
	bind("MDQ_METADATA_DATABASE_TYPE", "metadata.database.type")
	bind("MDQ_METADATA_DATABASE_DSN", "metadata.database.dsn")
	bind("MDQ_METADATA_DATABASE_TABLE", "metadata.database.table")

	bind("MDQ_SIGNING_TYPE", "signing.type")
	bind("MDQ_SIGNING_REMOTE_URL", "signing.remote-url")
	bind("MDQ_SIGNING_REMOTE_KID", "signing.remote-kid")
	bind("MDQ_SIGNING_REMOTE_TIMEOUT", "signing.remote-timeout")
	bind("MDQ_SIGNING_ALGORITHMS", "signing.algorithms")

	bind("MDQ_ACCEPT_TYPES", "mdq.accept-types")

	bind("MDQ_METRICS_ENABLE", "metrics.enable")

	if cmd.ConfigFileLocation != "" {
		logger.Debug("Using supplied config file", zap.String("file", cmd.ConfigFileLocation))
		viper.SetConfigFile(cmd.ConfigFileLocation)
	} else {
		path, err := os.Getwd()
		if err != nil {
			logger.Warn("Unable to get current working dir", zap.Error(err))
		}
		cobra.CheckErr(err)
		viper.AddConfigPath(path)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		logger.Debug("Looking for default config file")
	}
	//precedence: environment overwrites yml
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		logger.Debug("No confg file loaded")
	} else {
		logger.Debug("Config file loaded", zap.String("file", viper.ConfigFileUsed()))
	}

	conf := &config.Configuration{}
	err := viper.Unmarshal(conf)
	if err != nil {
		logger.Fatal("Unable to unmarshall config", zap.Error(err))
	}
	logger.Debug("Config loaded", zap.Any("config", conf))
	logger.Debug("Validating final config")
	if err = conf.Validate(); err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}
	cmd.LoadedConfig = conf
}

package cmd

import (
	"errors"
	"log"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "cv-ranker"
)

type Config struct {
	Server   *ServerConfig   `mapstructure:"server"`
	Matching *MatchingConfig `mapstructure:"matching"`
	AI       *AIConfig       `mapstructure:"ai"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
}

type MatchingConfig struct {
	TopK             int `mapstructure:"top-k"`
	MinJobTextLength int `mapstructure:"min-job-text-length"`
}

type AIConfig struct {
	Provider string        `mapstructure:"provider"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey         string        `mapstructure:"api-key"`
	APIKeyFile     string        `mapstructure:"api-key-file"`
	Model          string        `mapstructure:"model"`
	EmbeddingModel string        `mapstructure:"embedding-model"`
	RequestTimeout time.Duration `mapstructure:"request-timeout"`
	MaxRetries     int           `mapstructure:"max-retries"`
	MaxLogLength   int           `mapstructure:"max-log-length"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "cv-ranker ranks candidate CV profiles against a job description",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("ai.gemini.api-key", "GEMINI_API_KEY"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY environment variable: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is cv-ranker.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))

	viper.SetDefault("server.address", ":5135")
	viper.SetDefault("matching.top-k", 3)
	viper.SetDefault("matching.min-job-text-length", 50)
	viper.SetDefault("ai.provider", "gemini")
	viper.SetDefault("ai.gemini.model", "gemini-2.0-flash")
	viper.SetDefault("ai.gemini.embedding-model", "text-embedding-004")
	viper.SetDefault("ai.gemini.request-timeout", "30s")
	viper.SetDefault("ai.gemini.max-retries", 2)
	viper.SetDefault("ai.gemini.max-log-length", 200)
}

func initConfig() {
	// Config needed only for serve and rank. If there is no config, we can skip initialization.
	if serveCmd.CalledAs() == "" && rankCmd.CalledAs() == "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		// A missing default config file is fine: defaults and env cover it.
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return
		}
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}

package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DriverFirestore = "firestore"
	DriverSQLite    = "sqlite"
)

type Config struct {
	Environment string `mapstructure:"ENVIRONMENT"`
	ServerPort  string `mapstructure:"SERVER_PORT"`

	StoreDriver string `mapstructure:"STORE_DRIVER"`
	SQLitePath  string `mapstructure:"SQLITE_PATH"`

	// Firestore
	CredentialsFile string `mapstructure:"GOOGLE_APPLICATION_CREDENTIALS_1"`
	ProjectID       string `mapstructure:"GOOGLE_CLOUD_PROJECT_ID"`
	EmulatorHost    string `mapstructure:"FIRESTORE_EMULATOR_HOST"`

	JWTSecret string `mapstructure:"JWT_SECRET_KEY"`

	ScanInterval time.Duration `mapstructure:"SCAN_INTERVAL"`
	ScanTimeout  time.Duration `mapstructure:"SCAN_TIMEOUT"`
	ScanOnStart  bool          `mapstructure:"SCAN_ON_START"`

	LogLevel string `mapstructure:"LOG_LEVEL"`
	LogFile  string `mapstructure:"LOG_FILE"`

	// Command line only.
	Once       bool   `mapstructure:"once"`
	IssueToken string `mapstructure:"issue-token"`
}

var keys = []string{
	"ENVIRONMENT", "SERVER_PORT", "STORE_DRIVER", "SQLITE_PATH",
	"GOOGLE_APPLICATION_CREDENTIALS_1", "GOOGLE_CLOUD_PROJECT_ID", "FIRESTORE_EMULATOR_HOST",
	"JWT_SECRET_KEY", "SCAN_INTERVAL", "SCAN_TIMEOUT", "SCAN_ON_START", "LOG_LEVEL", "LOG_FILE",
}

// Flags returns the command line flag set understood by Load.
func Flags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("tasknotify", pflag.ContinueOnError)
	fs.Bool("once", false, "run a single scan and exit")
	fs.String("config", "", "path to an env file (default .env)")
	fs.String("issue-token", "", "print an admin access token for the given user id and exit")
	return fs
}

// Load reads an optional env file, then the process environment, then flags.
// A missing env file is not an error.
func Load(args []string) (Config, error) {
	fs := Flags()
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	envFile, _ := fs.GetString("config")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && fs.Changed("config") {
		return Config{}, fmt.Errorf("loading env file %s: %w", envFile, err)
	}

	v := viper.New()
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("STORE_DRIVER", DriverFirestore)
	v.SetDefault("SQLITE_PATH", "tasknotify.db")
	v.SetDefault("SCAN_INTERVAL", 15*time.Minute)
	v.SetDefault("SCAN_TIMEOUT", time.Duration(0))
	v.SetDefault("SCAN_ON_START", true)
	v.SetDefault("LOG_LEVEL", "info")

	v.AutomaticEnv()
	// AutomaticEnv only covers keys viper already knows about during Unmarshal.
	for _, k := range keys {
		if err := v.BindEnv(k); err != nil {
			return Config{}, fmt.Errorf("binding %s: %w", k, err)
		}
	}
	if err := v.BindPFlags(fs); err != nil {
		return Config{}, fmt.Errorf("binding flags: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	switch c.StoreDriver {
	case DriverFirestore:
		if c.CredentialsFile == "" && c.EmulatorHost == "" {
			errs = append(errs, errors.New("GOOGLE_APPLICATION_CREDENTIALS_1 is not set"))
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("SQLITE_PATH is empty"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver))
	}
	if c.ScanInterval <= 0 {
		errs = append(errs, fmt.Errorf("SCAN_INTERVAL must be positive, got %s", c.ScanInterval))
	}
	if c.ScanTimeout < 0 {
		errs = append(errs, fmt.Errorf("SCAN_TIMEOUT must not be negative, got %s", c.ScanTimeout))
	}
	if !c.Once && c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET_KEY is required to serve the admin API"))
	}
	return errors.Join(errs...)
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

// Package config defines the settings shared by every pipeline stage and loads
// them from a YAML file, DWLOAD_* environment variables and an optional .env.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Supported drivers
const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"
)

// FailurePolicy decides what a stage does after an entity fails
type FailurePolicy string

const (
	// ContinueOnFailure reports the failure and loads every remaining entity
	ContinueOnFailure FailurePolicy = "continue"
	// SkipDependents also skips entities whose parent tables failed
	SkipDependents FailurePolicy = "skip-dependents"
	// AbortOnFailure stops the stage at the first failure
	AbortOnFailure FailurePolicy = "abort"
)

// Config is passed explicitly to every component
type Config struct {
	Server        Server        `mapstructure:"server"`
	Databases     Databases     `mapstructure:"databases"`
	Sources       Sources       `mapstructure:"sources"`
	FailurePolicy FailurePolicy `mapstructure:"failure_policy"`
}

// Server locates the database server
type Server struct {
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`
	// AdminDatabase is the database used to drop and create the targets
	// (PostgreSQL only).
	AdminDatabase string `mapstructure:"admin_database"`
	// Dir holds one file per database (SQLite only)
	Dir string `mapstructure:"dir"`
}

// Databases names the two target databases
type Databases struct {
	Operational string `mapstructure:"operational"`
	Warehouse   string `mapstructure:"warehouse"`
}

// Sources lists the raw export files per entity, read in order
type Sources struct {
	Users        []string `mapstructure:"users"`
	Cards        []string `mapstructure:"cards"`
	Companies    []string `mapstructure:"companies"`
	Products     []string `mapstructure:"products"`
	Transactions []string `mapstructure:"transactions"`
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// Default returns the settings of the reference deployment
func Default() Config {
	return Config{
		Server: Server{
			Driver:        DriverPostgres,
			Host:          "postgres",
			Port:          5432,
			User:          "user",
			SSLMode:       "disable",
			AdminDatabase: "postgres",
			Dir:           "./db",
		},
		Databases: Databases{
			Operational: "operational",
			Warehouse:   "datawarehouse",
		},
		Sources: Sources{
			Users:        []string{"./data/users_usa.json", "./data/users_ca.json", "./data/users_uk.json"},
			Cards:        []string{"./data/credit_cards.csv"},
			Companies:    []string{"./data/companies.json"},
			Products:     []string{"./data/products.csv"},
			Transactions: []string{"./data/transactions_1.json", "./data/transactions_2.json"},
		},
		FailurePolicy: ContinueOnFailure,
	}
}

// Load reads configuration from file (if non-empty, else ./dwload.yaml when
// present), then overrides from the environment. A .env file in the working
// directory is loaded into the environment first.
func Load(logger *slog.Logger, file string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug("no .env file found, using system environment variables")
	} else {
		logger.Debug("environment variables loaded from .env file")
	}

	v := viper.New()
	setDefaults(v, Default())
	v.SetEnvPrefix("DWLOAD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("dwload")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		logger.Debug("no config file found, using defaults and environment")
	} else {
		logger.Debug("config file loaded", "file", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger.Debug("config loaded",
		"driver", cfg.Server.Driver,
		"host", cfg.Server.Host,
		"operational", cfg.Databases.Operational,
		"warehouse", cfg.Databases.Warehouse,
		"policy", cfg.FailurePolicy,
	)
	return &cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it
func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("server.driver", d.Server.Driver)
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.user", d.Server.User)
	v.SetDefault("server.password", d.Server.Password)
	v.SetDefault("server.sslmode", d.Server.SSLMode)
	v.SetDefault("server.admin_database", d.Server.AdminDatabase)
	v.SetDefault("server.dir", d.Server.Dir)
	v.SetDefault("databases.operational", d.Databases.Operational)
	v.SetDefault("databases.warehouse", d.Databases.Warehouse)
	v.SetDefault("sources.users", d.Sources.Users)
	v.SetDefault("sources.cards", d.Sources.Cards)
	v.SetDefault("sources.companies", d.Sources.Companies)
	v.SetDefault("sources.products", d.Sources.Products)
	v.SetDefault("sources.transactions", d.Sources.Transactions)
	v.SetDefault("failure_policy", string(d.FailurePolicy))
}

// Validate checks the settings the pipeline relies on. Database names are
// interpolated into DROP/CREATE DATABASE statements, so only plain
// identifiers are accepted.
func (c *Config) Validate() error {
	switch c.Server.Driver {
	case DriverPostgres, DriverMySQL:
		if c.Server.Host == "" {
			return fmt.Errorf("server.host is required for %s", c.Server.Driver)
		}
	case DriverSQLite:
		if c.Server.Dir == "" {
			return fmt.Errorf("server.dir is required for sqlite")
		}
	default:
		return fmt.Errorf("unsupported driver: %q (must be postgres, mysql or sqlite)", c.Server.Driver)
	}

	for key, name := range map[string]string{
		"databases.operational": c.Databases.Operational,
		"databases.warehouse":   c.Databases.Warehouse,
	} {
		if !IsIdentifier(name) {
			return fmt.Errorf("%s: %q is not a valid database name", key, name)
		}
	}
	if strings.EqualFold(c.Databases.Operational, c.Databases.Warehouse) {
		return fmt.Errorf("operational and warehouse databases must differ")
	}
	if c.Server.Driver == DriverPostgres && c.Server.AdminDatabase != "" && !IsIdentifier(c.Server.AdminDatabase) {
		return fmt.Errorf("server.admin_database: %q is not a valid database name", c.Server.AdminDatabase)
	}

	policy, err := ParseFailurePolicy(string(c.FailurePolicy))
	if err != nil {
		return err
	}
	c.FailurePolicy = policy

	for key, paths := range map[string][]string{
		"sources.users":        c.Sources.Users,
		"sources.cards":        c.Sources.Cards,
		"sources.companies":    c.Sources.Companies,
		"sources.products":     c.Sources.Products,
		"sources.transactions": c.Sources.Transactions,
	} {
		if len(paths) == 0 {
			return fmt.Errorf("%s: at least one file is required", key)
		}
	}
	return nil
}

// ParseFailurePolicy accepts the names of the FailurePolicy constants
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch p := FailurePolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case ContinueOnFailure, SkipDependents, AbortOnFailure:
		return p, nil
	default:
		return "", fmt.Errorf("invalid failure policy: %q (must be continue, skip-dependents or abort)", s)
	}
}

// IsIdentifier reports whether s can be used unquoted as a database name
func IsIdentifier(s string) bool {
	return identifier.MatchString(s)
}

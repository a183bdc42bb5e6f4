package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Loan policies for the organization balance.
const (
	LoanPolicyOffLedger = "off-ledger"
	LoanPolicyCashflow  = "cashflow"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	Firebase  FirebaseConfig
	Gateway   GatewayConfig
	Ledger    LedgerConfig
	Schedules ScheduleConfig
}

type ServerConfig struct {
	Port         string
	Env          string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Production reports whether error details must be kept out of responses.
func (c ServerConfig) Production() bool {
	return c.Env == "production"
}

type DatabaseConfig struct {
	Driver          string // sqlite, postgres or mysql
	DSN             string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

type JWTConfig struct {
	Secret string
	Issuer string
}

type FirebaseConfig struct {
	CredentialsFile string // empty disables push delivery
}

type GatewayConfig struct {
	BaseURL     string
	APIKey      string
	RedirectURL string
	Timeout     time.Duration
	Stub        bool // settle every order without a gateway; never allowed in production
}

type LedgerConfig struct {
	LoanPolicy string
}

type ScheduleConfig struct {
	Enabled               bool
	ApplyPenalties        string
	CreatePendingPayments string
	NotificationAlert     string
}

// Load reads an optional .env file and builds the configuration from the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] no .env file, using process environment")
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:         GetEnv("PORT", "8080"),
			Env:          GetEnv("APP_ENV", "development"),
			ReadTimeout:  getDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
		},
		Database: DatabaseConfig{
			Driver:          strings.ToLower(GetEnv("DB_DRIVER", "sqlite")),
			DSN:             GetEnv("DB_DSN", "coop.db"),
			MaxIdleConns:    getInt("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns:    getInt("DB_MAX_OPEN_CONNS", 50),
			ConnMaxLifetime: getDuration("DB_CONN_MAX_LIFETIME", time.Hour),
		},
		JWT: JWTConfig{
			Secret: GetEnv("JWT_SECRET"),
			Issuer: GetEnv("JWT_ISSUER", "coopledger"),
		},
		Firebase: FirebaseConfig{
			CredentialsFile: GetEnv("FIREBASE_CREDENTIALS_FILE"),
		},
		Gateway: GatewayConfig{
			BaseURL:     GetEnv("UPI_GATEWAY_URL", "https://api.ekqr.in/api"),
			APIKey:      GetEnv("UPI_GATEWAY_KEY"),
			RedirectURL: GetEnv("UPI_REDIRECT_URL"),
			Timeout:     getDuration("UPI_GATEWAY_TIMEOUT", 30*time.Second),
			Stub:        getBool("UPI_GATEWAY_STUB", false),
		},
		Ledger: LedgerConfig{
			LoanPolicy: GetEnv("LEDGER_LOAN_POLICY", LoanPolicyOffLedger),
		},
		Schedules: ScheduleConfig{
			Enabled:               getBool("SCHEDULE_ENABLED", false),
			ApplyPenalties:        GetEnv("SCHEDULE_APPLY_PENALTIES", "0 1 * * *"),
			CreatePendingPayments: GetEnv("SCHEDULE_CREATE_PENDING_PAYMENTS", "0 0 * * *"),
			NotificationAlert:     GetEnv("SCHEDULE_NOTIFICATION_ALERT", "0 9 * * *"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres", "mysql":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}
	if c.Gateway.Stub && c.Server.Production() {
		return fmt.Errorf("UPI_GATEWAY_STUB cannot be enabled when APP_ENV=production")
	}
	switch c.Ledger.LoanPolicy {
	case LoanPolicyOffLedger, LoanPolicyCashflow:
	default:
		return fmt.Errorf("unsupported LEDGER_LOAN_POLICY %q", c.Ledger.LoanPolicy)
	}
	return nil
}

// GetEnv returns the variable's value, or the first default when it is unset.
func GetEnv(key string, defaultValue ...string) string {
	value, exists := os.LookupEnv(key)
	if !exists && len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return value
}

func getInt(key string, def int) int {
	v, err := strconv.Atoi(GetEnv(key))
	if err != nil {
		return def
	}
	return v
}

func getBool(key string, def bool) bool {
	v, err := strconv.ParseBool(GetEnv(key))
	if err != nil {
		return def
	}
	return v
}

func getDuration(key string, def time.Duration) time.Duration {
	v, err := time.ParseDuration(GetEnv(key))
	if err != nil {
		return def
	}
	return v
}

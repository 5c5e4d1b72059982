// Package params holds node configuration loaded from the environment.
package params

import (
	"os"

	"github.com/joho/godotenv"
)

type Server struct {
	ListenAddr string
}

type Storage struct {
	// DataDir holds the Pebble database. Empty disables persistence.
	DataDir string
}

type Log struct {
	File string
}

type Exchange struct {
	// CashAsset is the settlement asset; it shares the balance namespace
	// with traded instruments.
	CashAsset string

	// AdminName and AdminKey seed the bootstrap ADMIN user. An empty key
	// disables the bootstrap admin.
	AdminName string
	AdminKey  string
}

type Config struct {
	Server   Server
	Storage  Storage
	Log      Log
	Exchange Exchange
}

func Default() Config {
	return Config{
		Server:  Server{ListenAddr: ":8080"},
		Storage: Storage{DataDir: "data/exchange.db"},
		Log:     Log{File: "data/exchange.log"},
		Exchange: Exchange{
			CashAsset: "RUB",
			AdminName: "admin",
			AdminKey:  "",
		},
	}
}

// LoadFromEnv loads configuration from a .env file (if present) and
// environment variables. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		cfg.Server.ListenAddr = v
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		cfg.Log.File = v
	}
	if v := os.Getenv("CASH_ASSET"); v != "" {
		cfg.Exchange.CashAsset = v
	}
	if v := os.Getenv("ADMIN_NAME"); v != "" {
		cfg.Exchange.AdminName = v
	}
	if v := os.Getenv("ADMIN_API_KEY"); v != "" {
		cfg.Exchange.AdminKey = v
	}

	return cfg
}

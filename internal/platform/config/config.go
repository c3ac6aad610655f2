package config

import (
	"os"
	"time"
)

// Server captures process level configuration so main stays lean.
type Server struct {
	Addr        string
	StoreDriver string
	DatabaseURL string
	LogLevel    string
	LogFormat   string
}

// ShutdownTimeout bounds graceful shutdown on SIGINT/SIGTERM.
var ShutdownTimeout = 10 * time.Second

// FromEnv builds a Server config from environment variables.
func FromEnv() Server {
	addr := os.Getenv("CONTACTDIR_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	driver := os.Getenv("CONTACTDIR_STORE")
	if driver == "" {
		driver = "memory"
	}

	return Server{
		Addr:        addr,
		StoreDriver: driver,
		DatabaseURL: os.Getenv("DATABASE_URL"),
		LogLevel:    os.Getenv("CONTACTDIR_LOG_LEVEL"),
		LogFormat:   os.Getenv("CONTACTDIR_LOG_FORMAT"),
	}
}

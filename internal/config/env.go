package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// EnvLoader loads a .env file once per process, giving every cmd/ entry
// point a single source of secrets (ARANGO_* generalized to GRAPHSTORE_*,
// INVENTORY_GRPC_*, KAFKA_*).
type EnvLoader struct {
	loaded bool
	path   string
}

func NewEnvLoader() *EnvLoader {
	return &EnvLoader{}
}

func (e *EnvLoader) Load() error {
	if e.loaded {
		return nil
	}
	envPath, err := findEnvFile()
	if err != nil {
		return fmt.Errorf("failed to find .env file: %w\nplease create .env from .env.example", err)
	}
	e.path = envPath
	if err := godotenv.Load(envPath); err != nil {
		return fmt.Errorf("failed to load %s: %w", envPath, err)
	}
	e.loaded = true
	return nil
}

// MustLoad loads .env or exits; used by cmd/ main functions.
func (e *EnvLoader) MustLoad() {
	if err := e.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		fmt.Fprintf(os.Stderr, "\nQuick setup:\n  1. cp .env.example .env\n  2. Edit .env with your GRAPHSTORE_*/INVENTORY_GRPC_*/KAFKA_* values\n")
		os.Exit(1)
	}
}

func (e *EnvLoader) GetPath() string { return e.path }

// Validate checks the environment variables every worker needs regardless
// of which cmd/ entry point is running.
func (e *EnvLoader) Validate() error {
	required := []string{
		"GRAPHSTORE_URI",
		"GRAPHSTORE_USERNAME",
		"GRAPHSTORE_PASSWORD",
		"INVENTORY_GRPC_HOST",
		"INVENTORY_GRPC_PORT",
	}
	var missing []string
	for _, key := range required {
		if os.Getenv(key) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missing)
	}
	return nil
}

func findEnvFile() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	searchPath := cwd
	for i := 0; i < 5; i++ {
		envPath := filepath.Join(searchPath, ".env")
		if _, err := os.Stat(envPath); err == nil {
			return envPath, nil
		}
		parent := filepath.Dir(searchPath)
		if parent == searchPath {
			break
		}
		searchPath = parent
	}
	return "", fmt.Errorf(".env file not found in %s or parent directories", cwd)
}

func GetString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func GetInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func GetBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if boolVal, err := strconv.ParseBool(val); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func MustGetString(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

// Package config loads the single typed configuration object every
// component is constructed with (spec §9: "use a single typed config
// loaded at startup; recognized options are enumerated").
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds every setting recognized by the builder, updater, and
// orchestrator. Env var names are retained from the original inventory
// system for operational compatibility (spec §6), with ARANGO_* kept as a
// legacy alias for GRAPHSTORE_* (the Neo4j-backed adapter).
type Config struct {
	Mode string `yaml:"mode"` // "orchestrator", "build", "query", "update"

	GraphStore GraphStoreConfig `yaml:"graphstore"`
	Inventory  InventoryConfig  `yaml:"inventory"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Cache      CacheConfig      `yaml:"cache"`
	Staging    StagingConfig    `yaml:"staging"`
	Builder    BuilderConfig    `yaml:"builder"`
	Query        QueryConfig        `yaml:"query"`
	Retry        RetryConfig        `yaml:"retry"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
}

// GraphStoreConfig configures the C1 Neo4j-backed adapter. Field names keep
// the ARANGO_* historical prefix available via env override for operators
// migrating existing deployments.
type GraphStoreConfig struct {
	URI                string `yaml:"uri"`
	Username           string `yaml:"username"`
	Password           string `yaml:"password"`
	Database           string `yaml:"database"`
	GraphDataCollection string `yaml:"graph_data_collection"` // "main"
	GraphDataEdge       string `yaml:"graph_data_edge"`       // "mainEdge"
	PathEdgeCollection  string `yaml:"path_edge_collection"`  // "pathEdge"
	TmoCollection       string `yaml:"tmo_collection"`
	TmoEdgeCollection   string `yaml:"tmo_edge_collection"`
	ConfigCollection    string `yaml:"config_collection"`
	SearchViewName      string `yaml:"search_view_name"` // "search-view"
	AnalyzerName        string `yaml:"analyzer_name"`    // "norm_en"
	RequestTimeout      time.Duration `yaml:"request_timeout"`
}

// InventoryConfig configures the C2 gRPC client.
type InventoryConfig struct {
	Host              string        `yaml:"host"`
	Port              int           `yaml:"port"`
	KeepaliveTime     time.Duration `yaml:"keepalive_time"`
	KeepaliveTimeout  time.Duration `yaml:"keepalive_timeout"`
	DefaultChunkSize  int           `yaml:"default_chunk_size"`
}

func (c InventoryConfig) Target() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// KafkaConfig configures the change-stream consumer (C8/C9 collaborator).
type KafkaConfig struct {
	URL                   string `yaml:"url"`
	GroupID               string `yaml:"group_id"`
	Offset                string `yaml:"offset"` // "earliest"|"latest"
	InventoryChangesTopic string `yaml:"inventory_changes_topic"`
	KeycloakClientID      string `yaml:"keycloak_client_id"`
	KeycloakClientSecret  string `yaml:"keycloak_client_secret"`
	KeycloakTokenURL      string `yaml:"keycloak_token_url"`
}

// CacheConfig configures the Redis-backed read cache for inventory schema data.
type CacheConfig struct {
	Addr string        `yaml:"addr"`
	TTL  time.Duration `yaml:"ttl"`
}

// StagingConfig configures the Postgres-backed staging/DLQ tables.
type StagingConfig struct {
	DSN string `yaml:"dsn"`
}

// BuilderConfig tunes the C6 builder pipeline.
type BuilderConfig struct {
	QueryItemsLimit int `yaml:"query_items_limit"` // pagination chunk size, default 1000
}

// QueryConfig tunes the C7 path/trace engine.
type QueryConfig struct {
	SearchLimit   int `yaml:"search_limit"`   // K_SHORTEST_PATHS limit, default 20
	ResponseLimit int `yaml:"response_limit"` // post-dedup truncation, default 5
}

// OrchestratorConfig tunes the C9 projection supervisor.
type OrchestratorConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"` // default 60s, spec §4.8
}

// RetryConfig is the shared bounded-retry policy (spec §5).
type RetryConfig struct {
	MaxAttempts     int           `yaml:"max_attempts"`
	InitialBackoff  time.Duration `yaml:"initial_backoff"`
	MaxBackoff      time.Duration `yaml:"max_backoff"`
	BackoffMultiplier float64     `yaml:"backoff_multiplier"`
}

// Default returns the built-in defaults, mirroring the original system's
// constants (QUERY_ITEMS_LIMIT=1000, search_limit=20, response_limit=5,
// retry maxAttempts=5 / initialBackoff=2s / maxBackoff=15s / multiplier=2).
func Default() *Config {
	return &Config{
		Mode: "orchestrator",
		GraphStore: GraphStoreConfig{
			URI:                 "bolt://localhost:7687",
			Database:            "neo4j",
			GraphDataCollection: "main",
			GraphDataEdge:       "mainEdge",
			PathEdgeCollection:  "pathEdge",
			TmoCollection:       "tmo",
			TmoEdgeCollection:   "tmoEdge",
			ConfigCollection:    "config",
			SearchViewName:      "search-view",
			AnalyzerName:        "norm_en",
			RequestTimeout:      600 * time.Second,
		},
		Inventory: InventoryConfig{
			Port:             50051,
			KeepaliveTime:    30 * time.Second,
			KeepaliveTimeout: 15 * time.Second,
			DefaultChunkSize: 50,
		},
		Kafka: KafkaConfig{
			GroupID:               "avataa-graphs",
			Offset:                "earliest",
			InventoryChangesTopic: "inventory.changes",
		},
		Cache: CacheConfig{
			Addr: "localhost:6379",
			TTL:  10 * time.Minute,
		},
		Builder: BuilderConfig{
			QueryItemsLimit: 1000,
		},
		Query: QueryConfig{
			SearchLimit:   20,
			ResponseLimit: 5,
		},
		Retry: RetryConfig{
			MaxAttempts:       5,
			InitialBackoff:    2 * time.Second,
			MaxBackoff:        15 * time.Second,
			BackoffMultiplier: 2,
		},
		Orchestrator: OrchestratorConfig{
			PollInterval: 60 * time.Second,
		},
	}
}

// Load reads configuration from an optional YAML file, then layers
// environment variable overrides on top, matching the teacher's
// viper+godotenv load order.
func Load(path string) (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	v.SetConfigType("yaml")
	cfg := Default()

	v.SetEnvPrefix("GRAPH")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func loadEnvFiles() {
	for _, file := range []string{".env.local", ".env"} {
		if _, err := os.Stat(file); err == nil {
			_ = godotenv.Load(file)
		}
	}
}

// applyEnvOverrides applies the spec §6 environment variable names on top
// of file-based config, with GRAPHSTORE_* preferred and ARANGO_* accepted
// as a legacy alias.
func applyEnvOverrides(cfg *Config) {
	if v := firstNonEmpty("GRAPHSTORE_URI", "ARANGO_URI"); v != "" {
		cfg.GraphStore.URI = v
	}
	if v := firstNonEmpty("GRAPHSTORE_USERNAME", "ARANGO_USERNAME"); v != "" {
		cfg.GraphStore.Username = v
	}
	if v := firstNonEmpty("GRAPHSTORE_PASSWORD", "ARANGO_PASSWORD"); v != "" {
		cfg.GraphStore.Password = v
	}
	if v := os.Getenv("GRAPH_DB_MAIN_COLLECTION"); v != "" {
		cfg.GraphStore.GraphDataCollection = v
	}
	if v := os.Getenv("GRAPH_DB_MAIN_EDGE_COLLECTION"); v != "" {
		cfg.GraphStore.GraphDataEdge = v
	}

	if v := os.Getenv("INVENTORY_GRPC_HOST"); v != "" {
		cfg.Inventory.Host = v
	}
	if v := os.Getenv("INVENTORY_GRPC_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Inventory.Port = port
		}
	}

	if v := os.Getenv("KAFKA_URL"); v != "" {
		cfg.Kafka.URL = v
	}
	if v := os.Getenv("KAFKA_GROUP_ID"); v != "" {
		cfg.Kafka.GroupID = v
	}
	if v := os.Getenv("KAFKA_OFFSET"); v != "" {
		cfg.Kafka.Offset = v
	}
	if v := os.Getenv("KAFKA_INVENTORY_CHANGES_TOPIC"); v != "" {
		cfg.Kafka.InventoryChangesTopic = v
	}
	if v := os.Getenv("KAFKA_KEYCLOAK_CLIENT_ID"); v != "" {
		cfg.Kafka.KeycloakClientID = v
	}
	if v := os.Getenv("KAFKA_KEYCLOAK_CLIENT_SECRET"); v != "" {
		cfg.Kafka.KeycloakClientSecret = v
	}

	if v := os.Getenv("CACHE_ADDR"); v != "" {
		cfg.Cache.Addr = v
	}
	if v := os.Getenv("STAGING_POSTGRES_DSN"); v != "" {
		cfg.Staging.DSN = v
	}
	if v := os.Getenv("GRAPH_MODE"); v != "" {
		cfg.Mode = v
	}
}

func firstNonEmpty(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

// DatabaseName computes the per-projection database name from the root
// TMO id, per spec §6's persisted-layout table.
func DatabaseName(rootTmoID int64) string {
	return fmt.Sprintf("tmoId_%d", rootTmoID)
}

// Save writes the config back to a YAML file (used by `graph-init` to
// persist an interactively-configured projection).
func (c *Config) Save(path string) error {
	v := viper.New()
	v.SetConfigType("yaml")
	v.Set("mode", c.Mode)
	v.Set("graphstore", c.GraphStore)
	v.Set("inventory", c.Inventory)
	v.Set("kafka", c.Kafka)
	v.Set("cache", c.Cache)
	v.Set("staging", c.Staging)
	v.Set("builder", c.Builder)
	v.Set("query", c.Query)
	v.Set("retry", c.Retry)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

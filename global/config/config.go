package config

import (
	"os"
	"strconv"
	"time"
)

// AppConfig carries everything main wires at startup. Values come from the
// environment with working local defaults, so a bare `go run .` against a
// local mongo works.
type AppConfig struct {
	HTTPAddr string

	MongoURI      string
	MongoDatabase string
	MongoMaxPool  int

	// Redis mirror is optional; empty addr disables it.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTSecret []byte
	TokenTTL  time.Duration

	NodeID int64
}

var Global = AppConfig{
	HTTPAddr:      ":3000",
	MongoURI:      "mongodb://localhost:27017",
	MongoDatabase: "chatlink",
	MongoMaxPool:  20,
	JWTSecret:     []byte("chatlink-dev-secret"),
	TokenTTL:      7 * 24 * time.Hour,
	NodeID:        1,
}

// Load overlays Global with the environment and returns it.
func Load() AppConfig {
	cfg := Global

	if v := os.Getenv("CHAT_HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv("CHAT_MONGO_URI"); v != "" {
		cfg.MongoURI = v
	}
	if v := os.Getenv("CHAT_MONGO_DB"); v != "" {
		cfg.MongoDatabase = v
	}
	if v := os.Getenv("CHAT_MONGO_MAX_POOL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MongoMaxPool = n
		}
	}
	if v := os.Getenv("CHAT_REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("CHAT_REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("CHAT_REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RedisDB = n
		}
	}
	if v := os.Getenv("CHAT_JWT_SECRET"); v != "" {
		cfg.JWTSecret = []byte(v)
	}
	if v := os.Getenv("CHAT_TOKEN_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.TokenTTL = d
		}
	}
	if v := os.Getenv("CHAT_NODE_ID"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.NodeID = n
		}
	}

	return cfg
}

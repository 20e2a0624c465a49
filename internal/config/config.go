package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/kirinyoku/ogtix/internal/vault"
)

type Config struct {
	Server   ServerConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Keys     vault.Keys
}

type ServerConfig struct {
	Host string
	Port int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type PostgresConfig struct {
	User     string
	Password string
	Name     string
	Host     string
	Port     int
	SSLMode  string
}

func New() (*Config, error) {
	const op = "config.New"

	_ = godotenv.Load()

	serverHost := os.Getenv("SERVER_HOST")
	if serverHost == "" {
		serverHost = "localhost"
	}

	serverPortStr := os.Getenv("SERVER_PORT")
	if serverPortStr == "" {
		serverPortStr = "8080"
	}

	serverPort, err := strconv.Atoi(serverPortStr)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid SERVER_PORT: %w", op, err)
	}

	serverCfg := ServerConfig{
		Host: serverHost,
		Port: serverPort,
	}

	postgresHost := os.Getenv("POSTGRES_HOST")
	if postgresHost == "" {
		postgresHost = "localhost"
	}

	postgresPortStr := os.Getenv("POSTGRES_PORT")
	if postgresPortStr == "" {
		postgresPortStr = "5432"
	}

	postgresPort, err := strconv.Atoi(postgresPortStr)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid POSTGRES_PORT: %w", op, err)
	}

	postgresUser := os.Getenv("POSTGRES_USER")
	if postgresUser == "" {
		return nil, fmt.Errorf("%s: missing POSTGRES_USER", op)
	}

	postgresPassword := os.Getenv("POSTGRES_PASSWORD")
	if postgresPassword == "" {
		return nil, fmt.Errorf("%s: missing POSTGRES_PASSWORD", op)
	}

	postgresDB := os.Getenv("POSTGRES_DB")
	if postgresDB == "" {
		return nil, fmt.Errorf("%s: missing POSTGRES_DB", op)
	}

	postgresSSLMode := os.Getenv("POSTGRES_SSLMODE")
	if postgresSSLMode == "" {
		postgresSSLMode = "disable"
	}

	postgresCfg := PostgresConfig{
		User:     postgresUser,
		Password: postgresPassword,
		Name:     postgresDB,
		Host:     postgresHost,
		Port:     postgresPort,
		SSLMode:  postgresSSLMode,
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6380"
	}

	redisCfg := RedisConfig{
		Addr:     redisAddr,
		Password: "",
		DB:       0,
	}

	keys, err := loadKeys()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:   serverCfg,
		Postgres: postgresCfg,
		Redis:    redisCfg,
		Keys:     keys,
	}, nil
}

// loadKeys reads the vault key material. Both keys are required: a process
// without them would mint unverifiable tickets, so startup fails instead.
func loadKeys() (vault.Keys, error) {
	const op = "config.loadKeys"

	var keys vault.Keys

	masterB64 := os.Getenv("TICKET_MASTER_KEY")
	if masterB64 == "" {
		return keys, fmt.Errorf("%s: missing TICKET_MASTER_KEY", op)
	}

	master, err := base64.StdEncoding.DecodeString(masterB64)
	if err != nil {
		return keys, fmt.Errorf("%s: invalid TICKET_MASTER_KEY: %w", op, err)
	}

	if len(master) != len(keys.Master) {
		return keys, fmt.Errorf("%s: TICKET_MASTER_KEY must decode to %d bytes, got %d",
			op, len(keys.Master), len(master))
	}

	copy(keys.Master[:], master)

	hmacB64 := os.Getenv("TICKET_HMAC_KEY")
	if hmacB64 == "" {
		return keys, fmt.Errorf("%s: missing TICKET_HMAC_KEY", op)
	}

	hmacKey, err := base64.StdEncoding.DecodeString(hmacB64)
	if err != nil {
		return keys, fmt.Errorf("%s: invalid TICKET_HMAC_KEY: %w", op, err)
	}

	if len(hmacKey) == 0 {
		return keys, fmt.Errorf("%s: TICKET_HMAC_KEY must not be empty", op)
	}

	keys.HMAC = hmacKey

	return keys, nil
}

package config

import (
	"os"
	"strconv"
	"time"

	"github.com/dmitrijs2005/jwtauth/internal/flagx"
	"github.com/joho/godotenv"
)

// EnvPrefix is prepended to every environment variable the server reads.
const EnvPrefix = "JWTAUTH_"

// parseEnv overlays JWTAUTH_* variables onto config. When -env names a
// dotenv file it is loaded first; variables already set in the process
// environment win over the file. Malformed numeric values panic.
func parseEnv(config *Config) {
	if envFile := flagx.EnvFileFlag(os.Args[1:]); envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			panic(err)
		}
	}

	envString(&config.EndpointAddrGRPC, "GRPC_ADDR")
	envString(&config.EndpointAddrHTTP, "HTTP_ADDR")
	envString(&config.StorageBackend, "STORAGE_BACKEND")
	envString(&config.DatabaseDSN, "DATABASE_DSN")
	envString(&config.RedisAddr, "REDIS_ADDR")
	envString(&config.RedisPassword, "REDIS_PASSWORD")
	if v, ok := lookup("REDIS_DB"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			panic(err)
		}
		config.RedisDB = n
	}
	envString(&config.RedisKeyPrefix, "REDIS_KEY_PREFIX")
	envString(&config.AMQPURL, "AMQP_URL")
	envString(&config.AMQPQueue, "AMQP_QUEUE")
	envString(&config.SecretKey, "SECRET_KEY")
	envString(&config.Issuer, "ISSUER")
	envString(&config.Audience, "AUDIENCE")
	envDuration(&config.AccessTokenValidityDuration, "ACCESS_TOKEN_TTL")
	envDuration(&config.RefreshTokenValidityDuration, "REFRESH_TOKEN_TTL")
	envString(&config.LogLevel, "LOG_LEVEL")
}

func lookup(name string) (string, bool) {
	v, ok := os.LookupEnv(EnvPrefix + name)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func envString(dst *string, name string) {
	if v, ok := lookup(name); ok {
		*dst = v
	}
}

func envDuration(dst *time.Duration, name string) {
	if v, ok := lookup(name); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			panic(err)
		}
		*dst = d
	}
}

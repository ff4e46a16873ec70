package env

import (
	"os"
	"strconv"

	"github.com/gofiber/fiber/v2/log"
	"github.com/joho/godotenv"
)

// Env holds the values read from the .env file. Process environment variables
// take over when a key is absent here.
var Env map[string]string

// GetEnv reads a configuration value, preferring the loaded .env file over
// the process environment.
func GetEnv(key, def string) string {
	if val, ok := Env[key]; ok {
		return val
	}
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func GetEnvInt(key string, def int) int {
	raw := GetEnv(key, "")
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return val
}

// SetupEnvFile loads the nearest .env file. Containerized deployments
// typically configure everything through the process environment, so a
// missing file is logged, not fatal.
func SetupEnvFile() {
	for _, envFile := range []string{".env", "../../.env", "../../../.env"} {
		values, err := godotenv.Read(envFile)
		if err == nil {
			Env = values
			return
		}
	}
	log.Info("no .env file found, using process environment only")
}

func IsDev() bool {
	return GetEnv("APP_ENV", "prod") == "dev"
}

func IsTest() bool {
	return GetEnv("APP_ENV", "prod") == "test"
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort      string
	Environment     string
	FirebaseProject string
	StorageBucket   string

	// ServiceAccountJSON takes precedence over ServiceAccountPath.
	ServiceAccountJSON string
	ServiceAccountPath string

	StoreBackend string // "firestore" or "memory"
	AuthMode     string // "firebase" or "jwt"
	JWTSecret    string

	PublicBaseURL   string
	AllowedOrigins  []string
	MessagePageSize int
	UploadChunkSize int
}

func Load() (*Config, error) {
	godotenv.Load()

	config := &Config{
		ServerPort:         getEnv("SERVER_PORT", "8080"),
		Environment:        getEnv("ENVIRONMENT", "development"),
		FirebaseProject:    getEnv("FIREBASE_PROJECT_ID", ""),
		StorageBucket:      getEnv("STORAGE_BUCKET", ""),
		ServiceAccountJSON: getEnv("FIREBASE_SERVICE_ACCOUNT_JSON", ""),
		ServiceAccountPath: getEnv("FIREBASE_SERVICE_ACCOUNT_PATH", ""),
		StoreBackend:       getEnv("STORE_BACKEND", "firestore"),
		AuthMode:           getEnv("AUTH_MODE", "firebase"),
		JWTSecret:          getEnv("JWT_SECRET", defaultJWTSecret),
		PublicBaseURL:      getEnv("PUBLIC_BASE_URL", "https://insta-pro.vercel.app"),
		AllowedOrigins:     getEnvAsList("ALLOWED_ORIGINS"),
		MessagePageSize:    getEnvAsInt("MESSAGE_PAGE_SIZE", 20),
		UploadChunkSize:    getEnvAsInt("UPLOAD_CHUNK_SIZE", 256*1024),
	}

	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

const defaultJWTSecret = "your-secret-key"

func (c *Config) validate() error {
	switch c.StoreBackend {
	case "firestore", "memory":
	default:
		return fmt.Errorf("invalid STORE_BACKEND %q: want firestore or memory", c.StoreBackend)
	}
	switch c.AuthMode {
	case "firebase", "jwt":
	default:
		return fmt.Errorf("invalid AUTH_MODE %q: want firebase or jwt", c.AuthMode)
	}
	if c.AuthMode == "jwt" && c.JWTSecret == defaultJWTSecret && !c.IsDevelopment() {
		return fmt.Errorf("JWT_SECRET must be set when AUTH_MODE=jwt outside development")
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) UsesMemoryStore() bool {
	return c.StoreBackend == "memory"
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		intValue, err := strconv.Atoi(value)
		if err == nil && intValue > 0 {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

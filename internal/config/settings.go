package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Detector backends selectable with HEADSHOT_DETECTOR
const (
	DetectorPigo     = "pigo"
	DetectorOllama   = "ollama"
	DetectorLlamaCpp = "llamacpp"
	DetectorNone     = "none"
)

// Settings holds process settings read from the environment
type Settings struct {
	Env      string
	LogLevel string
	LogFile  string

	// Profile file; empty means built-in defaults
	ProfilesPath string

	// Face detection
	Detector      string
	PigoCascade   string
	VisionURL     string
	VisionModel   string
	VisionTimeout time.Duration

	// Export destinations
	ExportDir         string
	S3Bucket          string
	S3Endpoint        string
	S3Region          string
	S3AccessKeyID     string
	S3SecretAccessKey string

	CacheMaxEntries int
	// Annotate enables overlays on preview renders
	Annotate bool
}

// LoadSettings reads Settings from the environment, loading .env first when
// one exists.
func LoadSettings() (*Settings, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	s := &Settings{
		Env:      getEnv("HEADSHOT_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", ""),

		ProfilesPath: getEnv("HEADSHOT_PROFILES", ""),

		Detector:      strings.ToLower(getEnv("HEADSHOT_DETECTOR", DetectorPigo)),
		PigoCascade:   getEnv("PIGO_CASCADE", "cascade/facefinder"),
		VisionURL:     getEnv("VISION_URL", "http://localhost:11434"),
		VisionModel:   getEnv("VISION_MODEL", "llava:13b"),
		VisionTimeout: getEnvDuration("VISION_TIMEOUT", 5*time.Minute),

		ExportDir:         getEnv("EXPORT_DIR", "."),
		S3Bucket:          getEnv("S3_BUCKET", ""),
		S3Endpoint:        getEnv("S3_ENDPOINT", ""),
		S3Region:          getEnv("S3_REGION", "auto"),
		S3AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
		S3SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),

		CacheMaxEntries: getEnvInt("CACHE_MAX_ENTRIES", 64),
		Annotate:        getEnvBool("HEADSHOT_ANNOTATE", false),
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks that the selected backends have what they need
func (s *Settings) Validate() error {
	switch s.Detector {
	case DetectorPigo:
		if s.PigoCascade == "" {
			return fmt.Errorf("PIGO_CASCADE is required when HEADSHOT_DETECTOR=%s", DetectorPigo)
		}
	case DetectorOllama, DetectorLlamaCpp:
		if s.VisionURL == "" {
			return fmt.Errorf("VISION_URL is required when HEADSHOT_DETECTOR=%s", s.Detector)
		}
		if s.VisionModel == "" {
			return fmt.Errorf("VISION_MODEL is required when HEADSHOT_DETECTOR=%s", s.Detector)
		}
	case DetectorNone:
	default:
		return fmt.Errorf("unknown HEADSHOT_DETECTOR %q (expected pigo, ollama, llamacpp or none)", s.Detector)
	}

	if s.S3Bucket != "" {
		if s.S3AccessKeyID == "" || s.S3SecretAccessKey == "" {
			return fmt.Errorf("S3_ACCESS_KEY_ID and S3_SECRET_ACCESS_KEY are required when S3_BUCKET is set")
		}
	}
	if s.CacheMaxEntries < 0 {
		return fmt.Errorf("CACHE_MAX_ENTRIES must not be negative, got %d", s.CacheMaxEntries)
	}
	return nil
}

// IsDevelopment reports whether the process runs in development mode
func (s *Settings) IsDevelopment() bool {
	return s.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

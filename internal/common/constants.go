package common

import "time"

// Service identity
const (
	ServiceName    = "Iris Classification API"
	ServiceVersion = "1.0.0"
)

// Environment variable keys
const (
	EnvConfigFile      = "CONFIG_FILE"
	EnvPort            = "PORT"
	EnvModelReference  = "MODEL_REFERENCE"
	EnvExperiment      = "EXPERIMENT_NAME"
	EnvTrackingPath    = "TRACKING_PATH"
	EnvLogLevel        = "LOG_LEVEL"
	EnvLogFormat       = "LOG_FORMAT"
	EnvLogFile         = "LOG_FILE"
	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"
	EnvMaxBodyBytes    = "MAX_BODY_BYTES"
	EnvAllowedOrigins  = "ALLOWED_ORIGINS"
	EnvServiceURL      = "IRIS_SERVICE_URL"
)

// Configuration defaults
const (
	DefaultPort            = 8000
	DefaultModelName       = "iris_classifier"
	DefaultModelReference  = "models:/" + DefaultModelName + "/latest"
	DefaultExperiment      = "iris-classification"
	DefaultTrackingPath    = "mlruns"
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "console"
	DefaultReadTimeout     = 10 * time.Second
	DefaultWriteTimeout    = 10 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
	DefaultMaxBodyBytes    = 64 << 10
	DefaultServiceURL      = "http://localhost:8000"
	DefaultArtifactPath    = "model"
)

// Validation constants
const (
	MinPort            = 1
	MaxPort            = 65535
	MinTimeout         = time.Second
	MaxTimeout         = 5 * time.Minute
	MinBodyBytes       = 1 << 10
	MaxBodyBytes       = 10 << 20
	ShortRunIDLength   = 7
	ProbabilityEpsilon = 1e-6
)

// Log formats
const (
	LogFormatConsole = "console"
	LogFormatJSON    = "json"
)

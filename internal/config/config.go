package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds application configuration values.
type Config struct {
	Secret         string
	HTTPPort       string
	DatabaseDriver string
	DatabaseDSN    string
	CatalogCSV     string
	LogLevel       string

	RobotAddress string
	RobotConfig  string
	RobotTimeout time.Duration

	OperatorUser         string
	OperatorPasswordHash string

	MQTTBroker string
	MQTTTopic  string
}

// Load reads configuration from environment variables with reasonable defaults.
func Load() Config {
	secret := os.Getenv("SECRET")
	if secret == "" {
		secret = "dev_secret"
	}

	port := os.Getenv("HTTP_PORT")
	if port == "" {
		port = "8080"
	}
	// Validate that port is numeric.
	if _, err := strconv.Atoi(port); err != nil {
		log.Printf("invalid HTTP_PORT value %q, defaulting to 8080", port)
		port = "8080"
	}

	driver := os.Getenv("DATABASE_DRIVER")
	switch driver {
	case "":
		driver = "sqlite"
	case "sqlite", "pgx":
	default:
		log.Printf("unsupported DATABASE_DRIVER %q, defaulting to sqlite", driver)
		driver = "sqlite"
	}

	dsn := os.Getenv("DATABASE_DSN")
	if dsn == "" {
		if driver == "pgx" {
			dsn = "postgres://postgres@localhost:5432/dispenser?sslmode=disable"
		} else {
			dsn = "medication_database.db"
		}
	}

	timeout := 2 * time.Minute
	if raw := os.Getenv("ROBOT_TIMEOUT"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			log.Printf("invalid ROBOT_TIMEOUT value %q, defaulting to %s", raw, timeout)
		} else {
			timeout = parsed
		}
	}

	operator := os.Getenv("OPERATOR_USER")
	if operator == "" {
		operator = "operator"
	}

	topic := os.Getenv("MQTT_TOPIC")
	if topic == "" {
		topic = "dispenser/events"
	}

	return Config{
		Secret:               secret,
		HTTPPort:             port,
		DatabaseDriver:       driver,
		DatabaseDSN:          dsn,
		CatalogCSV:           os.Getenv("CATALOG_CSV"),
		LogLevel:             os.Getenv("LOG_LEVEL"),
		RobotAddress:         os.Getenv("ROBOT_ADDRESS"),
		RobotConfig:          os.Getenv("ROBOT_CONFIG"),
		RobotTimeout:         timeout,
		OperatorUser:         operator,
		OperatorPasswordHash: os.Getenv("OPERATOR_PASSWORD_HASH"),
		MQTTBroker:           os.Getenv("MQTT_BROKER"),
		MQTTTopic:            topic,
	}
}

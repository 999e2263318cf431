package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	AppEnv   string
	LogLevel slog.Level
	HTTPAddr string

	MQTTEnabled            bool
	MQTTBroker             string
	MQTTPort               int
	MQTTClientID           string
	MQTTAdvertTopic        string
	MQTTReadingTopicPrefix string

	// DedupWindow suppresses identical payloads from the same device. Zero disables it.
	DedupWindow time.Duration

	KafkaBrokers []string
	KafkaTopic   string

	DeviceMapPath string
}

func LoadFromEnv() (Config, error) {
	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = "dev"
	}
	switch appEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	logLevelStr := strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if logLevelStr == "" {
		logLevelStr = "info"
	}
	level, err := parseLogLevel(logLevelStr)
	if err != nil {
		return Config{}, err
	}

	httpAddr := strings.TrimSpace(os.Getenv("HTTP_ADDR"))
	if httpAddr == "" {
		httpAddr = ":8080"
	}

	mqttEnabledStr := strings.TrimSpace(os.Getenv("MQTT_ENABLED"))
	if mqttEnabledStr == "" {
		mqttEnabledStr = "true"
	}
	mqttEnabled, err := strconv.ParseBool(mqttEnabledStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid MQTT_ENABLED %q: %w", mqttEnabledStr, err)
	}

	mqttBroker := strings.TrimSpace(os.Getenv("MQTT_BROKER"))
	if mqttBroker == "" {
		mqttBroker = "localhost"
	}

	mqttPortStr := strings.TrimSpace(os.Getenv("MQTT_PORT"))
	if mqttPortStr == "" {
		mqttPortStr = "1883"
	}
	mqttPort, err := strconv.Atoi(mqttPortStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid MQTT_PORT %q: %w", mqttPortStr, err)
	}

	mqttClientID := strings.TrimSpace(os.Getenv("MQTT_CLIENT_ID"))
	if mqttClientID == "" {
		mqttClientID = "govee-decoder"
	}

	advertTopic := strings.TrimSpace(os.Getenv("MQTT_ADVERT_TOPIC"))
	if advertTopic == "" {
		advertTopic = "govee/advertisements"
	}

	readingPrefix := strings.Trim(strings.TrimSpace(os.Getenv("MQTT_READING_TOPIC_PREFIX")), "/")
	if readingPrefix == "" {
		readingPrefix = "govee"
	}

	dedupWindowStr := strings.TrimSpace(os.Getenv("DEDUP_WINDOW"))
	if dedupWindowStr == "" {
		dedupWindowStr = "30s"
	}
	dedupWindow, err := time.ParseDuration(dedupWindowStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid DEDUP_WINDOW %q: %w", dedupWindowStr, err)
	}
	if dedupWindow < 0 {
		return Config{}, fmt.Errorf("DEDUP_WINDOW must not be negative, got %v", dedupWindow)
	}

	var kafkaBrokers []string
	for _, b := range strings.Split(os.Getenv("KAFKA_BROKERS"), ",") {
		if b = strings.TrimSpace(b); b != "" {
			kafkaBrokers = append(kafkaBrokers, b)
		}
	}

	kafkaTopic := strings.TrimSpace(os.Getenv("KAFKA_TOPIC"))
	if kafkaTopic == "" {
		kafkaTopic = "govee.readings"
	}

	return Config{
		AppEnv:                 appEnv,
		LogLevel:               level,
		HTTPAddr:               httpAddr,
		MQTTEnabled:            mqttEnabled,
		MQTTBroker:             mqttBroker,
		MQTTPort:               mqttPort,
		MQTTClientID:           mqttClientID,
		MQTTAdvertTopic:        advertTopic,
		MQTTReadingTopicPrefix: readingPrefix,
		DedupWindow:            dedupWindow,
		KafkaBrokers:           kafkaBrokers,
		KafkaTopic:             kafkaTopic,
		DeviceMapPath:          strings.TrimSpace(os.Getenv("DEVICE_MAP_PATH")),
	}, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}

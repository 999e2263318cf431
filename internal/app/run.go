package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"govee-decoder/internal/bridge"
	"govee-decoder/internal/config"
	"govee-decoder/internal/httpapi"
	"govee-decoder/internal/metrics"
	"govee-decoder/internal/mqtt"
	"govee-decoder/internal/sink"
	"govee-decoder/internal/stream"
)

func Run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	logger.Info("config loaded",
		"appEnv", cfg.AppEnv,
		"logLevel", cfg.LogLevel.String(),
		"httpAddr", cfg.HTTPAddr,
		"mqttEnabled", cfg.MQTTEnabled,
		"mqttBroker", cfg.MQTTBroker,
		"mqttPort", cfg.MQTTPort,
		"mqttAdvertTopic", cfg.MQTTAdvertTopic,
		"mqttReadingTopicPrefix", cfg.MQTTReadingTopicPrefix,
		"dedupWindow", cfg.DedupWindow,
		"kafkaBrokers", cfg.KafkaBrokers,
		"kafkaTopic", cfg.KafkaTopic,
		"deviceMapPath", cfg.DeviceMapPath,
	)

	devices, err := config.LoadDeviceMap(cfg.DeviceMapPath)
	if err != nil {
		return err
	}
	logger.Info("device map loaded", "devices", len(devices))

	m := metrics.New()
	hub := stream.NewHub(logger)
	sinks := []bridge.Sink{hub}

	var mqttClient *mqtt.Client
	if cfg.MQTTEnabled {
		mqttClient = mqtt.NewClient(cfg, logger)
		sinks = append(sinks, mqttClient)
	}

	if len(cfg.KafkaBrokers) > 0 {
		kafkaSink, err := sink.NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := kafkaSink.Close(); err != nil {
				logger.Error("kafka close", "error", err)
			}
		}()
		sinks = append(sinks, kafkaSink)
	}

	handler := bridge.NewHandler(bridge.Options{
		Devices:     devices,
		Sinks:       sinks,
		Metrics:     m,
		Logger:      logger,
		AdvertTopic: cfg.MQTTAdvertTopic,
		DedupWindow: cfg.DedupWindow,
	})
	go handler.Run(ctx)

	deps := httpapi.Deps{Metrics: m, Stream: hub}

	if mqttClient != nil {
		deps.Ready = mqttClient.IsConnected

		// Subscribe before Connect so the handlers are in place when the session comes up.
		for _, topic := range []string{cfg.MQTTAdvertTopic, cfg.MQTTAdvertTopic + "/+"} {
			if err := mqttClient.Subscribe(topic, handler.HandleMessage); err != nil {
				return err
			}
		}

		connectCtx, connectCancel := context.WithTimeout(ctx, 5*time.Second)
		err = mqttClient.Connect(connectCtx)
		connectCancel()
		if err != nil {
			logger.Warn("mqtt connection failed (continuing without mqtt, retrying in background)", "error", err)
			go func() {
				if err := mqttClient.Connect(ctx); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("mqtt connect failed", "error", err)
				}
			}()
		}
	}

	srv := httpapi.NewServer(cfg, httpapi.NewMux(deps))

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listening", "addr", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if mqttClient != nil {
		logger.Info("mqtt disconnecting")
		mqttClient.Disconnect()
	}

	logger.Info("http shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	err = <-errCh
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return ctx.Err()
}

package bridge

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"govee-decoder/internal/config"
	"govee-decoder/internal/metrics"
	"govee-decoder/pkg/govee"
	"govee-decoder/pkg/types"
)

const (
	dedupMaxDevices  = 500
	defaultQueueSize = 256
	handleTimeout    = 10 * time.Second
)

// Sink receives every decoded reading.
type Sink interface {
	Name() string
	Publish(ctx context.Context, reading types.GoveeReading) error
}

type message struct {
	topic string
	body  []byte
}

type lastSeen struct {
	payload string
	at      time.Time
}

// Handler decodes advertisements, drops repeats and fans readings out to sinks.
type Handler struct {
	devices     config.DeviceMap
	sinks       []Sink
	metrics     *metrics.Metrics
	logger      *slog.Logger
	advertTopic string
	dedupWindow time.Duration
	now         func() time.Time
	queue       chan message

	dedupMu sync.Mutex
	seen    map[string]lastSeen
}

type Options struct {
	Devices config.DeviceMap
	Sinks   []Sink
	Metrics *metrics.Metrics
	Logger  *slog.Logger
	// AdvertTopic is the base topic; bare-hex bodies on <AdvertTopic>/<address> take their address from it.
	AdvertTopic string
	DedupWindow time.Duration
	// QueueSize bounds the messages waiting for Run. Defaults to 256.
	QueueSize int
}

func NewHandler(opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	queueSize := opts.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Handler{
		devices:     opts.Devices,
		sinks:       opts.Sinks,
		metrics:     opts.Metrics,
		logger:      logger,
		advertTopic: opts.AdvertTopic,
		dedupWindow: opts.DedupWindow,
		now:         time.Now,
		queue:       make(chan message, queueSize),
		seen:        make(map[string]lastSeen),
	}
}

// HandleMessage is the MQTT entry point. It runs on the paho router, so it
// only queues the message for Run and never blocks; when the queue is full the
// message is dropped.
func (h *Handler) HandleMessage(topic string, body []byte) {
	select {
	case h.queue <- message{topic: topic, body: bytes.Clone(body)}:
	default:
		h.metrics.Decode("", metrics.ResultDropped)
		h.logger.Warn("bridge: queue full, dropping advertisement", "topic", topic)
	}
}

// Run decodes and publishes queued messages until ctx is done.
func (h *Handler) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-h.queue:
			h.process(ctx, msg)
		}
	}
}

func (h *Handler) process(ctx context.Context, msg message) {
	adv, err := ParseAdvertisement(h.advertTopic, msg.topic, msg.body)
	if err != nil {
		h.logger.Debug("bridge: ignore unparseable advertisement", "topic", msg.topic, "error", err)
		h.metrics.Decode("", metrics.ResultMalformed)
		return
	}
	ctx, cancel := context.WithTimeout(ctx, handleTimeout)
	defer cancel()
	if _, err := h.Handle(ctx, adv); err != nil {
		h.logger.Debug("bridge: advertisement not decoded", "addr", adv.Address, "data", adv.Data, "error", err)
	}
}

// ErrDuplicate is returned by Handle for a payload already forwarded inside the dedup window.
var ErrDuplicate = errors.New("duplicate advertisement")

// Handle decodes one advertisement and publishes the reading to every sink.
// Sink failures are logged and counted but do not fail the call.
func (h *Handler) Handle(ctx context.Context, adv Advertisement) (types.GoveeReading, error) {
	model, explicit := h.resolveModel(adv)

	var (
		reading govee.Reading
		err     error
	)
	switch {
	case explicit:
		reading, err = govee.DecodeForModel(model, adv.Data)
	case model != "" && matchesModel(model, adv.Data):
		reading, err = govee.DecodeForModel(model, adv.Data)
	default:
		if model != "" {
			h.logger.Debug("bridge: payload does not match hinted model, detecting", "addr", adv.Address, "hint", model, "data", adv.Data)
		}
		model, _ = govee.Detect(adv.Data)
		reading, err = govee.DecodeAny(adv.Data)
	}
	if err != nil {
		h.metrics.Decode(model, decodeResult(err))
		return types.GoveeReading{}, err
	}

	if h.isDuplicate(adv.Address, adv.Data) {
		h.metrics.Decode(model, metrics.ResultDuplicate)
		return types.GoveeReading{}, ErrDuplicate
	}
	h.metrics.Decode(model, metrics.ResultOK)

	out := types.NewGoveeReading(reading, model, adv.Address, adv.UUID, adv.RSSI, adv.SeenAt)
	for _, s := range h.sinks {
		err := s.Publish(ctx, out)
		h.metrics.Published(s.Name(), err)
		if err != nil {
			h.logger.Warn("bridge: failed to publish reading", "sink", s.Name(), "addr", out.Address, "error", err)
		}
	}

	h.logger.Info("bridge: reading decoded",
		"addr", out.Address,
		"model", out.Model,
		"rssi", out.RSSI,
		"tempC", out.TempInC, "humidity", out.Humidity, "battery", out.Battery,
		"data", adv.Data,
	)
	return out, nil
}

// resolveModel picks the model from, in order: the advertisement itself, the
// device map, and the local name. Empty means auto-detect. Only a model named
// by the advertisement is explicit; the others are hints that the payload
// must confirm, since sensors also broadcast unrelated frames such as iBeacon.
func (h *Handler) resolveModel(adv Advertisement) (string, bool) {
	if adv.Model != "" {
		return adv.Model, true
	}
	if d, ok := h.devices.Lookup(adv.Address); ok {
		return d.Model, false
	}
	if m, ok := govee.ModelFromLocalName(adv.LocalName); ok {
		return m, false
	}
	return "", false
}

func matchesModel(name, payload string) bool {
	m, ok := govee.Lookup(name)
	return ok && m.Validate(payload)
}

func (h *Handler) isDuplicate(address, payload string) bool {
	if h.dedupWindow <= 0 {
		return false
	}
	now := h.now()

	h.dedupMu.Lock()
	defer h.dedupMu.Unlock()

	if prev, ok := h.seen[address]; ok && prev.payload == payload && now.Sub(prev.at) < h.dedupWindow {
		return true
	}
	if _, known := h.seen[address]; !known && len(h.seen) >= dedupMaxDevices {
		h.seen = make(map[string]lastSeen)
	}
	h.seen[address] = lastSeen{payload: payload, at: now}
	return false
}

func decodeResult(err error) string {
	switch {
	case errors.Is(err, govee.ErrUnsupportedPayload):
		return metrics.ResultUnsupported
	case errors.Is(err, govee.ErrUnknownModel):
		return metrics.ResultUnknown
	default:
		return metrics.ResultMalformed
	}
}

package sink

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"govee-decoder/pkg/types"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.msgs = append(f.msgs, msgs...)
	return f.err
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestNewKafka_Validation(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if _, err := NewKafka(nil, "t", logger); err == nil {
		t.Error("NewKafka(no brokers) error = nil, want non-nil")
	}
	if _, err := NewKafka([]string{"localhost:9092"}, "", logger); err == nil {
		t.Error("NewKafka(no topic) error = nil, want non-nil")
	}
	k, err := NewKafka([]string{"localhost:9092"}, "govee.readings", logger)
	if err != nil {
		t.Fatalf("NewKafka() error = %v", err)
	}
	if k.Name() != "kafka" {
		t.Errorf("Name() = %q", k.Name())
	}
}

func TestKafka_Publish(t *testing.T) {
	w := &fakeWriter{}
	k := &Kafka{w: w, topic: "govee.readings", logger: slog.Default()}

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := types.GoveeReading{Address: "A4:C1:38:00:11:22", Model: "H5075", TempInC: 22.3441, Battery: 88, Timestamp: at}
	if err := k.Publish(context.Background(), r); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	if len(w.msgs) != 1 {
		t.Fatalf("wrote %d messages; want 1", len(w.msgs))
	}
	msg := w.msgs[0]
	if string(msg.Key) != r.Address {
		t.Errorf("Key = %q; want %q", msg.Key, r.Address)
	}
	if !msg.Time.Equal(at) {
		t.Errorf("Time = %v; want %v", msg.Time, at)
	}
	var got types.GoveeReading
	if err := json.Unmarshal(msg.Value, &got); err != nil {
		t.Fatalf("value is not JSON: %v", err)
	}
	if got.Model != "H5075" || got.Battery != 88 {
		t.Errorf("value = %+v", got)
	}
	if len(msg.Headers) != 1 || string(msg.Headers[0].Value) != "H5075" {
		t.Errorf("Headers = %+v", msg.Headers)
	}

	if err := k.Close(); err != nil || !w.closed {
		t.Errorf("Close() = %v, closed = %v", err, w.closed)
	}
}

func TestKafka_PublishError(t *testing.T) {
	w := &fakeWriter{err: errors.New("leader not available")}
	k := &Kafka{w: w, topic: "govee.readings", logger: slog.Default()}

	if err := k.Publish(context.Background(), types.GoveeReading{Address: "AA"}); err == nil {
		t.Fatal("Publish() error = nil, want non-nil")
	}
}

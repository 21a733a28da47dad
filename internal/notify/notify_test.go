package notify

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

func TestNewMessage(t *testing.T) {
	msg := NewMessage("event", "created", "abc", nil)
	if msg.Type != "event_created" {
		t.Errorf("type = %q, want %q", msg.Type, "event_created")
	}
	if msg.Entity != "event" {
		t.Errorf("entity = %q, want %q", msg.Entity, "event")
	}
	if msg.Action != "created" {
		t.Errorf("action = %q, want %q", msg.Action, "created")
	}
	if msg.ID != "abc" {
		t.Errorf("id = %q, want %q", msg.ID, "abc")
	}
}

func TestMultiNotifiesAllAndJoinsErrors(t *testing.T) {
	var got []string
	record := func(name string, err error) Notifier {
		return Func(func(_ context.Context, msg Message) error {
			got = append(got, name+":"+msg.Type)
			return err
		})
	}
	boom := errors.New("boom")

	m := Multi{record("a", nil), nil, record("b", boom), record("c", nil)}
	err := m.Notify(context.Background(), NewMessage("user", "deleted", "u1", nil))
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
	want := []string{"a:user_deleted", "b:user_deleted", "c:user_deleted"}
	if !slices.Equal(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
}

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func header(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestKafkaNotifierWritesRecord(t *testing.T) {
	w := &fakeWriter{}
	k := &KafkaNotifier{writer: w, topic: "eventpilot.events"}

	msg := NewMessage("event", "created", "evt-1", map[string]any{"organizer_id": "u1"})
	if err := k.Notify(context.Background(), msg); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("messages = %d, want 1", len(w.msgs))
	}

	record := w.msgs[0]
	if string(record.Key) != "evt-1" {
		t.Errorf("key = %q, want %q", record.Key, "evt-1")
	}
	if got := header(record, "event_type"); got != "event_created" {
		t.Errorf("event_type header = %q, want %q", got, "event_created")
	}
	if header(record, "event_id") == "" {
		t.Error("expected event_id header")
	}

	var decoded Message
	if err := json.Unmarshal(record.Value, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Type != "event_created" || decoded.Extra["organizer_id"] != "u1" {
		t.Errorf("payload = %+v", decoded)
	}

	if err := k.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !w.closed {
		t.Error("writer should be closed")
	}
}

func TestKafkaNotifierWrapsWriteError(t *testing.T) {
	down := errors.New("broker down")
	k := &KafkaNotifier{writer: &fakeWriter{err: down}, topic: "t"}

	err := k.Notify(context.Background(), NewMessage("user", "created", "u1", nil))
	if !errors.Is(err, down) {
		t.Errorf("err = %v, want broker down", err)
	}
}

func TestNewKafkaNotifierFlushesQuickly(t *testing.T) {
	k := NewKafkaNotifier([]string{"localhost:9092"}, "eventpilot.events")
	defer k.Close()

	w, ok := k.writer.(*kafka.Writer)
	if !ok {
		t.Fatalf("writer = %T, want *kafka.Writer", k.writer)
	}
	if w.BatchTimeout <= 0 || w.BatchTimeout > 50*time.Millisecond {
		t.Errorf("batch timeout = %s, want a few milliseconds", w.BatchTimeout)
	}
	if w.Topic != "eventpilot.events" {
		t.Errorf("topic = %q, want %q", w.Topic, "eventpilot.events")
	}
}

func TestSplitBrokers(t *testing.T) {
	tests := []struct {
		raw  string
		want []string
	}{
		{"", nil},
		{"localhost:9092", []string{"localhost:9092"}},
		{" a:9092, ,b:9092 ", []string{"a:9092", "b:9092"}},
	}
	for _, tt := range tests {
		if got := SplitBrokers(tt.raw); !slices.Equal(got, tt.want) {
			t.Errorf("SplitBrokers(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

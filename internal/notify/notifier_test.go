package notify

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"

	"github.com/lox/siteweather/internal/store"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []Message
	fail map[string]bool
}

func (f *fakeSender) Send(_ context.Context, m Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[m.To] {
		return errors.New("mailbox unavailable")
	}
	f.sent = append(f.sent, m)
	return nil
}

type fakeWriter struct {
	msgs []kafka.Message
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func setupStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(store.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	if err := st.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return st
}

func TestNotify(t *testing.T) {
	st := setupStore(t)
	sender := &fakeSender{}
	writer := &fakeWriter{}
	n := NewNotifier(NewComposer(nil), sender, NewStoreCooldown(st), st, &KafkaPublisher{writer: writer})
	ctx := context.Background()

	res, err := n.Notify(ctx, testAlert())
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if res.Sent != 2 || res.Suppressed != 0 {
		t.Fatalf("first result = %+v", res)
	}
	if len(sender.sent) != 2 || sender.sent[0].To != "dana@example.com" || sender.sent[1].To != "luis@example.com" {
		t.Errorf("sent = %+v", sender.sent)
	}

	if len(writer.msgs) != 1 {
		t.Fatalf("published %d events, want 1", len(writer.msgs))
	}
	if string(writer.msgs[0].Key) != "j1" {
		t.Errorf("event key = %q", writer.msgs[0].Key)
	}
	var ev AlertEvent
	if err := json.Unmarshal(writer.msgs[0].Value, &ev); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if strings.Join(ev.Hazards, ",") != "rain,wind" || ev.Recipients != 2 {
		t.Errorf("event = %+v", ev)
	}

	// Same hazards again inside the cooldown: nobody is emailed.
	res, err = n.Notify(ctx, testAlert())
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if res.Sent != 0 || res.Suppressed != 2 {
		t.Errorf("second result = %+v", res)
	}
	if len(writer.msgs) != 1 {
		t.Errorf("no event expected when nothing was sent")
	}

	logged, err := st.ListNotifications(ctx, "u1", 10)
	if err != nil {
		t.Fatalf("ListNotifications: %v", err)
	}
	if len(logged) != 4 {
		t.Errorf("logged %d notifications, want 4 (2 recipients x 2 hazards)", len(logged))
	}
}

func TestNotify_AllFailed(t *testing.T) {
	st := setupStore(t)
	sender := &fakeSender{fail: map[string]bool{"dana@example.com": true, "luis@example.com": true}}
	n := NewNotifier(NewComposer(nil), sender, NewStoreCooldown(st), st, nil)

	res, err := n.Notify(context.Background(), testAlert())
	if err == nil {
		t.Fatal("expected error when every send fails")
	}
	if res.Failed != 2 {
		t.Errorf("Failed = %d, want 2", res.Failed)
	}

	// Failed sends do not start a cooldown.
	sender.fail = nil
	res, err = n.Notify(context.Background(), testAlert())
	if err != nil || res.Sent != 2 {
		t.Errorf("retry result = %+v, %v", res, err)
	}
}

func TestNotify_NoRecipients(t *testing.T) {
	st := setupStore(t)
	sender := &fakeSender{}
	n := NewNotifier(NewComposer(nil), sender, nil, st, nil)

	a := testAlert()
	a.Recipients = nil
	res, err := n.Notify(context.Background(), a)
	if err != nil || res.Sent != 0 || len(sender.sent) != 0 {
		t.Errorf("result = %+v, %v", res, err)
	}
}

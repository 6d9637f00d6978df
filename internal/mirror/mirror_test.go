package mirror

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

func f64(v float64) *float64 { return &v }

type recordingMirror struct {
	calls []Event
	err   error
}

func (r *recordingMirror) Update(_ context.Context, id int64, s State) error {
	r.calls = append(r.calls, Event{DriverID: id, State: s})
	return r.err
}

func TestFanoutCallsEverySinkAndJoinsErrors(t *testing.T) {
	a := &recordingMirror{}
	b := &recordingMirror{err: errors.New("boom")}
	c := &recordingMirror{}
	f := NewFanout(Sink{Name: "a", Mirror: a}, Sink{Name: "b", Mirror: b})
	f.Add("c", c)

	err := f.Update(context.Background(), 5, State{Available: true})
	if err == nil {
		t.Fatal("expected error from sink b")
	}
	var me *Error
	if !errors.As(err, &me) || me.Sink != "b" {
		t.Fatalf("expected *Error for sink b, got %v", err)
	}
	if len(a.calls) != 1 || len(b.calls) != 1 || len(c.calls) != 1 {
		t.Fatalf("every sink must be called: %d %d %d", len(a.calls), len(b.calls), len(c.calls))
	}
	if got := strings.Join(f.Names(), ","); got != "a,b,c" {
		t.Fatalf("unexpected names %s", got)
	}
}

type fakeRedis struct {
	hashes    map[string]map[string]interface{}
	geo       map[string]*redis.GeoLocation
	removed   []string
	published [][]byte
	failHSet  bool
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{hashes: map[string]map[string]interface{}{}, geo: map[string]*redis.GeoLocation{}}
}

func (f *fakeRedis) HSet(_ context.Context, key string, values map[string]interface{}) error {
	if f.failHSet {
		return errors.New("hset fail")
	}
	f.hashes[key] = values
	return nil
}

func (f *fakeRedis) GeoAdd(_ context.Context, _ string, loc *redis.GeoLocation) error {
	f.geo[loc.Name] = loc
	return nil
}

func (f *fakeRedis) ZRem(_ context.Context, _ string, member string) error {
	f.removed = append(f.removed, member)
	delete(f.geo, member)
	return nil
}

func (f *fakeRedis) Publish(_ context.Context, _ string, payload []byte) error {
	f.published = append(f.published, payload)
	return nil
}

func TestRedisMirrorAvailableDriver(t *testing.T) {
	fr := newFakeRedis()
	m := NewRedisMirror(fr, "drivers_geo", "driver-updates")
	if err := m.Update(context.Background(), 5, State{Available: true, Latitude: f64(12.9), Longitude: f64(77.6), UpdatedAt: 1000}); err != nil {
		t.Fatal(err)
	}
	h := fr.hashes["driver:state:5"]
	if h["available"] != "true" || h["latitude"] != "12.9" || h["updatedAt"] != "1000" {
		t.Fatalf("unexpected hash %v", h)
	}
	if loc := fr.geo["5"]; loc == nil || loc.Longitude != 77.6 {
		t.Fatalf("driver not added to geo set: %v", fr.geo)
	}
	if len(fr.published) != 1 {
		t.Fatalf("expected one publish, got %d", len(fr.published))
	}
	ev, err := DecodeEvent(fr.published[0])
	if err != nil || ev.DriverID != 5 || !ev.State.Available {
		t.Fatalf("unexpected event %+v %v", ev, err)
	}
}

func TestRedisMirrorUnavailableDriverLeavesGeoSet(t *testing.T) {
	fr := newFakeRedis()
	m := NewRedisMirror(fr, "drivers_geo", "")
	_ = m.Update(context.Background(), 7, State{Available: true, Latitude: f64(1), Longitude: f64(2)})
	if err := m.Update(context.Background(), 7, State{Available: false}); err != nil {
		t.Fatal(err)
	}
	if _, ok := fr.geo["7"]; ok || len(fr.removed) != 1 {
		t.Fatalf("expected removal from geo set, geo=%v removed=%v", fr.geo, fr.removed)
	}
	if fr.hashes["driver:state:7"]["latitude"] != "" {
		t.Fatalf("nil latitude should be stored empty")
	}
	if len(fr.published) != 0 {
		t.Fatal("no channel configured, nothing should be published")
	}
}

func TestRedisMirrorPropagatesErrors(t *testing.T) {
	fr := newFakeRedis()
	fr.failHSet = true
	if err := NewRedisMirror(fr, "g", "c").Update(context.Background(), 1, State{}); err == nil {
		t.Fatal("expected error")
	}
}

type fakeWriter struct {
	msgs []kafka.Message
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestKafkaMirrorKeysByDriver(t *testing.T) {
	w := &fakeWriter{}
	m := NewKafkaMirror(w)
	if err := m.Update(context.Background(), 42, State{Available: true, UpdatedAt: 9}); err != nil {
		t.Fatal(err)
	}
	if len(w.msgs) != 1 || string(w.msgs[0].Key) != "42" {
		t.Fatalf("unexpected messages %+v", w.msgs)
	}
	ev, err := DecodeEvent(w.msgs[0].Value)
	if err != nil || ev.DriverID != 42 || ev.State.UpdatedAt != 9 {
		t.Fatalf("unexpected event %+v %v", ev, err)
	}
}

func TestDecodeEventRejectsInvalid(t *testing.T) {
	for _, in := range []string{"{", `{"state":{"available":true}}`} {
		if _, err := DecodeEvent([]byte(in)); err == nil {
			t.Errorf("expected error for %s", in)
		}
	}
}

type fakeDocuments struct {
	path   string
	fields map[string]interface{}
	err    error
}

func (f *fakeDocuments) Update(_ context.Context, path string, fields map[string]interface{}) error {
	f.path, f.fields = path, fields
	return f.err
}

func TestFirebaseMirrorUpdatesDriverDocument(t *testing.T) {
	docs := &fakeDocuments{}
	m := NewFirebaseMirror(docs)
	if err := m.Update(context.Background(), 5, State{Available: true, Latitude: f64(12.9), UpdatedAt: 123}); err != nil {
		t.Fatal(err)
	}
	if docs.path != "drivers/5" {
		t.Fatalf("unexpected path %q", docs.path)
	}
	lat, _ := docs.fields["latitude"].(*float64)
	lng, _ := docs.fields["longitude"].(*float64)
	if docs.fields["available"] != true || lat == nil || *lat != 12.9 || lng != nil || docs.fields["updatedAt"] != int64(123) {
		t.Fatalf("unexpected fields %v", docs.fields)
	}
}

func TestFirebaseMirrorReportsErrors(t *testing.T) {
	docs := &fakeDocuments{err: errors.New("http error status: 401; reason: Permission denied")}
	err := NewFirebaseMirror(docs).Update(context.Background(), 1, State{})
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Fatalf("expected 401 error, got %v", err)
	}
}

func TestHubBroadcastsToClients(t *testing.T) {
	hub := NewHub(zap.NewNop(), func(*http.Request) bool { return true })
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Len() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := hub.Update(context.Background(), 3, State{Available: true}); err != nil {
		t.Fatal(err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read: %v", err)
	}
	if ev.DriverID != 3 || !ev.State.Available {
		t.Fatalf("unexpected event %+v", ev)
	}

	conn.Close()
	deadline = time.Now().Add(2 * time.Second)
	for hub.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("closed client was not removed")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHubDropsStalledClientWithoutBlocking(t *testing.T) {
	hub := NewHub(zap.NewNop(), func(*http.Request) bool { return true })
	// Registers the client without a writer so its queue never drains.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := hub.upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		hub.add(conn)
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Len() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	start := time.Now()
	for i := 0; i < sendBuffer; i++ {
		if err := hub.Update(context.Background(), int64(i), State{Available: true}); err != nil {
			t.Fatal(err)
		}
	}
	if hub.Len() != 1 {
		t.Fatal("client dropped before its queue filled")
	}
	if err := hub.Update(context.Background(), 99, State{}); err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("updates blocked on a stalled client for %s", elapsed)
	}
	if hub.Len() != 0 {
		t.Fatal("stalled client was not dropped")
	}
}

type fakePublisher struct {
	exchange, key string
	msg           amqp091.Publishing
	err           error
}

func (f *fakePublisher) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp091.Publishing) error {
	f.exchange, f.key, f.msg = exchange, key, msg
	return f.err
}

func TestAMQPMirrorPublishesEvent(t *testing.T) {
	pub := &fakePublisher{}
	m := NewAMQPMirror(pub, "driver-availability")
	if err := m.Update(context.Background(), 9, State{Available: true, Latitude: f64(1), Longitude: f64(2), UpdatedAt: 42}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if pub.exchange != "driver-availability" || pub.key != "9" || pub.msg.ContentType != "application/json" {
		t.Fatalf("unexpected publish %+v", pub)
	}
	ev, err := DecodeEvent(pub.msg.Body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.DriverID != 9 || ev.State.UpdatedAt != 42 || *ev.State.Longitude != 2 {
		t.Fatalf("unexpected event %+v", ev)
	}

	pub.err = errors.New("channel closed")
	if err := m.Update(context.Background(), 9, State{}); err == nil {
		t.Fatal("expected publish error")
	}
}

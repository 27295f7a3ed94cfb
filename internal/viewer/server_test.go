package viewer

import (
	"context"
	"encoding/binary"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shaiso/sensorhub/internal/domain"
	"github.com/shaiso/sensorhub/internal/store"
	"github.com/shaiso/sensorhub/internal/telemetry"
	"github.com/shaiso/sensorhub/internal/wire"
)

// --- Helpers ---

type testServer struct {
	*Server
	cancel context.CancelFunc
	done   chan error
}

func startServer(t *testing.T, cfg Config) *testServer {
	t.Helper()

	if cfg.Listener == nil {
		ln, err := Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("listen: %v", err)
		}
		cfg.Listener = ln
	}
	if cfg.WaitInterval == 0 {
		cfg.WaitInterval = 10 * time.Millisecond
	}
	cfg.Logger = telemetry.Discard()

	srv, err := NewServer(cfg)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	ts := &testServer{Server: srv, cancel: cancel, done: make(chan error, 1)}
	go func() { ts.done <- srv.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		<-ts.done
	})
	return ts
}

func dial(t *testing.T, srv *testServer) net.Conn {
	t.Helper()
	conn, err := net.Dial("tcp", srv.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func readReply(t *testing.T, conn net.Conn) wire.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	msg, err := wire.ReadMessage(conn)
	if err != nil {
		t.Fatalf("read reply: %v", err)
	}
	return msg
}

func roundTrip(t *testing.T, conn net.Conn, msg wire.Message) wire.Message {
	t.Helper()
	if err := wire.WriteMessage(conn, msg); err != nil {
		t.Fatalf("write request: %v", err)
	}
	return readReply(t, conn)
}

func testSnapshot() domain.Snapshot {
	ts := time.Now().UTC()
	return domain.Snapshot{
		Tick:      7,
		Timestamp: ts,
		Readings: []domain.Reading{
			{SensorAddress: 0x40, Temperature: 21.5, Humidity: 40, Timestamp: ts},
			{SensorAddress: 0x41, Temperature: 19.25, Humidity: 55, Timestamp: ts, Stale: true},
		},
	}
}

// wrapListener подменяет принятые соединения: wrap получает порядковый
// номер соединения.
type wrapListener struct {
	net.Listener
	wrap func(n int, conn net.Conn) net.Conn
	n    int
}

func (l *wrapListener) Accept() (net.Conn, error) {
	conn, err := l.Listener.Accept()
	if err != nil {
		return nil, err
	}
	n := l.n
	l.n++
	return l.wrap(n, conn), nil
}

func wrapTCP(t *testing.T, wrap func(n int, conn net.Conn) net.Conn) net.Listener {
	t.Helper()
	ln, err := Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	return &wrapListener{Listener: ln, wrap: wrap}
}

// brokenConn не принимает записи; чтение идёт из настоящего соединения.
type brokenConn struct {
	net.Conn
}

func (c brokenConn) Write([]byte) (int, error) {
	return 0, errors.New("broken pipe")
}

// stallingConn держит каждую запись до дедлайна.
type stallingConn struct {
	net.Conn

	mu       sync.Mutex
	deadline time.Time
	once     sync.Once
	closed   chan struct{}
}

func newStallingConn(conn net.Conn) *stallingConn {
	return &stallingConn{Conn: conn, closed: make(chan struct{})}
}

func (c *stallingConn) SetWriteDeadline(d time.Time) error {
	c.mu.Lock()
	c.deadline = d
	c.mu.Unlock()
	return nil
}

func (c *stallingConn) Write([]byte) (int, error) {
	c.mu.Lock()
	d := c.deadline
	c.mu.Unlock()

	timer := time.NewTimer(time.Until(d))
	defer timer.Stop()

	select {
	case <-timer.C:
		return 0, os.ErrDeadlineExceeded
	case <-c.closed:
		return 0, net.ErrClosed
	}
}

func (c *stallingConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return c.Conn.Close()
}

// --- Tests ---

func TestNewServer_RequiresListener(t *testing.T) {
	if _, err := NewServer(Config{}); err == nil {
		t.Error("expected error without listener")
	}
}

func TestServer_RejectsBeyondCapacity(t *testing.T) {
	srv := startServer(t, Config{Capacity: 2})

	dial(t, srv)
	dial(t, srv)
	waitFor(t, "2 viewers", func() bool { return srv.Viewers() == 2 })

	extra := dial(t, srv)
	extra.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1)
	_, err := extra.Read(buf)
	if err == nil {
		t.Fatal("expected rejected connection to be closed")
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		t.Fatal("rejected connection was not closed")
	}

	if srv.Viewers() != 2 {
		t.Errorf("viewer count changed by rejection: %d", srv.Viewers())
	}
}

func TestServer_BroadcastAfterViewerHangup(t *testing.T) {
	srv := startServer(t, Config{Capacity: 4})

	conns := []net.Conn{dial(t, srv), dial(t, srv), dial(t, srv)}
	waitFor(t, "3 viewers", func() bool { return srv.Viewers() == 3 })

	// Один зритель отключается до рассылки
	conns[1].Close()

	snap := testSnapshot()
	srv.Broadcast(wire.NewSensorData(wire.RecordsFromSnapshot(snap, nil)))

	for _, i := range []int{0, 2} {
		msg := readReply(t, conns[i])
		records, err := msg.SensorRecords()
		if err != nil {
			t.Fatalf("viewer %d: %v", i, err)
		}
		if len(records) != 2 || records[0].Temperature != 21.5 || records[1].Active {
			t.Errorf("viewer %d: unexpected records %+v", i, records)
		}
	}

	waitFor(t, "failed viewer slot released", func() bool { return srv.Viewers() == 2 })
}

func TestServer_DisconnectFreesSlot(t *testing.T) {
	srv := startServer(t, Config{Capacity: 1})

	first := dial(t, srv)
	waitFor(t, "first viewer", func() bool { return srv.Viewers() == 1 })

	first.Close()
	waitFor(t, "slot released", func() bool { return srv.Viewers() == 0 })

	second := dial(t, srv)
	waitFor(t, "second viewer", func() bool { return srv.Viewers() == 1 })

	// Второй зритель занимает освободившийся слот и получает рассылку
	srv.Broadcast(wire.NewStatus("hello"))
	if msg := readReply(t, second); msg.Text() != "hello" {
		t.Errorf("unexpected message: %q", msg.Text())
	}
}

func TestNewServer_SendTimeoutBounded(t *testing.T) {
	ln, err := Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	tests := []struct {
		name        string
		wait, send  time.Duration
		wantTimeout time.Duration
	}{
		{"default", 0, 0, defaultWaitInterval},
		{"longer than wait interval", 50 * time.Millisecond, time.Second, 50 * time.Millisecond},
		{"shorter than wait interval", 50 * time.Millisecond, 20 * time.Millisecond, 20 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, err := NewServer(Config{Listener: ln, WaitInterval: tt.wait, SendTimeout: tt.send})
			if err != nil {
				t.Fatal(err)
			}
			if srv.sendTimeout != tt.wantTimeout {
				t.Errorf("sendTimeout = %v, want %v", srv.sendTimeout, tt.wantTimeout)
			}
		})
	}
}

func TestServer_SendFailureReleasesSlot(t *testing.T) {
	// Второе принятое соединение не принимает записи
	ln := wrapTCP(t, func(n int, conn net.Conn) net.Conn {
		if n == 1 {
			return brokenConn{conn}
		}
		return conn
	})
	srv := startServer(t, Config{Listener: ln, Capacity: 3})

	conns := make([]net.Conn, 3)
	for i := range conns {
		conns[i] = dial(t, srv)
		want := i + 1
		waitFor(t, "viewer admitted", func() bool { return srv.Viewers() == want })
	}

	srv.Broadcast(wire.NewStatus("tick"))

	for _, i := range []int{0, 2} {
		if msg := readReply(t, conns[i]); msg.Text() != "tick" {
			t.Errorf("viewer %d: unexpected message %q", i, msg.Text())
		}
	}
	waitFor(t, "failed slot released", func() bool { return srv.Viewers() == 2 })

	// Соединение со сломанной записью закрыто сервером
	conns[1].SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := conns[1].Read(make([]byte, 1)); err == nil {
		t.Error("failed viewer should be disconnected")
	}

	// При полной ёмкости новый зритель попадает только в освободившийся слот
	next := dial(t, srv)
	waitFor(t, "slot reused", func() bool { return srv.Viewers() == 3 })

	srv.Broadcast(wire.NewStatus("again"))
	if msg := readReply(t, next); msg.Text() != "again" {
		t.Errorf("new viewer: unexpected message %q", msg.Text())
	}
}

func TestServer_StallingViewersDoNotDelayStop(t *testing.T) {
	ln := wrapTCP(t, func(_ int, conn net.Conn) net.Conn {
		return newStallingConn(conn)
	})
	srv := startServer(t, Config{
		Listener:     ln,
		Capacity:     4,
		WaitInterval: 50 * time.Millisecond,
		SendTimeout:  time.Second,
	})

	for i := 0; i < 3; i++ {
		dial(t, srv)
	}
	waitFor(t, "3 viewers", func() bool { return srv.Viewers() == 3 })

	srv.Broadcast(wire.NewStatus("slow"))
	time.Sleep(5 * time.Millisecond)

	start := time.Now()
	srv.cancel()

	select {
	case err := <-srv.done:
		srv.done <- err
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}

	// Вся рассылка укладывается в один WaitInterval
	if elapsed := time.Since(start); elapsed > 300*time.Millisecond {
		t.Errorf("stop took %v with stalled viewers", elapsed)
	}
}

func TestServer_StopClosesEverything(t *testing.T) {
	srv := startServer(t, Config{})

	conn := dial(t, srv)
	waitFor(t, "viewer", func() bool { return srv.Viewers() == 1 })

	start := time.Now()
	srv.cancel()

	select {
	case err := <-srv.done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
		srv.done <- err
	case <-time.After(time.Second):
		t.Fatal("server did not stop")
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("stop took %v", elapsed)
	}

	conn.SetReadDeadline(time.Now().Add(time.Second))
	if _, err := conn.Read(make([]byte, 1)); err == nil {
		t.Error("viewer connection should be closed on stop")
	}
	if _, err := net.DialTimeout("tcp", srv.Addr().String(), 200*time.Millisecond); err == nil {
		t.Error("listener should be closed on stop")
	}
	if srv.Viewers() != 0 {
		t.Errorf("expected 0 viewers after stop, got %d", srv.Viewers())
	}
}

func TestServer_RunTwice(t *testing.T) {
	srv := startServer(t, Config{})
	waitFor(t, "server running", func() bool { return srv.running.Load() })

	if err := srv.Run(context.Background()); !errors.Is(err, ErrServerClosed) {
		t.Errorf("expected ErrServerClosed, got %v", err)
	}
}

func TestServer_SensorList(t *testing.T) {
	st := store.New()
	roster, _ := domain.DefaultRoster(2)
	roster.SetName(0x40, "Greenhouse")
	srv := startServer(t, Config{Store: st, Roster: roster})
	conn := dial(t, srv)

	// До первого тика ответ пустой
	msg := roundTrip(t, conn, wire.NewSensorList())
	records, err := msg.SensorRecords()
	if err != nil || len(records) != 0 {
		t.Fatalf("expected empty SensorData, got %v, %v", records, err)
	}

	st.Write(testSnapshot())
	msg = roundTrip(t, conn, wire.NewSensorList())
	records, err = msg.SensorRecords()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 || records[0].Name != "Greenhouse" || records[1].Humidity != 55 {
		t.Errorf("unexpected records: %+v", records)
	}
}

func TestServer_ControlCommands(t *testing.T) {
	roster, _ := domain.DefaultRoster(3)
	srv := startServer(t, Config{Roster: roster})
	conn := dial(t, srv)

	tests := []struct {
		command string
		reply   string
	}{
		{"disable 0x41", "ok"},
		{"enable 66", "ok"},
		{"rename 0x40 North Wall", "ok"},
		{"disable 0x7F", "error: sensor not found"},
		{"rename 0x40", "error: usage"},
		{"reboot 0x40", "error: unknown command"},
		{"disable banana", "error: invalid sensor address"},
		{"", "error: usage"},
	}

	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			msg := roundTrip(t, conn, wire.NewControl(tt.command))
			if msg.Type != wire.TypeStatus {
				t.Fatalf("expected Status reply, got %s", msg.Type)
			}
			if !strings.HasPrefix(msg.Text(), tt.reply) {
				t.Errorf("reply = %q, want prefix %q", msg.Text(), tt.reply)
			}
		})
	}

	if s, _ := roster.Get(0x41); s.Active {
		t.Error("0x41 should be disabled")
	}
	if s, _ := roster.Get(0x40); s.Name != "North Wall" {
		t.Errorf("0x40 name = %q", s.Name)
	}
}

// fakeCatalog передаёт сохранённые датчики в канал.
type fakeCatalog struct {
	saved chan domain.Sensor
	err   error
}

func (f *fakeCatalog) Upsert(_ context.Context, s domain.Sensor) error {
	f.saved <- s
	return f.err
}

func TestServer_RenamePersistsToCatalog(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"saved", nil},
		{"catalog unavailable", errors.New("connection refused")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			roster, _ := domain.DefaultRoster(2)
			catalog := &fakeCatalog{saved: make(chan domain.Sensor, 4), err: tt.err}
			srv := startServer(t, Config{Roster: roster, Catalog: catalog})
			conn := dial(t, srv)

			// Ошибка каталога не меняет ответ: имя в ростере уже новое
			if msg := roundTrip(t, conn, wire.NewControl("rename 0x41 Attic")); msg.Text() != "ok" {
				t.Fatalf("reply = %q", msg.Text())
			}

			select {
			case s := <-catalog.saved:
				if s.Address != 0x41 || s.Name != "Attic" {
					t.Errorf("saved %+v", s)
				}
			case <-time.After(2 * time.Second):
				t.Fatal("rename was not saved to catalog")
			}

			// enable/disable в каталог не пишутся, как и отклонённые команды
			roundTrip(t, conn, wire.NewControl("disable 0x40"))
			roundTrip(t, conn, wire.NewControl("rename 0x7F Ghost"))

			// Run дожидается фоновых сохранений
			srv.cancel()
			err := <-srv.done
			srv.done <- err

			select {
			case s := <-catalog.saved:
				t.Errorf("unexpected save %+v", s)
			default:
			}
		})
	}
}

func TestServer_ControlWithoutRoster(t *testing.T) {
	srv := startServer(t, Config{})
	conn := dial(t, srv)

	msg := roundTrip(t, conn, wire.NewControl("disable 0x40"))
	if !strings.HasPrefix(msg.Text(), "error:") {
		t.Errorf("expected error reply, got %q", msg.Text())
	}
}

func TestServer_StatusRequest(t *testing.T) {
	st := store.New()
	st.Write(testSnapshot())
	srv := startServer(t, Config{Store: st, Capacity: 5})
	conn := dial(t, srv)

	msg := roundTrip(t, conn, wire.NewStatus(""))
	text := msg.Text()
	for _, want := range []string{"running", "viewers=1", "capacity=5", "tick=7"} {
		if !strings.Contains(text, want) {
			t.Errorf("status %q missing %q", text, want)
		}
	}
}

func TestServer_UnsupportedType(t *testing.T) {
	srv := startServer(t, Config{Store: store.New()})
	conn := dial(t, srv)

	// Конверт с неизвестным типом
	raw := make([]byte, wire.EnvelopeSize)
	binary.LittleEndian.PutUint32(raw[0:4], 99)
	if _, err := conn.Write(raw); err != nil {
		t.Fatal(err)
	}
	msg := readReply(t, conn)
	if msg.Text() != "error: unsupported message type" {
		t.Errorf("unexpected reply: %q", msg.Text())
	}

	// SensorData от зрителя тоже не поддерживается
	msg = roundTrip(t, conn, wire.NewSensorData(nil))
	if msg.Text() != "error: unsupported message type" {
		t.Errorf("unexpected reply: %q", msg.Text())
	}

	// Соединение остаётся рабочим
	msg = roundTrip(t, conn, wire.NewSensorList())
	if msg.Type != wire.TypeSensorData {
		t.Errorf("expected SensorData, got %s", msg.Type)
	}
	if srv.Viewers() != 1 {
		t.Errorf("viewer should stay connected, got %d", srv.Viewers())
	}
}

func TestBroadcast_KeepsLatest(t *testing.T) {
	ln, err := Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	srv, err := NewServer(Config{Listener: ln, Logger: telemetry.Discard()})
	if err != nil {
		t.Fatal(err)
	}

	// Без цикла событий Broadcast не блокируется
	srv.Broadcast(wire.NewStatus("first"))
	srv.Broadcast(wire.NewStatus("second"))
	srv.Broadcast(wire.NewStatus("third"))

	select {
	case msg := <-srv.mailbox:
		if msg.Text() != "third" {
			t.Errorf("expected latest message, got %q", msg.Text())
		}
	default:
		t.Fatal("mailbox is empty")
	}
}

func TestListen_RemovesStaleSocket(t *testing.T) {
	// Короткий путь: ограничение длины пути unix-сокета
	dir, err := os.MkdirTemp("", "shv")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "v.sock")
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatal(err)
	}

	ln, err := Listen("unix", path)
	if err != nil {
		t.Fatalf("listen over stale socket: %v", err)
	}
	defer ln.Close()

	conn, err := net.Dial("unix", path)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	conn.Close()
}

func TestParseAddress(t *testing.T) {
	tests := []struct {
		in      string
		want    uint8
		wantErr bool
	}{
		{"0x40", 0x40, false},
		{"64", 64, false},
		{"0X4f", 0x4F, false},
		{"256", 0, true},
		{"-1", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAddress(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got 0x%02X, want 0x%02X", got, tt.want)
			}
		})
	}
}

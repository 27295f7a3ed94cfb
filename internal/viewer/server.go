package viewer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/sensorhub/internal/domain"
	"github.com/shaiso/sensorhub/internal/store"
	"github.com/shaiso/sensorhub/internal/telemetry"
	"github.com/shaiso/sensorhub/internal/wire"
)

// Default configuration values.
const (
	defaultCapacity     = 10
	defaultWaitInterval = 100 * time.Millisecond
	catalogTimeout      = 2 * time.Second
)

// Server — мультиплексор соединений зрителей.
//
// Таблицей слотов владеет одна горутина (Run). Остальные горутины
// общаются с ней только через каналы:
//   - accept-горутина передаёт новые соединения
//   - горутина чтения каждого соединения передаёт запросы и обрывы
//   - Broadcast кладёт конверт в почтовый ящик глубины 1
type Server struct {
	listener     net.Listener
	capacity     int
	waitInterval time.Duration
	sendTimeout  time.Duration
	store        *store.Store
	roster       *domain.Roster
	catalog      Catalog

	// Каналы цикла событий
	accepted chan net.Conn
	hangups  chan hangup
	requests chan request
	mailbox  chan wire.Message
	done     chan struct{}

	// Таблица слотов (только горутина Run)
	slots []*slot

	viewers   atomic.Int64
	running   atomic.Bool
	startedAt time.Time

	wg     sync.WaitGroup
	logger *slog.Logger
}

// Config — конфигурация Server.
type Config struct {
	Listener     net.Listener
	Capacity     int           // максимум зрителей (default: 10)
	WaitInterval time.Duration // период ожидания цикла событий (default: 100ms)
	SendTimeout  time.Duration // бюджет записи одной рассылки (default и максимум: WaitInterval)

	// Store — источник ответа на SensorList. Без него ответ пустой.
	Store *store.Store

	// Roster — цель Control-команд. Без него команды отклоняются.
	Roster *domain.Roster

	// Catalog сохраняет переименования. Без него имя живёт до рестарта.
	Catalog Catalog

	Logger *slog.Logger
}

// NewServer создаёт новый Server.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Listener == nil {
		return nil, errors.New("viewer: listener is required")
	}

	capacity := cfg.Capacity
	if capacity <= 0 {
		capacity = defaultCapacity
	}

	waitInterval := cfg.WaitInterval
	if waitInterval <= 0 {
		waitInterval = defaultWaitInterval
	}

	// Рассылка целиком укладывается в один период ожидания
	sendTimeout := cfg.SendTimeout
	if sendTimeout <= 0 || sendTimeout > waitInterval {
		sendTimeout = waitInterval
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		listener:     cfg.Listener,
		capacity:     capacity,
		waitInterval: waitInterval,
		sendTimeout:  sendTimeout,
		store:        cfg.Store,
		roster:       cfg.Roster,
		catalog:      cfg.Catalog,
		accepted:     make(chan net.Conn),
		hangups:      make(chan hangup),
		requests:     make(chan request),
		mailbox:      make(chan wire.Message, 1),
		done:         make(chan struct{}),
		slots:        make([]*slot, capacity),
		logger:       telemetry.WithComponent(logger, "viewer"),
	}, nil
}

// Listen открывает точку подключения зрителей.
// Для unix-сокета предварительно удаляет оставшийся файл сокета.
func Listen(network, address string) (net.Listener, error) {
	if network == "unix" {
		if err := os.Remove(address); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("remove stale socket %s: %w", address, err)
		}
	}

	ln, err := net.Listen(network, address)
	if err != nil {
		return nil, fmt.Errorf("listen %s:%s: %w", network, address, err)
	}
	return ln, nil
}

// Addr возвращает адрес точки подключения.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Viewers возвращает текущее число подключённых зрителей.
func (s *Server) Viewers() int {
	return int(s.viewers.Load())
}

// Broadcast ставит конверт в очередь рассылки и сразу возвращается.
//
// Ящик хранит только последний конверт: ещё не разосланный старый
// заменяется новым.
func (s *Server) Broadcast(msg wire.Message) {
	for {
		select {
		case s.mailbox <- msg:
			return
		default:
		}

		select {
		case <-s.mailbox:
			telemetry.BroadcastsCoalesced.Inc()
		default:
		}
	}
}

// Run выполняет цикл событий до отмены ctx.
//
// При остановке закрывает точку подключения и все слоты и возвращает nil.
// Повторный вызов возвращает ErrServerClosed.
func (s *Server) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrServerClosed
	}
	s.startedAt = time.Now()

	s.logger.Info("viewer server started",
		"addr", s.listener.Addr().String(),
		"capacity", s.capacity,
	)

	s.wg.Add(1)
	go s.acceptLoop()

	ticker := time.NewTicker(s.waitInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			return nil

		case conn := <-s.accepted:
			s.admit(conn)

		case h := <-s.hangups:
			if sl := s.lookup(h.index, h.id); sl != nil {
				sl.state = SlotDisconnected
				sl.logger.Debug("viewer hung up", "error", h.err)
				s.release(sl)
			}

		case req := <-s.requests:
			if sl := s.lookup(req.index, req.id); sl != nil {
				s.handle(sl, req)
			}

		case msg := <-s.mailbox:
			s.broadcast(msg)

		case <-ticker.C:
			telemetry.ViewersConnected.Set(float64(s.viewers.Load()))
		}
	}
}

// acceptLoop принимает соединения и передаёт их циклу событий.
func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Warn("accept failed", "error", err)
			select {
			case <-s.done:
				return
			case <-time.After(s.waitInterval):
			}
			continue
		}

		select {
		case s.accepted <- conn:
		case <-s.done:
			conn.Close()
			return
		}
	}
}

// admit занимает наименьший свободный слот или отклоняет соединение.
func (s *Server) admit(conn net.Conn) {
	index := -1
	for i, sl := range s.slots {
		if sl == nil {
			index = i
			break
		}
	}

	if index < 0 {
		conn.Close()
		telemetry.ViewersRejected.Inc()
		s.logger.Warn("viewer rejected: at capacity", "capacity", s.capacity)
		return
	}

	id := uuid.New()
	sl := &slot{
		id:          id,
		index:       index,
		conn:        conn,
		state:       SlotConnected,
		connectedAt: time.Now(),
		logger:      telemetry.WithViewer(s.logger, id.String(), index),
	}
	s.slots[index] = sl

	n := s.viewers.Add(1)
	telemetry.ViewersAccepted.Inc()
	telemetry.ViewersConnected.Set(float64(n))
	sl.logger.Info("viewer connected", "viewers", n)

	s.wg.Add(1)
	go s.readLoop(index, id, conn)
}

// readLoop читает конверты зрителя до обрыва соединения.
func (s *Server) readLoop(index int, id uuid.UUID, conn net.Conn) {
	defer s.wg.Done()

	for {
		msg, err := wire.ReadMessage(conn)
		if err != nil {
			// Конверт прочитан целиком, но не распознан: поток не сбит
			if errors.Is(err, wire.ErrUnknownType) || errors.Is(err, wire.ErrPayloadTooLarge) {
				if !s.post(request{index: index, id: id, unsupported: true}) {
					return
				}
				continue
			}

			select {
			case s.hangups <- hangup{index: index, id: id, err: err}:
			case <-s.done:
			}
			return
		}

		if !s.post(request{index: index, id: id, msg: msg}) {
			return
		}
	}
}

func (s *Server) post(req request) bool {
	select {
	case s.requests <- req:
		return true
	case <-s.done:
		return false
	}
}

// lookup возвращает слот, если он всё ещё занят тем же соединением.
func (s *Server) lookup(index int, id uuid.UUID) *slot {
	if index < 0 || index >= len(s.slots) {
		return nil
	}
	sl := s.slots[index]
	if sl == nil || sl.id != id {
		return nil
	}
	return sl
}

// broadcast пишет конверт во все занятые слоты.
// Порядок обхода слотов не гарантируется вызывающим.
// Все записи одной рассылки укладываются в общий дедлайн sendTimeout.
func (s *Server) broadcast(msg wire.Message) {
	deadline := time.Now().Add(s.sendTimeout)
	for _, sl := range s.slots {
		if sl == nil {
			continue
		}
		if err := s.send(sl, msg, deadline); err != nil {
			continue
		}
		telemetry.BroadcastSends.Inc()
	}
}

// send пишет один конверт с дедлайном.
// Ошибка записи освобождает слот без повторов.
func (s *Server) send(sl *slot, msg wire.Message, deadline time.Time) error {
	if err := sl.conn.SetWriteDeadline(deadline); err != nil {
		sl.state = SlotSendFailed
		s.release(sl)
		return err
	}

	if err := wire.WriteMessage(sl.conn, msg); err != nil {
		sl.state = SlotSendFailed
		sl.logger.Warn("send to viewer failed", "error", err)
		s.release(sl)
		return err
	}
	return nil
}

// release закрывает соединение и освобождает слот.
func (s *Server) release(sl *slot) {
	sl.conn.Close()
	s.slots[sl.index] = nil

	reason := "disconnected"
	if sl.state == SlotSendFailed {
		reason = "send_failed"
	}
	telemetry.ViewersDropped.WithLabelValues(reason).Inc()

	n := s.viewers.Add(-1)
	telemetry.ViewersConnected.Set(float64(n))
	sl.logger.Info("viewer slot released",
		"reason", reason,
		"connected_for", time.Since(sl.connectedAt).Round(time.Millisecond),
		"viewers", n,
	)
	sl.state = SlotEmpty
}

// shutdown закрывает точку подключения и все слоты.
func (s *Server) shutdown() {
	close(s.done)
	s.listener.Close()

	for _, sl := range s.slots {
		if sl == nil {
			continue
		}
		sl.conn.Close()
		s.slots[sl.index] = nil
		s.viewers.Add(-1)
	}
	telemetry.ViewersConnected.Set(0)

	s.wg.Wait()
	s.logger.Info("viewer server stopped")
}

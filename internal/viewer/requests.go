package viewer

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shaiso/sensorhub/internal/domain"
	"github.com/shaiso/sensorhub/internal/wire"
)

// Catalog — постоянный каталог датчиков.
type Catalog interface {
	Upsert(ctx context.Context, s domain.Sensor) error
}

// handle отвечает на входящее сообщение зрителя.
//
//   - SensorList → SensorData с текущим снапшотом
//   - Control    → Status "ok" или "error: ..."
//   - Status     → Status с аптаймом и числом зрителей
func (s *Server) handle(sl *slot, req request) {
	if req.unsupported {
		s.reply(sl, wire.NewStatus("error: unsupported message type"))
		return
	}

	var reply wire.Message
	switch req.msg.Type {
	case wire.TypeSensorList:
		reply = s.sensorList()

	case wire.TypeControl:
		command := req.msg.Text()
		if err := s.control(command); err != nil {
			sl.logger.Warn("control command rejected", "command", command, "error", err)
			reply = wire.NewStatus("error: " + err.Error())
		} else {
			sl.logger.Info("control command applied", "command", command)
			reply = wire.NewStatus("ok")
		}

	case wire.TypeStatus:
		reply = wire.NewStatus(s.status())

	default:
		reply = wire.NewStatus("error: unsupported message type")
	}

	s.reply(sl, reply)
}

// reply отправляет ответ одному зрителю.
func (s *Server) reply(sl *slot, msg wire.Message) {
	s.send(sl, msg, time.Now().Add(s.sendTimeout))
}

// sensorList строит SensorData из текущего снапшота.
// До первого тика ответ содержит ноль записей.
func (s *Server) sensorList() wire.Message {
	if s.store == nil {
		return wire.NewSensorData(nil)
	}

	snap, ok := s.store.Read()
	if !ok {
		return wire.NewSensorData(nil)
	}

	var names map[uint8]string
	if s.roster != nil {
		names = s.roster.Names()
	}
	return wire.NewSensorData(wire.RecordsFromSnapshot(snap, names))
}

// Ошибки Control-команд.
var (
	errNoRoster       = errors.New("control commands disabled")
	errUnknownCommand = errors.New("unknown command")
	errUsage          = errors.New("usage: enable|disable <addr> | rename <addr> <name>")
)

// control применяет команду к ростеру.
//
//	enable <addr>
//	disable <addr>
//	rename <addr> <name>
//
// Адрес принимается в десятичном или шестнадцатеричном (0x40) виде.
func (s *Server) control(command string) error {
	if s.roster == nil {
		return errNoRoster
	}

	fields := strings.Fields(command)
	if len(fields) < 2 {
		return errUsage
	}

	addr, err := ParseAddress(fields[1])
	if err != nil {
		return err
	}

	verb := strings.ToLower(fields[0])
	switch verb {
	case "enable", "disable":
		if len(fields) != 2 {
			return errUsage
		}
		return s.roster.SetActive(addr, verb == "enable")

	case "rename":
		if len(fields) < 3 {
			return errUsage
		}
		name := strings.Join(fields[2:], " ")
		if err := s.roster.SetName(addr, name); err != nil {
			return err
		}
		s.persist(addr)
		return nil

	default:
		return fmt.Errorf("%w: %s", errUnknownCommand, fields[0])
	}
}

// persist сохраняет имя датчика в каталоге, не блокируя цикл событий.
// Ошибка только логируется: имя в ростере уже изменено.
func (s *Server) persist(addr uint8) {
	if s.catalog == nil {
		return
	}
	sensor, err := s.roster.Get(addr)
	if err != nil {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), catalogTimeout)
		defer cancel()

		if err := s.catalog.Upsert(ctx, sensor); err != nil {
			s.logger.Warn("rename not persisted", "addr", fmt.Sprintf("0x%02X", addr), "error", err)
		}
	}()
}

// status строит строку состояния сервера.
func (s *Server) status() string {
	var tick uint64
	if s.store != nil {
		if snap, ok := s.store.Read(); ok {
			tick = snap.Tick
		}
	}

	return fmt.Sprintf("running uptime=%s viewers=%d capacity=%d tick=%d",
		time.Since(s.startedAt).Round(time.Second),
		s.viewers.Load(),
		s.capacity,
		tick,
	)
}

// ParseAddress разбирает адрес датчика: "64", "0x40".
func ParseAddress(v string) (uint8, error) {
	n, err := strconv.ParseUint(v, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid sensor address %q", v)
	}
	return uint8(n), nil
}

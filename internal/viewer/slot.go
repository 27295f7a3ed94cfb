package viewer

import (
	"log/slog"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/sensorhub/internal/wire"
)

// SlotState — состояние слота зрителя.
//
//	Empty → Connected → (Disconnected | SendFailed) → Empty
type SlotState string

const (
	SlotEmpty        SlotState = "EMPTY"
	SlotConnected    SlotState = "CONNECTED"
	SlotDisconnected SlotState = "DISCONNECTED"
	SlotSendFailed   SlotState = "SEND_FAILED"
)

// slot — занятая ячейка таблицы зрителей.
// Принадлежит горутине цикла событий Server.Run.
type slot struct {
	id          uuid.UUID
	index       int
	conn        net.Conn
	state       SlotState
	connectedAt time.Time
	logger      *slog.Logger
}

// hangup — событие от горутины чтения: соединение закрыто или сломано.
type hangup struct {
	index int
	id    uuid.UUID
	err   error
}

// request — входящее сообщение зрителя.
type request struct {
	index int
	id    uuid.UUID
	msg   wire.Message

	// unsupported — конверт прочитан целиком, но тип не распознан.
	unsupported bool
}

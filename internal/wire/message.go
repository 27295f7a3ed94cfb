package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// Размеры конверта.
const (
	// EnvelopeSize — полный размер конверта на проводе, не зависит от Size.
	EnvelopeSize = 1024

	// HeaderSize — type (4 байта) + size (4 байта).
	HeaderSize = 8

	// PayloadCapacity — ёмкость буфера payload.
	PayloadCapacity = EnvelopeSize - HeaderSize
)

// MessageType — тип сообщения.
type MessageType uint32

// Типы сообщений.
const (
	TypeSensorData MessageType = 1
	TypeSensorList MessageType = 2
	TypeControl    MessageType = 3
	TypeStatus     MessageType = 4
)

// String возвращает имя типа для логов.
func (t MessageType) String() string {
	switch t {
	case TypeSensorData:
		return "sensor_data"
	case TypeSensorList:
		return "sensor_list"
	case TypeControl:
		return "control"
	case TypeStatus:
		return "status"
	default:
		return fmt.Sprintf("unknown(%d)", uint32(t))
	}
}

// Valid проверяет, что тип известен.
func (t MessageType) Valid() bool {
	return t >= TypeSensorData && t <= TypeStatus
}

// Message — конверт фиксированного размера.
//
// Инвариант: Size <= PayloadCapacity. Байты payload после Size не
// определены и получателем не интерпретируются.
type Message struct {
	Type    MessageType
	Size    uint32
	Payload [PayloadCapacity]byte
}

// Bytes возвращает используемую часть payload.
func (m Message) Bytes() []byte {
	n := m.Size
	if n > PayloadCapacity {
		n = PayloadCapacity
	}
	return m.Payload[:n]
}

// MarshalBinary кодирует конверт ровно в EnvelopeSize байт (little endian).
func (m Message) MarshalBinary() ([]byte, error) {
	if m.Size > PayloadCapacity {
		return nil, fmt.Errorf("%w: size %d", ErrPayloadTooLarge, m.Size)
	}

	buf := make([]byte, EnvelopeSize)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(m.Type))
	binary.LittleEndian.PutUint32(buf[4:8], m.Size)
	copy(buf[HeaderSize:], m.Payload[:])
	return buf, nil
}

// Unmarshal декодирует конверт из ровно EnvelopeSize байт.
func Unmarshal(data []byte) (Message, error) {
	var m Message

	if len(data) != EnvelopeSize {
		return m, fmt.Errorf("%w: got %d bytes", ErrShortEnvelope, len(data))
	}

	m.Type = MessageType(binary.LittleEndian.Uint32(data[0:4]))
	m.Size = binary.LittleEndian.Uint32(data[4:8])

	if !m.Type.Valid() {
		return m, fmt.Errorf("%w: %d", ErrUnknownType, uint32(m.Type))
	}
	if m.Size > PayloadCapacity {
		return m, fmt.Errorf("%w: size %d", ErrPayloadTooLarge, m.Size)
	}

	copy(m.Payload[:], data[HeaderSize:])
	return m, nil
}

// ReadMessage читает один полный конверт из r.
func ReadMessage(r io.Reader) (Message, error) {
	buf := make([]byte, EnvelopeSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Message{}, err
	}
	return Unmarshal(buf)
}

// WriteMessage пишет конверт в w целиком.
func WriteMessage(w io.Writer, m Message) error {
	buf, err := m.MarshalBinary()
	if err != nil {
		return err
	}
	_, err = w.Write(buf)
	return err
}

// NewStatus создаёт Status-сообщение с NUL-терминированной строкой.
// Слишком длинная строка молча обрезается до PayloadCapacity-1 байт.
func NewStatus(text string) Message {
	return newText(TypeStatus, text)
}

// NewControl создаёт Control-сообщение с командой.
func NewControl(command string) Message {
	return newText(TypeControl, command)
}

// NewSensorList создаёт запрос текущего снапшота.
func NewSensorList() Message {
	return Message{Type: TypeSensorList}
}

func newText(t MessageType, text string) Message {
	m := Message{Type: t}
	n := copy(m.Payload[:PayloadCapacity-1], text)
	m.Payload[n] = 0
	m.Size = uint32(n + 1)
	return m
}

// Text возвращает строку из Status/Control payload без завершающего NUL.
func (m Message) Text() string {
	b := m.Bytes()
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

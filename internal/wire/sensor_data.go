package wire

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/shaiso/sensorhub/internal/domain"
)

// Раскладка записи датчика в payload SensorData:
//
//	0      address (u8)
//	1..3   zero
//	4..7   temperature (float32)
//	8..11  humidity (float32)
//	12     active (u8)
//	13..44 name, NUL-padded
//	45..47 zero
const (
	RecordSize = 48

	nameOffset = 13
	nameField  = 32

	// MaxRecords — сколько записей помещается в один конверт.
	MaxRecords = PayloadCapacity / RecordSize
)

// SensorRecord — запись датчика в SensorData.
type SensorRecord struct {
	Address     uint8   `json:"address"`
	Name        string  `json:"name"`
	Active      bool    `json:"active"`
	Temperature float32 `json:"temperature"`
	Humidity    float32 `json:"humidity"`
}

// NewSensorData упаковывает записи в SensorData-конверт.
//
// Записи, не поместившиеся в PayloadCapacity, молча отбрасываются:
// конверт всегда фиксированного размера, а получатель декодирует
// ровно тот префикс, который поместился.
func NewSensorData(records []SensorRecord) Message {
	m := Message{Type: TypeSensorData}

	n := len(records)
	if n > MaxRecords {
		n = MaxRecords
	}

	for i := 0; i < n; i++ {
		putRecord(m.Payload[i*RecordSize:(i+1)*RecordSize], records[i])
	}
	m.Size = uint32(n * RecordSize)
	return m
}

// SensorRecords декодирует записи из SensorData-конверта.
// Хвост payload короче RecordSize игнорируется.
func (m Message) SensorRecords() ([]SensorRecord, error) {
	if m.Type != TypeSensorData {
		return nil, ErrWrongType
	}

	b := m.Bytes()
	n := len(b) / RecordSize
	out := make([]SensorRecord, n)
	for i := range out {
		out[i] = getRecord(b[i*RecordSize : (i+1)*RecordSize])
	}
	return out, nil
}

// RecordsFromSnapshot строит записи из снапшота и имён ростера.
func RecordsFromSnapshot(snap domain.Snapshot, names map[uint8]string) []SensorRecord {
	out := make([]SensorRecord, len(snap.Readings))
	for i, r := range snap.Readings {
		name, ok := names[r.SensorAddress]
		if !ok {
			name = domain.DefaultName(r.SensorAddress)
		}
		out[i] = SensorRecord{
			Address:     r.SensorAddress,
			Name:        name,
			Active:      !r.Stale,
			Temperature: r.Temperature,
			Humidity:    r.Humidity,
		}
	}
	return out
}

func putRecord(dst []byte, r SensorRecord) {
	dst[0] = r.Address
	binary.LittleEndian.PutUint32(dst[4:8], math.Float32bits(r.Temperature))
	binary.LittleEndian.PutUint32(dst[8:12], math.Float32bits(r.Humidity))
	if r.Active {
		dst[12] = 1
	}
	// Последний байт поля имени всегда NUL
	copy(dst[nameOffset:nameOffset+nameField-1], r.Name)
}

func getRecord(src []byte) SensorRecord {
	name := src[nameOffset : nameOffset+nameField]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	return SensorRecord{
		Address:     src[0],
		Temperature: math.Float32frombits(binary.LittleEndian.Uint32(src[4:8])),
		Humidity:    math.Float32frombits(binary.LittleEndian.Uint32(src[8:12])),
		Active:      src[12] != 0,
		Name:        string(name),
	}
}

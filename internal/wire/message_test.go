package wire

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/shaiso/sensorhub/internal/domain"
)

func testRecords(n int) []SensorRecord {
	out := make([]SensorRecord, n)
	for i := range out {
		out[i] = SensorRecord{
			Address:     0x40 + uint8(i),
			Name:        fmt.Sprintf("Sensor_%02X", 0x40+i),
			Active:      i%2 == 0,
			Temperature: 20.125 + float32(i),
			Humidity:    41.5 - float32(i)/3,
		}
	}
	return out
}

// --- Envelope Tests ---

func TestMessage_MarshalSize(t *testing.T) {
	for _, msg := range []Message{
		NewStatus("ok"),
		NewSensorData(testRecords(1)),
		NewSensorList(),
		NewControl("disable 0x41"),
	} {
		buf, err := msg.MarshalBinary()
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", msg.Type, err)
		}
		if len(buf) != EnvelopeSize {
			t.Errorf("%s: expected %d bytes, got %d", msg.Type, EnvelopeSize, len(buf))
		}
	}
}

func TestUnmarshal_Errors(t *testing.T) {
	if _, err := Unmarshal(make([]byte, 10)); !errors.Is(err, ErrShortEnvelope) {
		t.Errorf("expected ErrShortEnvelope, got %v", err)
	}

	buf, _ := NewStatus("x").MarshalBinary()
	buf[0] = 9
	if _, err := Unmarshal(buf); !errors.Is(err, ErrUnknownType) {
		t.Errorf("expected ErrUnknownType, got %v", err)
	}

	buf, _ = NewStatus("x").MarshalBinary()
	buf[4], buf[5] = 0xFF, 0xFF
	if _, err := Unmarshal(buf); !errors.Is(err, ErrPayloadTooLarge) {
		t.Errorf("expected ErrPayloadTooLarge, got %v", err)
	}

	bad := Message{Type: TypeStatus, Size: PayloadCapacity + 1}
	if _, err := bad.MarshalBinary(); !errors.Is(err, ErrPayloadTooLarge) {
		t.Errorf("expected ErrPayloadTooLarge, got %v", err)
	}
}

func TestReadWriteMessage_Stream(t *testing.T) {
	var buf bytes.Buffer

	if err := WriteMessage(&buf, NewStatus("first")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := WriteMessage(&buf, NewSensorData(testRecords(3))); err != nil {
		t.Fatalf("write: %v", err)
	}
	if buf.Len() != 2*EnvelopeSize {
		t.Fatalf("expected %d bytes in stream, got %d", 2*EnvelopeSize, buf.Len())
	}

	first, err := ReadMessage(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if first.Type != TypeStatus || first.Text() != "first" {
		t.Errorf("unexpected first message: %s %q", first.Type, first.Text())
	}

	second, err := ReadMessage(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	records, err := second.SensorRecords()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(records) != 3 {
		t.Errorf("expected 3 records, got %d", len(records))
	}
}

// --- SensorData Tests ---

func TestSensorData_RoundTrip(t *testing.T) {
	for _, k := range []int{0, 1, 3, MaxRecords} {
		t.Run(fmt.Sprintf("k=%d", k), func(t *testing.T) {
			in := testRecords(k)

			buf, err := NewSensorData(in).MarshalBinary()
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			msg, err := Unmarshal(buf)
			if err != nil {
				t.Fatalf("unmarshal: %v", err)
			}

			out, err := msg.SensorRecords()
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if len(out) != k {
				t.Fatalf("expected %d records, got %d", k, len(out))
			}
			for i := range in {
				assertRecordIdentical(t, in[i], out[i])
			}
		})
	}
}

func TestSensorData_Truncation(t *testing.T) {
	in := testRecords(MaxRecords + 4)

	msg := NewSensorData(in)
	if msg.Size != MaxRecords*RecordSize {
		t.Errorf("expected size %d, got %d", MaxRecords*RecordSize, msg.Size)
	}
	if msg.Size > PayloadCapacity {
		t.Fatalf("size %d exceeds capacity", msg.Size)
	}

	out, err := msg.SensorRecords()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != MaxRecords {
		t.Fatalf("expected truncated prefix of %d, got %d", MaxRecords, len(out))
	}
	for i := range out {
		assertRecordIdentical(t, in[i], out[i])
	}
}

func TestSensorData_SpecialFloats(t *testing.T) {
	in := []SensorRecord{
		{Address: 0x40, Name: "nan", Temperature: float32(math.NaN()), Humidity: float32(math.Inf(1))},
		{Address: 0x41, Name: "negzero", Temperature: float32(math.Copysign(0, -1))},
	}

	out, _ := NewSensorData(in).SensorRecords()
	for i := range in {
		assertRecordIdentical(t, in[i], out[i])
	}
}

func TestSensorData_LongNameTruncated(t *testing.T) {
	long := strings.Repeat("n", 40)
	out, _ := NewSensorData([]SensorRecord{{Address: 0x40, Name: long}}).SensorRecords()

	if out[0].Name != long[:nameField-1] {
		t.Errorf("expected name truncated to %d bytes, got %q", nameField-1, out[0].Name)
	}
}

func TestSensorRecords_WrongType(t *testing.T) {
	if _, err := NewStatus("ok").SensorRecords(); !errors.Is(err, ErrWrongType) {
		t.Errorf("expected ErrWrongType, got %v", err)
	}
}

func TestRecordsFromSnapshot(t *testing.T) {
	snap := domain.Snapshot{
		Tick:      7,
		Timestamp: time.Now(),
		Readings: []domain.Reading{
			{SensorAddress: 0x40, Temperature: 21, Humidity: 50},
			{SensorAddress: 0x41, Temperature: 22, Humidity: 51, Stale: true},
		},
	}

	records := RecordsFromSnapshot(snap, map[uint8]string{0x40: "Kitchen"})
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Name != "Kitchen" || !records[0].Active {
		t.Errorf("unexpected first record: %+v", records[0])
	}
	if records[1].Name != "Sensor_41" {
		t.Errorf("expected default name, got %q", records[1].Name)
	}
	if records[1].Active {
		t.Error("stale reading should be encoded as inactive")
	}
}

// --- Status Tests ---

func TestStatus_Text(t *testing.T) {
	msg := NewStatus("system running")
	if msg.Size != uint32(len("system running")+1) {
		t.Errorf("size should include NUL terminator, got %d", msg.Size)
	}
	if msg.Text() != "system running" {
		t.Errorf("unexpected text %q", msg.Text())
	}
}

func TestStatus_Truncation(t *testing.T) {
	long := strings.Repeat("s", PayloadCapacity+100)
	msg := NewStatus(long)

	if msg.Size != PayloadCapacity {
		t.Errorf("expected size %d, got %d", PayloadCapacity, msg.Size)
	}
	if got := msg.Text(); len(got) != PayloadCapacity-1 {
		t.Errorf("expected %d bytes of text, got %d", PayloadCapacity-1, len(got))
	}
	if msg.Payload[PayloadCapacity-1] != 0 {
		t.Error("payload should stay NUL-terminated")
	}
}

func assertRecordIdentical(t *testing.T, want, got SensorRecord) {
	t.Helper()

	if want.Address != got.Address || want.Name != got.Name || want.Active != got.Active {
		t.Errorf("record mismatch: want %+v, got %+v", want, got)
	}
	if math.Float32bits(want.Temperature) != math.Float32bits(got.Temperature) {
		t.Errorf("temperature bits differ: want %x, got %x",
			math.Float32bits(want.Temperature), math.Float32bits(got.Temperature))
	}
	if math.Float32bits(want.Humidity) != math.Float32bits(got.Humidity) {
		t.Errorf("humidity bits differ: want %x, got %x",
			math.Float32bits(want.Humidity), math.Float32bits(got.Humidity))
	}
}

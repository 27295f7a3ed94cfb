package store

import (
	"sync"
	"testing"
	"time"

	"github.com/shaiso/sensorhub/internal/domain"
)

func makeSnapshot(tick uint64, n int) domain.Snapshot {
	ts := time.Unix(1700000000+int64(tick), 0)
	readings := make([]domain.Reading, n)
	for i := range readings {
		readings[i] = domain.Reading{
			SensorAddress: domain.AddressBase + uint8(i),
			Temperature:   float32(tick),
			Humidity:      float32(tick),
			Timestamp:     ts,
		}
	}
	return domain.Snapshot{Tick: tick, Timestamp: ts, Readings: readings}
}

func TestStore_ReadBeforeWrite(t *testing.T) {
	s := New()

	snap, ok := s.Read()
	if ok {
		t.Error("Read should report no snapshot before first Write")
	}
	if !snap.IsZero() {
		t.Errorf("expected zero snapshot, got %+v", snap)
	}
}

func TestStore_WriteRead(t *testing.T) {
	s := New()
	s.Write(makeSnapshot(1, 3))

	snap, ok := s.Read()
	if !ok {
		t.Fatal("expected snapshot after Write")
	}
	if snap.Tick != 1 || len(snap.Readings) != 3 {
		t.Errorf("unexpected snapshot: tick=%d readings=%d", snap.Tick, len(snap.Readings))
	}
	if s.UpdatedAt().IsZero() {
		t.Error("UpdatedAt should be set")
	}
}

func TestStore_WriteCopiesInput(t *testing.T) {
	s := New()
	snap := makeSnapshot(1, 2)
	s.Write(snap)

	// Писатель переиспользует свой слайс
	snap.Readings[0].Temperature = 999

	got, _ := s.Read()
	if got.Readings[0].Temperature == 999 {
		t.Error("Write should store a copy")
	}
}

func TestStore_ReadReturnsCopy(t *testing.T) {
	s := New()
	s.Write(makeSnapshot(1, 2))

	first, _ := s.Read()
	first.Readings[0].Temperature = 999

	second, _ := s.Read()
	if second.Readings[0].Temperature == 999 {
		t.Error("Read should return a copy")
	}
}

func TestStore_ConcurrentReadersSeeCompleteSnapshots(t *testing.T) {
	s := New()
	s.Write(makeSnapshot(1, 2))

	const ticks = 500
	stop := make(chan struct{})

	var wg sync.WaitGroup
	errs := make(chan string, 16)

	for r := 0; r < 8; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}

				snap, _ := s.Read()
				// Размер снапшота и значения должны соответствовать одному тику
				want := int(snap.Tick%4) + 1
				if len(snap.Readings) != want {
					select {
					case errs <- "reading count does not match tick":
					default:
					}
					return
				}
				for _, rd := range snap.Readings {
					if rd.Temperature != float32(snap.Tick) {
						select {
						case errs <- "reading from another tick":
						default:
						}
						return
					}
				}
			}
		}()
	}

	for tick := uint64(1); tick <= ticks; tick++ {
		s.Write(makeSnapshot(tick, int(tick%4)+1))
	}
	close(stop)
	wg.Wait()
	close(errs)

	for msg := range errs {
		t.Error(msg)
	}
}

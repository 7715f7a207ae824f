package energy

import (
	"errors"
	"testing"
)

type fakeReader struct {
	values map[uint64][]uint64 // msr -> sequence of returned values
	idx    map[uint64]int
	err    error
}

func newFakeReader(calibration uint64) *fakeReader {
	return &fakeReader{
		values: map[uint64][]uint64{MSRRaplPowerUnit: {calibration}},
		idx:    map[uint64]int{},
	}
}

func (f *fakeReader) push(msr uint64, v uint64) {
	f.values[msr] = append(f.values[msr], v)
}

func (f *fakeReader) ReadMSR(msr uint64) (uint64, error) {
	if f.err != nil {
		return 0, f.err
	}
	seq := f.values[msr]
	i := f.idx[msr]
	if i >= len(seq) {
		i = len(seq) - 1
	}
	f.idx[msr] = i + 1
	return seq[i], nil
}

func (f *fakeReader) Close() error { return nil }

func TestDecodeUnits(t *testing.T) {
	// time_unit exp=10 (>>16 &0xF), energy_unit exp=16 (>>8 &0x1F), power_unit exp=3 (&0xF)
	raw := uint64(10)<<16 | uint64(16)<<8 | uint64(3)
	units := DecodeUnits(raw)

	if got, want := units.TimeUnit, pow2(-10); got != want {
		t.Errorf("TimeUnit = %v, want %v", got, want)
	}
	if got, want := units.EnergyUnit, pow2(-16); got != want {
		t.Errorf("EnergyUnit = %v, want %v", got, want)
	}
	if got, want := units.PowerUnit, pow2(-3); got != want {
		t.Errorf("PowerUnit = %v, want %v", got, want)
	}
}

func TestSampleWhFirstCallIsZero(t *testing.T) {
	reader := newFakeReader(1<<8 | 0) // energy_unit exponent 1 -> 0.5 J/unit
	reader.push(uint64(TargetPackage), 1000)

	s, err := Open(reader, TargetPackage)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	wh, err := s.SampleWh()
	if err != nil {
		t.Fatalf("SampleWh() error = %v", err)
	}
	if wh != 0 {
		t.Fatalf("first SampleWh() = %v, want 0", wh)
	}
}

func TestSampleWhTwoIdenticalReadsIsZeroDelta(t *testing.T) {
	reader := newFakeReader(1 << 8)
	reader.push(uint64(TargetPackage), 500)
	reader.push(uint64(TargetPackage), 500)

	s, err := Open(reader, TargetPackage)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if _, err := s.SampleWh(); err != nil {
		t.Fatal(err)
	}
	wh, err := s.SampleWh()
	if err != nil {
		t.Fatal(err)
	}
	if wh != 0 {
		t.Fatalf("SampleWh() with no counter movement = %v, want 0", wh)
	}
}

func TestSampleWhWrapSafeDelta(t *testing.T) {
	// energy_unit exponent 0 -> 1 J/unit, so Wh math is easy to check.
	reader := newFakeReader(0)
	reader.push(uint64(TargetPackage), counterMod-10)
	reader.push(uint64(TargetPackage), 5) // wrapped past 2^32 by 15 units

	s, err := Open(reader, TargetPackage)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if _, err := s.SampleWh(); err != nil {
		t.Fatal(err)
	}
	wh, err := s.SampleWh()
	if err != nil {
		t.Fatal(err)
	}

	wantJoules := 15.0
	wantWh := wantJoules / 3.6
	if wh != wantWh {
		t.Fatalf("SampleWh() across a wrap = %v, want %v", wh, wantWh)
	}
	if wh < 0 {
		t.Fatalf("energy delta across a single wrap must be non-negative, got %v", wh)
	}
}

func TestSampleWhReaderErrorReturnsNegativeOne(t *testing.T) {
	reader := newFakeReader(0)
	s, err := Open(reader, TargetPackage)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	reader.err = errors.New("ioctl failed")

	wh, err := s.SampleWh()
	if err == nil {
		t.Fatal("expected an error from a failing driver read")
	}
	if wh != -1 {
		t.Fatalf("SampleWh() on failure = %v, want -1", wh)
	}
}

func TestOpenFailsWhenCalibrationReadFails(t *testing.T) {
	reader := newFakeReader(0)
	reader.err = errors.New("driver not loaded")

	if _, err := Open(reader, TargetPackage); err == nil {
		t.Fatal("Open() should fail when the calibration read fails")
	}
}

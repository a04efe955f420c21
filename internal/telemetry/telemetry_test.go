package telemetry

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/san-kum/servoctl/internal/control"
	"github.com/san-kum/servoctl/internal/driver"
)

func sample(cycle int, at time.Duration, errVal float64, cmd control.Command) driver.Sample {
	s := driver.Sample{Cycle: cycle, Time: time.Unix(100, 0).Add(at)}
	s.Error = errVal
	s.SetPoint = 200
	s.Position = 200 - errVal
	s.Drive = errVal * 10
	s.Command = cmd
	return s
}

func TestRecorderLimit(t *testing.T) {
	r := NewRecorder(3)
	for i := 1; i <= 5; i++ {
		r.OnCycle(sample(i, time.Duration(i)*100*time.Millisecond, 1, control.Command{}))
	}
	recs := r.Records()
	if len(recs) != 3 {
		t.Fatalf("expected 3 records, got %d", len(recs))
	}
	if recs[0].Cycle != 3 || recs[2].Cycle != 5 {
		t.Errorf("expected cycles 3..5, got %d..%d", recs[0].Cycle, recs[2].Cycle)
	}
	if recs[0].Time < 0.199 || recs[0].Time > 0.201 {
		t.Errorf("expected time relative to first cycle, got %f", recs[0].Time)
	}
	r.Reset()
	if r.Len() != 0 {
		t.Errorf("expected empty recorder, got %d", r.Len())
	}
}

func TestRecordRowRoundTrip(t *testing.T) {
	s := sample(7, time.Second, -12.5, control.Command{Duty: 125, Direction: control.Reverse})
	s.StalePosition = true
	rec := FromSample(s, time.Unix(100, 0))

	got, err := ParseRow(rec.Row())
	if err != nil {
		t.Fatal(err)
	}
	if got != rec {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, rec)
	}
	if got.Duty != -125 || got.Direction() != control.Reverse || !got.Stale {
		t.Errorf("unexpected record %+v", got)
	}

	if _, err := ParseRow([]string{"1"}); err == nil {
		t.Error("expected error for short row")
	}
	bad := rec.Row()
	bad[1] = "soon"
	if _, err := ParseRow(bad); err == nil {
		t.Error("expected error for bad time")
	}
}

func TestStats(t *testing.T) {
	st := NewStats(2)
	if st.Summary().Cycles != 0 {
		t.Error("expected empty summary")
	}
	st.OnCycle(sample(1, 0, -4, control.Command{Duty: 40, Direction: control.Reverse}))
	st.OnCycle(sample(2, 0, 2, control.Command{Duty: 20, Direction: control.Forward}))
	failed := sample(3, 0, 6, control.Command{Duty: 60, Direction: control.Forward})
	failed.SensorErr = errors.New("nack")
	st.OnCycle(failed)

	sum := st.Summary()
	if sum.Cycles != 3 {
		t.Errorf("expected 3 cycles, got %d", sum.Cycles)
	}
	if sum.MeanAbsErr != 4 {
		t.Errorf("expected windowed mean |error| 4, got %f", sum.MeanAbsErr)
	}
	if sum.MeanDuty != 40 {
		t.Errorf("expected windowed mean duty 40, got %f", sum.MeanDuty)
	}
	if sum.DropoutRate != 0.5 {
		t.Errorf("expected dropout rate 0.5, got %f", sum.DropoutRate)
	}
	if sum.Last.Cycle != 3 {
		t.Errorf("expected last cycle 3, got %d", sum.Last.Cycle)
	}
}

func TestLineWriter(t *testing.T) {
	var buf bytes.Buffer
	lw := NewLineWriter(&buf)
	lw.OnCycle(sample(1, 0, 50, control.Command{Duty: 500, Direction: control.Forward}))

	want := "Pot = 200\nRotor = 150\nError = 500\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
	if lw.Err() != nil {
		t.Error(lw.Err())
	}
}

func TestOpenSerialMissingPort(t *testing.T) {
	name := "/dev/servoctl-no-such-port"
	_, err := OpenSerial(name, 115200)
	if err == nil {
		t.Fatal("expected an error for a missing port")
	}
	if !strings.Contains(err.Error(), "open serial port "+name) {
		t.Errorf("error %q does not name the port", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected the open error to be wrapped, got %v", err)
	}
}

package telemetry

import (
	"fmt"
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/tarm/serial"

	"github.com/san-kum/servoctl/internal/driver"
)

// LineWriter prints each cycle as the bench firmware does:
//
//	Pot = 2048
//	Rotor = 2047.5
//	Error = 5
//
// Error carries the PI drive, not the position error.
type LineWriter struct {
	w   io.Writer
	err error
}

func NewLineWriter(w io.Writer) *LineWriter {
	return &LineWriter{w: w}
}

func (l *LineWriter) OnCycle(s driver.Sample) {
	if l.err != nil {
		return
	}
	_, l.err = fmt.Fprintf(l.w, "Pot = %g\nRotor = %g\nError = %g\n", s.SetPoint, s.Position, s.Drive)
}

// Err is the first write error. Writes stop after it.
func (l *LineWriter) Err() error { return l.err }

// OpenSerial opens a serial port for the line output, e.g. a UART bridge
// to a bench display.
func OpenSerial(name string, baud int) (io.ReadWriteCloser, error) {
	port, err := serial.OpenPort(&serial.Config{
		Name:        name,
		Baud:        baud,
		ReadTimeout: 100 * time.Millisecond,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "open serial port %s", name)
	}
	return port, nil
}

// Package telemetry turns driver cycles into flat records, running
// statistics and the Pot/Rotor/Error console lines.
package telemetry

import (
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/san-kum/servoctl/internal/control"
	"github.com/san-kum/servoctl/internal/driver"
)

// Record is one cycle flattened for storage and plotting.
type Record struct {
	Cycle       int     `json:"cycle"`
	Time        float64 `json:"time"`
	RawSetPoint uint16  `json:"raw_set_point"`
	RawPosition uint16  `json:"raw_position"`
	SetPoint    float64 `json:"set_point"`
	Position    float64 `json:"position"`
	Error       float64 `json:"error"`
	Integral    float64 `json:"integral"`
	Drive       float64 `json:"drive"`
	Duty        int64   `json:"duty"`
	Stale       bool    `json:"stale"`
	Lost        bool    `json:"lost"`
}

// FromSample flattens s. Time is seconds since start.
func FromSample(s driver.Sample, start time.Time) Record {
	return Record{
		Cycle:       s.Cycle,
		Time:        s.Time.Sub(start).Seconds(),
		RawSetPoint: s.RawSetPoint,
		RawPosition: uint16(s.RawPosition),
		SetPoint:    s.SetPoint,
		Position:    s.Position,
		Error:       s.Error,
		Integral:    s.Integral,
		Drive:       s.Drive,
		Duty:        s.Command.Signed(),
		Stale:       s.StalePosition || s.StaleSetPoint,
		Lost:        s.Lost,
	}
}

// Direction recovers the bridge direction from the signed duty.
func (r Record) Direction() control.Direction {
	switch {
	case r.Duty > 0:
		return control.Forward
	case r.Duty < 0:
		return control.Reverse
	}
	return control.Neutral
}

// Header is the CSV column list matching Row.
func Header() []string {
	return []string{"cycle", "time", "raw_set_point", "raw_position", "set_point", "position", "error", "integral", "drive", "duty", "stale", "lost"}
}

func (r Record) Row() []string {
	return []string{
		strconv.Itoa(r.Cycle),
		strconv.FormatFloat(r.Time, 'f', 6, 64),
		strconv.FormatUint(uint64(r.RawSetPoint), 10),
		strconv.FormatUint(uint64(r.RawPosition), 10),
		strconv.FormatFloat(r.SetPoint, 'f', 6, 64),
		strconv.FormatFloat(r.Position, 'f', 6, 64),
		strconv.FormatFloat(r.Error, 'f', 6, 64),
		strconv.FormatFloat(r.Integral, 'f', 6, 64),
		strconv.FormatFloat(r.Drive, 'f', 6, 64),
		strconv.FormatInt(r.Duty, 10),
		strconv.FormatBool(r.Stale),
		strconv.FormatBool(r.Lost),
	}
}

// ParseRow is the inverse of Row.
func ParseRow(row []string) (Record, error) {
	var r Record
	if len(row) != len(Header()) {
		return r, errors.Errorf("expected %d columns, got %d", len(Header()), len(row))
	}
	var err error
	field := 0
	next := func() string {
		s := row[field]
		field++
		return s
	}
	atoi := func() int64 {
		if err != nil {
			next()
			return 0
		}
		var v int64
		v, err = strconv.ParseInt(next(), 10, 64)
		return v
	}
	atof := func() float64 {
		if err != nil {
			next()
			return 0
		}
		var v float64
		v, err = strconv.ParseFloat(next(), 64)
		return v
	}
	atob := func() bool {
		if err != nil {
			next()
			return false
		}
		var v bool
		v, err = strconv.ParseBool(next())
		return v
	}

	r.Cycle = int(atoi())
	r.Time = atof()
	r.RawSetPoint = uint16(atoi())
	r.RawPosition = uint16(atoi())
	r.SetPoint = atof()
	r.Position = atof()
	r.Error = atof()
	r.Integral = atof()
	r.Drive = atof()
	r.Duty = atoi()
	r.Stale = atob()
	r.Lost = atob()
	if err != nil {
		return Record{}, errors.Wrapf(err, "column %d", field)
	}
	return r, nil
}

package sim

import (
	"math"

	"github.com/pkg/errors"

	"github.com/san-kum/servoctl/internal/dynamo"
)

// Motor is a brushed DC motor with a viscous load, seen through the
// encoder: state is {theta, omega} in encoder counts and counts/s, control
// is the armature voltage.
//
//	J*dω/dt = Kt*u - b*ω
type Motor struct {
	Inertia        float64
	TorqueConstant float64
	Damping        float64
	// Coulomb is a constant friction torque opposing motion.
	Coulomb float64
}

// NewMotor returns a small gear motor that slews about 1200 counts/s at
// 12 V.
func NewMotor() *Motor {
	return &Motor{
		Inertia:        0.05,
		TorqueConstant: 100,
		Damping:        1,
	}
}

func (m *Motor) Validate() error {
	if !(m.Inertia > 0) || math.IsInf(m.Inertia, 0) {
		return errors.Wrapf(dynamo.ErrParameterBounds, "inertia %v", m.Inertia)
	}
	if m.Damping < 0 || m.TorqueConstant < 0 || m.Coulomb < 0 {
		return errors.Wrap(dynamo.ErrParameterBounds, "negative motor constant")
	}
	return nil
}

func (m *Motor) StateDim() int   { return 2 }
func (m *Motor) ControlDim() int { return 1 }

func (m *Motor) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	omega := x[1]
	torque := m.TorqueConstant*u[0] - m.Damping*omega
	if omega > 0 {
		torque -= m.Coulomb
	} else if omega < 0 {
		torque += m.Coulomb
	} else if math.Abs(torque) <= m.Coulomb {
		torque = 0
	} else {
		torque -= math.Copysign(m.Coulomb, torque)
	}
	return dynamo.State{omega, torque / m.Inertia}
}

// TopSpeed is the steady-state speed at voltage v, ignoring friction.
func (m *Motor) TopSpeed(v float64) float64 {
	if m.Damping == 0 {
		return math.Inf(1)
	}
	return m.TorqueConstant * v / m.Damping
}

// Package viz is the terminal front end of the live loop view.
//
// The package implements a Bubble Tea program:
//
//   - [Model]: steps the loop on a timer and draws it
//   - [Menu]: picks a preset before starting a [Model]
//   - [Canvas]: Braille pixel canvas used for the rotor dial
//
// # Key Bindings
//
//	Space - Pause/Resume the loop
//	R     - Reset filters and integral
//	Tab   - Select gain
//	Up/K  - Raise selected gain (+10%)
//	Down/J - Lower selected gain (-10%)
//	Left/Right - Turn the set-point knob (simulation only)
//	T     - Cycle color themes
//	?     - Show help overlay
package viz

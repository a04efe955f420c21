// Package control implements the position loop: two exponential low-pass
// filters, a PI law and the shaping of its output into a duty magnitude and
// a direction.
//
//   - [LowPass]: stateful exponential smoothing for one channel
//   - [PI]: proportional-integral law with an optional integral clamp
//   - [Loop]: one set-point channel, one position channel, one PI, one
//     [Command] per call
//
// # Usage
//
//	loop, err := control.NewLoop(control.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	cmd := loop.Step(setPoint, position) // once per sample interval
//
// A Loop is not safe for concurrent use and Step must not be re-entered.
// The caller paces it at Config.SampleInterval.
package control

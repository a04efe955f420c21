// Package analysis characterizes recorded runs of the position loop.
//
//   - [PowerSpectrum]: windowed spectrum of a signal sampled at a fixed rate
//   - [DominantFrequency]: strongest non-DC component, e.g. a hunting limit cycle
//   - [Step]: overshoot, rise and settling of a set-point step
//
// # Hunting Detection
//
// A loop that oscillates around the set-point shows up as a clear peak in
// the spectrum of the position error:
//
//	ps := analysis.PowerSpectrum(errs, 10)
//	f, p := analysis.DominantFrequency(ps)
package analysis

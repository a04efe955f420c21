// Package dynamo holds the primitives the simulated rig is built from.
//
//   - [State]: plant state vector
//   - [System]: an ODE dX/dt = f(X, u, t)
//   - [Integrator]: advances a System by one step
//
// The servo plant in package sim is a [System]; the rig advances it with an
// [Integrator] from package integrators between control cycles.
package dynamo

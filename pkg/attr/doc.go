// Package attr declares the project attributes ruler resolves, their value
// domains, and the immutable [Set] that carries resolved values between
// pipeline stages.
//
// Attributes come in four kinds:
//   - detectable: resolved from evidence, e.g. language or framework
//   - input: asked of the user, optionally hinted by evidence, e.g. scale
//   - guideline: influence behavior but never trigger rule categories
//   - system: environment facts shown for context only
//
// Values of a [DomainTier] attribute are ordered, and that order is the rank
// used for cumulative tier inheritance.
package attr

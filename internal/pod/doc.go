// Package pod defines the domain model shared by every podkeeper subsystem.
//
// A [Spec] is the desired state of one logically named GPU pod. A [Record]
// is what the provider reported about a pod at some point in time and what
// the state store persists. A [Resolved] pod is the result of a successful
// ensure: a running pod with its public endpoints.
//
// The package also defines the error taxonomy ([Error], [ErrorKind]) that the
// orchestrator uses to report exactly one failure kind per operation.
package pod

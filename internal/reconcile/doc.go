// Package reconcile decides, without touching the network, whether a
// logical pod needs nothing, a start, or a new pod.
package reconcile

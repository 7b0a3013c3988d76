// Package readiness waits for a provider pod to become reachable.
//
// A [Poller] fetches the pod once immediately and then once per interval
// until it is running with a public IP and every required port mapped. It
// gives up with a [*TimeoutError] after the timeout or a [*TerminalError]
// when the pod is terminated or vanishes. The poller only observes: it never
// stops or terminates the pod it is waiting for.
package readiness

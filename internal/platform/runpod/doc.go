// Package runpod provides the RunPod API client used by the orchestrator.
//
// [Client] implements pod creation, lookup, listing, start/stop and
// termination against the REST API, and GPU type listing against the
// GraphQL API. Pod reads and lifecycle changes can be routed through
// GraphQL instead with [WithStatusVia].
//
// Idempotent calls are retried with exponential backoff on connection
// failures and on 408, 409, 425, 429 and 5xx responses. Creation is retried
// only on connection failures and 429.
//
// Errors are typed: [*APIError] for non-2xx responses, [*GraphQLError] for
// GraphQL error lists and [*TransportError] for network and decoding
// failures. Each reports its pod.ErrorKind.
package runpod

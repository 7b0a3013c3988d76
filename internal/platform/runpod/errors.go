package runpod

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/imamik/podkeeper/internal/pod"
)

// APIError is a non-2xx response from the REST or GraphQL endpoint.
type APIError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 512 {
		body = body[:512] + "..."
	}
	return fmt.Sprintf("runpod %s: status %d: %s", e.Op, e.StatusCode, body)
}

// ErrorKind reports semantic 4xx rejections as provider errors and
// everything else as transport errors.
func (e *APIError) ErrorKind() pod.ErrorKind {
	if e.StatusCode >= 400 && e.StatusCode < 500 && !retryableStatus(e.StatusCode) {
		return pod.KindProvider
	}
	return pod.KindTransport
}

// Is makes 404 responses match pod.ErrNotFound.
func (e *APIError) Is(target error) bool {
	return target == pod.ErrNotFound && e.StatusCode == http.StatusNotFound
}

// GraphQLError carries the messages of a GraphQL "errors" array.
type GraphQLError struct {
	Op       string
	Messages []string
}

func (e *GraphQLError) Error() string {
	return fmt.Sprintf("runpod %s: graphql: %s", e.Op, strings.Join(e.Messages, "; "))
}

func (e *GraphQLError) ErrorKind() pod.ErrorKind {
	return pod.KindProvider
}

// TransportError is a failure to reach the API or read its response.
type TransportError struct {
	Op  string
	Err error
	// decode is set when a response arrived but could not be parsed.
	decode bool
}

func (e *TransportError) Error() string {
	if e.decode {
		return fmt.Sprintf("runpod %s: decode response: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("runpod %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) ErrorKind() pod.ErrorKind {
	return pod.KindTransport
}

// IsNotFound checks if an error indicates the pod does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, pod.ErrNotFound)
}

// IsRateLimited checks if an error indicates rate limiting.
func IsRateLimited(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests
}

// IsRetryable checks if an error is transient: a connection failure or one
// of 408, 409, 425, 429 and 5xx.
func IsRetryable(err error) bool {
	if isConnectionError(err) {
		return true
	}
	var apiErr *APIError
	return errors.As(err, &apiErr) && retryableStatus(apiErr.StatusCode)
}

// isCreateRetryable is the narrower rule for pod creation, where a retry
// after the server saw the request could create a second pod. Only a failed
// dial, which never sent the request, and 429 are retried.
func isCreateRetryable(err error) bool {
	return isDialError(err) || IsRateLimited(err)
}

func isDialError(err error) bool {
	var te *TransportError
	if !errors.As(err, &te) || te.decode {
		return false
	}
	var opErr *net.OpError
	return errors.As(te.Err, &opErr) && opErr.Op == "dial"
}

func isConnectionError(err error) bool {
	var te *TransportError
	return errors.As(err, &te) && !te.decode
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout, http.StatusConflict, http.StatusTooEarly, http.StatusTooManyRequests:
		return true
	}
	return code >= 500
}

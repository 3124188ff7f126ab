package tether

import (
	"net/http"
)

// CallInfo identifies the contract method behind an outbound request.
type CallInfo struct {
	Contract string
	Method   string
	Verb     string
	Path     string
	Shape    ReturnShape
	Async    bool
}

// EndpointID returns "Contract.Method".
func (i *CallInfo) EndpointID() string {
	return i.Contract + "." + i.Method
}

// HandlerFunc sends a request. It is the next step of an interceptor chain.
type HandlerFunc func(req *http.Request) (*http.Response, error)

// Interceptor wraps the transport call of every invocation.
//
//	func timing(info *tether.CallInfo, req *http.Request, next tether.HandlerFunc) (*http.Response, error) {
//	    start := time.Now()
//	    resp, err := next(req)
//	    log.Printf("%s took %v", info.EndpointID(), time.Since(start))
//	    return resp, err
//	}
//
// Interceptors can:
//   - Inspect or replace the request before calling next
//   - Inspect the response after calling next
//   - Short-circuit by returning without calling next
//
// Interceptors run outside the timeout governor, so time spent in them does
// not count against the request deadline. The response post-processor runs
// after the whole chain has returned.
type Interceptor func(info *CallInfo, req *http.Request, next HandlerFunc) (*http.Response, error)

// chainInterceptors combines multiple interceptors into a single one.
// The first interceptor in the slice is the outer-most one (runs first).
func chainInterceptors(interceptors []Interceptor) Interceptor {
	if len(interceptors) == 0 {
		return nil
	}
	if len(interceptors) == 1 {
		return interceptors[0]
	}
	return func(info *CallInfo, req *http.Request, handler HandlerFunc) (*http.Response, error) {
		chain := handler
		for i := len(interceptors) - 1; i >= 0; i-- {
			current := interceptors[i]
			next := chain
			chain = func(req *http.Request) (*http.Response, error) {
				return current(info, req, next)
			}
		}
		return chain(req)
	}
}

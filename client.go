package tether

import (
	"log/slog"
	"net/http"
	"reflect"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Client binds contract structs to an HTTP server. Configure it with the
// With methods, then call Bind or New. A bound contract keeps the settings
// the client had when it was bound.
type Client struct {
	mu             sync.RWMutex
	baseURL        string
	doer           Doer
	codec          Codec
	handler        ResponseHandler
	timeout        time.Duration
	interceptors   []Interceptor
	headers        http.Header
	logger         *slog.Logger
	skipValidation bool
	envelope       bool
}

// NewClient returns a client for the server at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		headers: make(http.Header),
	}
}

// BaseURL returns the address requests are sent to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// WithTransport sets the Doer requests are sent with.
// If not set, http.DefaultClient is used.
//
// An *http.Client with a non-zero Timeout caps every call at that timeout
// regardless of the governor; a warning is logged when such a client is bound.
func (c *Client) WithTransport(d Doer) *Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.doer = d
	return c
}

// WithCodec sets the codec for structured bodies and results.
// If not set, JSON is used.
func (c *Client) WithCodec(codec Codec) *Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.codec = codec
	return c
}

// WithResponseHandler replaces DefaultResponseHandler.
func (c *Client) WithResponseHandler(h ResponseHandler) *Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = h
	return c
}

// WithTimeout sets the governor deadline for requests without a per-request
// override. Zero selects DefaultTimeout; Infinite disables the governor.
func (c *Client) WithTimeout(d time.Duration) *Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timeout = d
	return c
}

// WithInterceptor adds an interceptor. Interceptors run in the order they
// were added; the first added is outermost.
func (c *Client) WithInterceptor(i Interceptor) *Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.interceptors = append(c.interceptors, i)
	return c
}

// WithHeader adds a header sent with every request. Parameters and static
// headers of a method with the same name take precedence.
func (c *Client) WithHeader(name, value string) *Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.headers.Add(name, value)
	return c
}

// WithLogger sets a custom logger for the client.
// If not set, slog.Default() will be used.
func (c *Client) WithLogger(logger *slog.Logger) *Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logger = logger
	return c
}

// WithSkipValidation disables `validate` tag checks on body and flat
// parameters.
func (c *Client) WithSkipValidation() *Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.skipValidation = true
	return c
}

// WithEnvelope makes the client unwrap {"result": ...} bodies and treat
// {"error": {...}} bodies as errors, for servers that envelope responses.
func (c *Client) WithEnvelope() *Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.envelope = true
	return c
}

// Bind fills every method field of the contract struct pointed to by target
// with a function that performs the call.
//
//	var api PostsAPI
//	if err := client.Bind(&api); err != nil {
//	    return err
//	}
//	post, err := api.Get(ctx, 1)
func (c *Client) Bind(target any) error {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Pointer || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return Errorf(CodeConfiguration, "Bind needs a non-nil pointer to a contract struct, got %T", target)
	}
	contract, err := ContractOf(v.Type().Elem())
	if err != nil {
		return err
	}
	d := c.dispatcher(contract)
	s := v.Elem()
	for _, name := range contract.order {
		m := d.method(contract.methods[name])
		s.Field(m.entry.field).Set(reflect.MakeFunc(m.entry.fn, m.call))
	}
	return nil
}

// New returns a *T with every contract method bound to c.
func New[T any](c *Client) (*T, error) {
	t := new(T)
	if err := c.Bind(t); err != nil {
		return nil, err
	}
	return t, nil
}

// Invoke calls a contract method with args in signature order, without a
// bound struct. It returns what the bound function would return besides its
// error: the value, the *Future, or nil for methods returning only an error.
func (c *Client) Invoke(contract *Contract, method string, args ...any) (any, error) {
	entry, ok := contract.methods[method]
	if !ok {
		return nil, Errorf(CodeConfiguration, "%s has no method %q", contract.Name(), method)
	}
	if len(args) != entry.fn.NumIn() {
		return nil, Errorf(CodeInvalidArgument, "%s.%s takes %d arguments, got %d", contract.Name(), method, entry.fn.NumIn(), len(args))
	}
	in := make([]reflect.Value, len(args))
	for i, a := range args {
		t := entry.fn.In(i)
		if a == nil {
			in[i] = reflect.Zero(t)
			continue
		}
		v := reflect.ValueOf(a)
		switch {
		case v.Type().AssignableTo(t):
			in[i] = assignable(v, t)
		case v.Type().ConvertibleTo(t):
			in[i] = v.Convert(t)
		default:
			return nil, Errorf(CodeInvalidArgument, "argument %d: cannot use %T as %s", i, a, t)
		}
	}
	out := c.dispatcher(contract).method(entry).call(in)
	if entry.call.Async {
		return out[0].Interface(), nil
	}
	var err error
	if e := out[len(out)-1]; !e.IsNil() {
		err = e.Interface().(error)
	}
	if len(out) == 1 {
		return nil, err
	}
	return out[0].Interface(), err
}

// dispatcher snapshots the client settings for one contract.
func (c *Client) dispatcher(contract *Contract) *dispatcher {
	c.mu.RLock()
	defer c.mu.RUnlock()

	logger := c.logger
	if logger == nil {
		logger = slog.Default()
	}
	doer := c.doer
	if doer == nil {
		doer = http.DefaultClient
	}
	if hc, ok := doer.(*http.Client); ok && hc.Timeout != 0 {
		logger.Warn("transport has its own timeout; calls fail at whichever deadline comes first",
			slog.String("contract", contract.Name()),
			slog.Duration("transport_timeout", hc.Timeout))
	}
	codec := c.codec
	if codec == nil {
		codec = JSON
	}
	handler := c.handler
	if handler == nil {
		handler = DefaultResponseHandler
	}
	v := validate
	if c.skipValidation {
		v = nil
	}
	gov := NewGovernor(doer, c.timeout)

	return &dispatcher{
		contract: contract,
		builder: requestBuilder{
			codec:     codec,
			validate:  v,
			baseURL:   c.baseURL,
			namespace: contract.namespace,
		},
		adapter: adapter{
			codec:    codec,
			handler:  handler,
			envelope: c.envelope,
		},
		send:      gov.Do,
		intercept: chainInterceptors(append([]Interceptor(nil), c.interceptors...)),
		headers:   c.headers.Clone(),
		logger:    logger,
	}
}

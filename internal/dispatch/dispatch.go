// Package dispatch resolves logical service names to network targets
// and performs timed outbound HTTP calls with failure classification.
package dispatch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"time"
)

const DefaultTimeout = 30 * time.Second

// Target is one statically configured downstream service.
type Target struct {
	Name    string
	Host    string
	Port    int
	Timeout time.Duration
}

// Result is a completed downstream response, passed through verbatim
// regardless of whether the status indicates an error.
type Result struct {
	Status      int
	Body        []byte
	ContentType string
}

// Dispatcher performs outbound calls against a static target table.
// The table is immutable after construction.
type Dispatcher struct {
	targets map[string]Target
	client  *http.Client
	onCall  func(service string)
}

// NewDispatcher builds a dispatcher. onCall, if non-nil, is invoked
// once per attempted call at the moment the call is issued, before the
// outcome is known.
func NewDispatcher(targets []Target, onCall func(service string)) *Dispatcher {
	table := make(map[string]Target, len(targets))
	for _, t := range targets {
		if t.Timeout <= 0 {
			t.Timeout = DefaultTimeout
		}
		table[t.Name] = t
	}
	return &Dispatcher{
		targets: table,
		client:  &http.Client{},
		onCall:  onCall,
	}
}

// Names lists the configured service names, sorted.
func (d *Dispatcher) Names() []string {
	names := make([]string, 0, len(d.targets))
	for name := range d.targets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the target for a service name.
func (d *Dispatcher) Lookup(serviceName string) (Target, bool) {
	t, ok := d.targets[serviceName]
	return t, ok
}

// Dispatch posts payload to the named service, bounded by the target's
// timeout. An unknown name returns ErrUnknownService. Failed calls are
// classified as *Error with KindTimeout or KindTransport; a completed
// call is never an error, whatever its status code.
//
// The call context derives from Background, not from any inbound
// request: an abandoned client does not cancel an in-flight dispatch.
func (d *Dispatcher) Dispatch(serviceName string, payload []byte) (*Result, error) {
	target, ok := d.targets[serviceName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownService, serviceName)
	}

	if d.onCall != nil {
		d.onCall(serviceName)
	}

	ctx, cancel := context.WithTimeout(context.Background(), target.Timeout)
	defer cancel()

	url := fmt.Sprintf("http://%s:%d/", target.Host, target.Port)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, &Error{Kind: KindTransport, Service: serviceName, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, &Error{Kind: classify(err), Service: serviceName, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: classify(err), Service: serviceName, Err: err}
	}

	return &Result{
		Status:      resp.StatusCode,
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}

func classify(err error) Kind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	return KindTransport
}

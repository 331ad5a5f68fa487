package aerc

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	internalprogress "github.com/feldspar-io/aerc/internal/progress"
)

// Dispatch is the caller-facing handle for one background request. The
// request runs to completion; there is no cancel signal beyond the context
// passed at launch.
type Dispatch struct {
	id   string
	done chan struct{}
}

// ID returns the per-dispatch request identifier, also transmitted in the
// configured request-ID header and stamped on progress-sink events.
func (d *Dispatch) ID() string {
	return d.id
}

// Done is closed after the terminal callback has been delivered.
func (d *Dispatch) Done() <-chan struct{} {
	return d.done
}

// BackgroundGet describes the backgroundget operation and its observable behavior.
//
// BackgroundGet performs an HTTP GET on a dedicated goroutine and may be
// called from any goroutine, including one that must not block. Progress is
// relayed to cb in order; exactly one of ReportError or Done fires per
// dispatch, and it fires last. A fresh dispatch is created per call;
// concurrent dispatches do not interfere.
func (c *Client) BackgroundGet(ctx context.Context, uri string, headers http.Header, cb Callback) (*Dispatch, error) {
	return c.launch(ctx, http.MethodGet, uri, headers, nil, cb)
}

// BackgroundPost describes the backgroundpost operation and its observable behavior.
//
// BackgroundPost performs an HTTP POST on a dedicated goroutine. The delivery
// contract matches [Client.BackgroundGet].
func (c *Client) BackgroundPost(ctx context.Context, uri string, headers http.Header, body []byte, cb Callback) (*Dispatch, error) {
	if body == nil {
		body = []byte{}
	}
	return c.launch(ctx, http.MethodPost, uri, headers, body, cb)
}

type dispatchEvent struct {
	terminal bool
	isError  bool
	message  string
	resp     *Response
}

// dispatch owns one background request: a worker goroutine runs the exchange
// and feeds an ordered event channel; a delivery goroutine drains it and
// invokes the callback sequentially. FIFO delivery plus a single terminal
// send gives strict progress ordering and exactly-once terminal semantics.
type dispatch struct {
	client *Client
	cb     Callback
	id     string
	method string
	uri    string
	events chan dispatchEvent
	done   chan struct{}
}

func (c *Client) launch(ctx context.Context, method, uri string, headers http.Header, body []byte, cb Callback) (*Dispatch, error) {
	if c == nil {
		return nil, ErrClientNotReady
	}
	if cb == nil {
		return nil, ErrCallbackRequired
	}

	d := &dispatch{
		client: c,
		cb:     cb,
		id:     uuid.NewString(),
		method: method,
		uri:    uri,
		events: make(chan dispatchEvent, c.cfg.Dispatch.EventBuffer),
		done:   make(chan struct{}),
	}
	c.metrics.Inc(MetricDispatchLaunched)

	go d.deliver()
	go d.run(ctx, headers, body)

	return &Dispatch{id: d.id, done: d.done}, nil
}

// report implements the client's reporter; called from the worker goroutine
// only, so sends stay ordered.
func (d *dispatch) report(message string) {
	d.events <- dispatchEvent{message: message}
}

func (d *dispatch) run(ctx context.Context, headers http.Header, body []byte) {
	resp, err := d.client.do(ctx, d.method, d.uri, headers, body, d, d.id)
	if err != nil {
		d.events <- dispatchEvent{terminal: true, isError: true, message: err.Error()}
	} else {
		d.events <- dispatchEvent{terminal: true, resp: resp}
	}
	close(d.events)
}

func (d *dispatch) deliver() {
	defer close(d.done)

	for ev := range d.events {
		switch {
		case !ev.terminal:
			d.cb.ReportProgress(ev.message)
			d.emit(internalprogress.Event{
				Kind:    internalprogress.KindProgress,
				Message: ev.message,
			})
		case ev.isError:
			d.cb.ReportError(ev.message)
			d.emit(internalprogress.Event{
				Kind:    internalprogress.KindError,
				Message: ev.message,
			})
		default:
			d.cb.Done(ev.resp.Status, ev.resp.Headers, ev.resp.Body)
			d.emit(internalprogress.Event{
				Kind:   internalprogress.KindDone,
				Status: ev.resp.Status,
				Bytes:  len(ev.resp.Body),
			})
		}
	}
	d.client.metrics.Inc(MetricDispatchCompleted)
}

func (d *dispatch) emit(ev internalprogress.Event) {
	if d.client.sink == nil {
		return
	}
	ev.Timestamp = time.Now()
	ev.RequestID = d.id
	ev.Method = d.method
	ev.URI = d.uri
	d.client.sink.Emit(context.Background(), ev)
}

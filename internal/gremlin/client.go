// Package gremlin is a small Gremlin Server client speaking the GraphSON v2
// WebSocket protocol used by Amazon Neptune.
package gremlin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	MimeType    = "application/vnd.gremlin-v2.0+json"
	DefaultPort = 8182
	DefaultPath = "/gremlin"
)

// Response status codes of the Gremlin Server protocol.
const (
	StatusSuccess        = 200
	StatusNoContent      = 204
	StatusPartialContent = 206
)

var ErrClosed = errors.New("gremlin: connection closed")

// ServerError is an error reported by the server for one request. The
// connection stays usable.
type ServerError struct {
	Code      int
	Message   string
	RequestID string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("gremlin: server returned %d: %s", e.Code, e.Message)
}

// Remote reports that the failure happened on the server side.
func (e *ServerError) Remote() bool { return true }

// Dialer opens connections to one Gremlin endpoint.
type Dialer struct {
	Endpoint    string
	Port        int
	Path        string
	Secure      bool
	DialTimeout time.Duration
	Logger      *zap.Logger
}

func (d *Dialer) URL() string {
	scheme := "ws"
	if d.Secure {
		scheme = "wss"
	}
	port := d.Port
	if port == 0 {
		port = DefaultPort
	}
	path := d.Path
	if path == "" {
		path = DefaultPath
	}
	u := url.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(d.Endpoint, strconv.Itoa(port)),
		Path:   path,
	}
	return u.String()
}

// Open dials a new connection.
func (d *Dialer) Open(ctx context.Context) (*Conn, error) {
	if d.Endpoint == "" {
		return nil, errors.New("gremlin: endpoint is not set")
	}
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Conn{
		url:    d.URL(),
		dialer: &websocket.Dialer{HandshakeTimeout: d.DialTimeout, Proxy: websocket.DefaultDialer.Proxy},
		logger: logger,
	}
	if err := c.dial(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (d *Dialer) Close(c *Conn) error {
	return c.Close()
}

// Conn is one WebSocket session. It carries one request at a time; a pool
// hands it to a single trial.
type Conn struct {
	url    string
	dialer *websocket.Dialer
	logger *zap.Logger

	mu     sync.Mutex
	ws     *websocket.Conn
	closed bool
}

func (c *Conn) dial(ctx context.Context) error {
	ws, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("gremlin: dial %s: %w", c.url, err)
	}
	c.ws = ws
	c.logger.Debug("connected", zap.String("url", c.url))
	return nil
}

// broken drops the socket after a transport failure. The next Submit
// redials.
func (c *Conn) broken() {
	if c.ws != nil {
		c.ws.Close()
		c.ws = nil
	}
}

func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.ws == nil {
		return nil
	}
	ws := c.ws
	c.ws = nil
	_ = ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return ws.Close()
}

type request struct {
	RequestID Typed       `json:"requestId"`
	Op        string      `json:"op"`
	Processor string      `json:"processor"`
	Args      requestArgs `json:"args"`
}

type requestArgs struct {
	Gremlin  string            `json:"gremlin"`
	Bindings map[string]any    `json:"bindings,omitempty"`
	Language string            `json:"language"`
	Aliases  map[string]string `json:"aliases,omitempty"`
}

type response struct {
	RequestID string `json:"requestId"`
	Status    struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"status"`
	Result struct {
		Data json.RawMessage `json:"data"`
	} `json:"result"`
}

// EncodeRequest builds the binary frame of an eval request.
func EncodeRequest(id, script string, bindings map[string]any) ([]byte, error) {
	body, err := json.Marshal(request{
		RequestID: Typed{Type: "g:UUID", Value: id},
		Op:        "eval",
		Args: requestArgs{
			Gremlin:  script,
			Bindings: bindings,
			Language: "gremlin-groovy",
			Aliases:  map[string]string{"g": "g"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("gremlin: encode request: %w", err)
	}
	frame := make([]byte, 0, 1+len(MimeType)+len(body))
	frame = append(frame, byte(len(MimeType)))
	frame = append(frame, MimeType...)
	return append(frame, body...), nil
}

// Submit sends script for evaluation and returns the stream of its result
// pages. The stream must be drained before the next Submit.
func (c *Conn) Submit(ctx context.Context, script string, bindings map[string]any) (*ResultStream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}
	if c.ws == nil {
		c.logger.Debug("reconnecting", zap.String("url", c.url))
		if err := c.dial(ctx); err != nil {
			return nil, err
		}
	}

	id := uuid.NewString()
	frame, err := EncodeRequest(id, script, bindings)
	if err != nil {
		return nil, err
	}

	deadline, _ := ctx.Deadline()
	c.ws.SetWriteDeadline(deadline)
	if err := c.ws.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		c.broken()
		return nil, fmt.Errorf("gremlin: send request: %w", err)
	}
	return &ResultStream{conn: c, requestID: id}, nil
}

// Eval submits script and collects every result.
func (c *Conn) Eval(ctx context.Context, script string, bindings map[string]any) ([]any, error) {
	rs, err := c.Submit(ctx, script, bindings)
	if err != nil {
		return nil, err
	}
	return rs.All(ctx)
}

func (c *Conn) read(ctx context.Context, requestID string) (*response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ws == nil {
		return nil, ErrClosed
	}
	ws := c.ws

	stop := context.AfterFunc(ctx, func() {
		ws.SetReadDeadline(time.Now())
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			stop()
			c.broken()
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("gremlin: read response: %w", err)
		}

		var resp response
		if err := json.Unmarshal(data, &resp); err != nil {
			stop()
			c.broken()
			return nil, fmt.Errorf("gremlin: decode response: %w", err)
		}
		if resp.RequestID != requestID {
			// left over from an abandoned request
			c.logger.Debug("skipping response", zap.String("request_id", resp.RequestID))
			continue
		}

		if !stop() {
			// the read deadline has been moved into the past
			c.broken()
		}
		return &resp, nil
	}
}

// ResultStream yields the result pages of one request.
type ResultStream struct {
	conn      *Conn
	requestID string
	done      bool
}

// Next returns the next page of results, or io.EOF once the server has sent
// the last one.
func (s *ResultStream) Next(ctx context.Context) ([]any, error) {
	if s.done {
		return nil, io.EOF
	}

	resp, err := s.conn.read(ctx, s.requestID)
	if err != nil {
		s.done = true
		return nil, err
	}

	switch code := resp.Status.Code; {
	case code == StatusNoContent:
		s.done = true
		return nil, nil
	case code == StatusSuccess || code == StatusPartialContent:
		s.done = code == StatusSuccess
		page, err := decodePage(resp.Result.Data)
		if err != nil {
			s.done = true
			return nil, err
		}
		return page, nil
	default:
		s.done = true
		return nil, &ServerError{Code: code, Message: resp.Status.Message, RequestID: s.requestID}
	}
}

// All reads the remaining pages.
func (s *ResultStream) All(ctx context.Context) ([]any, error) {
	var out []any
	for {
		page, err := s.Next(ctx)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, page...)
	}
}

func decodePage(data json.RawMessage) ([]any, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	v, err := Unwrap(data)
	if err != nil {
		return nil, err
	}
	if list, ok := v.([]any); ok {
		return list, nil
	}
	return []any{v}, nil
}

// Package dummy runs a fake Gremlin server with canned latency and failure
// profiles, for trying the benchmark without a database.
package dummy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"graphbench/internal/gremlin"
)

// Profile shapes the latency and failures of every request.
type Profile struct {
	MinLatency   time.Duration
	MaxLatency   time.Duration
	SpikeRate    float64
	SpikeLatency time.Duration
	ErrorRate    float64
}

var Profiles = map[string]Profile{
	"instant": {},
	"fast":    {MinLatency: 10 * time.Millisecond, MaxLatency: 50 * time.Millisecond},
	"medium":  {MinLatency: 100 * time.Millisecond, MaxLatency: 300 * time.Millisecond},
	"slow":    {MinLatency: time.Second, MaxLatency: 2 * time.Second},
	// usually fast, p99 is terrible
	"spike": {MinLatency: 20 * time.Millisecond, MaxLatency: 20 * time.Millisecond, SpikeRate: 0.05, SpikeLatency: 2 * time.Second},
	"error": {MinLatency: 10 * time.Millisecond, MaxLatency: 50 * time.Millisecond, ErrorRate: 0.2},
}

func ProfileNames() []string {
	names := make([]string, 0, len(Profiles))
	for name := range Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Status code for a failed script evaluation.
const StatusScriptEvaluationError = 597

type ServerConfig struct {
	Port    int
	Profile string
	// PageSize is the number of results per response frame.
	PageSize int
	// Results is the number of results every query returns.
	Results int
	Seed    int64
}

type Server struct {
	cfg      ServerConfig
	profile  Profile
	upgrader websocket.Upgrader
	logger   *zap.Logger

	mu  sync.Mutex
	rng *rand.Rand

	requests atomic.Uint64
	failures atomic.Uint64
}

func NewServer(cfg ServerConfig, logger *zap.Logger) (*Server, error) {
	if cfg.Profile == "" {
		cfg.Profile = "fast"
	}
	profile, ok := Profiles[cfg.Profile]
	if !ok {
		return nil, fmt.Errorf("dummy: unknown profile %q (want one of %s)", cfg.Profile, strings.Join(ProfileNames(), ", "))
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 64
	}
	if cfg.Results <= 0 {
		cfg.Results = 20
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		cfg:     cfg,
		profile: profile,
		logger:  logger,
		rng:     rand.New(rand.NewSource(cfg.Seed)),
	}, nil
}

// Requests returns the number of requests answered so far.
func (s *Server) Requests() uint64 { return s.requests.Load() }

// Failures returns the number of injected failures so far.
func (s *Server) Failures() uint64 { return s.failures.Load() }

// Start listens on cfg.Port and serves until ctx is done.
func Start(ctx context.Context, cfg ServerConfig, logger *zap.Logger) (*Server, net.Addr, error) {
	srv, err := NewServer(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return nil, nil, fmt.Errorf("dummy: listen: %w", err)
	}

	httpSrv := &http.Server{Handler: srv, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srv.logger.Error("dummy server failed", zap.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		httpSrv.Shutdown(shutdownCtx)
	}()

	srv.logger.Info("dummy gremlin server running",
		zap.String("addr", ln.Addr().String()),
		zap.String("profile", srv.cfg.Profile))
	return srv, ln.Addr(), nil
}

type request struct {
	RequestID struct {
		Value string `json:"@value"`
	} `json:"requestId"`
	Op   string `json:"op"`
	Args struct {
		Gremlin  string         `json:"gremlin"`
		Bindings map[string]any `json:"bindings"`
	} `json:"args"`
}

type status struct {
	Code       int            `json:"code"`
	Message    string         `json:"message"`
	Attributes map[string]any `json:"attributes"`
}

type result struct {
	Data any            `json:"data"`
	Meta map[string]any `json:"meta"`
}

type response struct {
	RequestID string `json:"requestId"`
	Status    status `json:"status"`
	Result    result `json:"result"`
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("upgrade failed", zap.Error(err))
		return
	}
	defer ws.Close()

	for {
		_, frame, err := ws.ReadMessage()
		if err != nil {
			return
		}
		req, err := decodeFrame(frame)
		if err != nil {
			s.logger.Debug("bad request frame", zap.Error(err))
			return
		}
		if err := s.answer(r.Context(), ws, req); err != nil {
			return
		}
	}
}

func decodeFrame(frame []byte) (*request, error) {
	if len(frame) == 0 {
		return nil, errors.New("empty frame")
	}
	n := int(frame[0])
	if len(frame) < 1+n {
		return nil, errors.New("truncated mime type")
	}
	if mime := string(frame[1 : 1+n]); mime != gremlin.MimeType {
		return nil, fmt.Errorf("unsupported mime type %q", mime)
	}
	var req request
	if err := json.Unmarshal(frame[1+n:], &req); err != nil {
		return nil, err
	}
	return &req, nil
}

func (s *Server) answer(ctx context.Context, ws *websocket.Conn, req *request) error {
	s.requests.Add(1)

	delay, fail := s.roll()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
	}

	if req.Op != "eval" {
		return s.write(ws, req.RequestID.Value, 499, fmt.Sprintf("unsupported op %q", req.Op), nil)
	}
	if fail {
		s.failures.Add(1)
		return s.write(ws, req.RequestID.Value, StatusScriptEvaluationError, "injected failure", nil)
	}

	items := s.results(req.Args.Gremlin)
	if len(items) == 0 {
		return s.write(ws, req.RequestID.Value, gremlin.StatusNoContent, "", nil)
	}
	for start := 0; start < len(items); start += s.cfg.PageSize {
		end := min(start+s.cfg.PageSize, len(items))
		code := gremlin.StatusPartialContent
		if end == len(items) {
			code = gremlin.StatusSuccess
		}
		if err := s.write(ws, req.RequestID.Value, code, "", items[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) roll() (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.profile
	delay := p.MinLatency
	if span := p.MaxLatency - p.MinLatency; span > 0 {
		delay += time.Duration(s.rng.Int63n(int64(span)))
	}
	if p.SpikeRate > 0 && s.rng.Float64() < p.SpikeRate {
		delay = p.SpikeLatency
	}
	return delay, p.ErrorRate > 0 && s.rng.Float64() < p.ErrorRate
}

// results fabricates data shaped like what the script asks for.
func (s *Server) results(script string) []any {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.cfg.Results
	out := make([]any, 0, n)
	switch {
	case strings.Contains(script, "path()"):
		for i := 0; i < n; i++ {
			visited := time.Now().Add(-time.Duration(s.rng.Intn(90*24)) * time.Hour)
			out = append(out, gremlin.Typed{Type: "g:Path", Value: map[string]any{
				"labels": gremlin.Typed{Type: "g:List", Value: []any{}},
				"objects": gremlin.Typed{Type: "g:List", Value: []any{
					fmt.Sprintf("u-%d", s.rng.Intn(100000)),
					gremlin.Date(visited),
					fmt.Sprintf("site-%d", s.rng.Intn(1000)),
					fmt.Sprintf("site-%d", s.rng.Intn(1000)),
					fmt.Sprintf("site-%d", s.rng.Intn(1000)),
				}},
			}})
		}
	case strings.Contains(script, "hasLabel('website')") && strings.Contains(script, ".id()"):
		for i := 0; i < n; i++ {
			out = append(out, fmt.Sprintf("site-%d", i))
		}
	case strings.Contains(script, ".id()"):
		for i := 0; i < n; i++ {
			out = append(out, fmt.Sprintf("v-%d", s.rng.Intn(100000)))
		}
	default:
		for i := 0; i < n; i++ {
			out = append(out, fmt.Sprintf("uid-%d", s.rng.Intn(100000)))
		}
	}
	return out
}

func (s *Server) write(ws *websocket.Conn, id string, code int, msg string, items []any) error {
	resp := response{
		RequestID: id,
		Status:    status{Code: code, Message: msg, Attributes: map[string]any{}},
		Result:    result{Meta: map[string]any{}},
	}
	if items != nil {
		resp.Result.Data = gremlin.Typed{Type: "g:List", Value: items}
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return ws.WriteMessage(websocket.TextMessage, data)
}

package hostclient

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"providence/internal/config"
	"providence/internal/hostmsg"
)

const (
	writeWait       = 10 * time.Second
	maxMessageSize  = 1 << 20
	outboundBuffer  = 64
	defaultPing     = 20 * time.Second
	defaultDialWait = 5 * time.Second
)

var (
	ErrClosed         = errors.New("host_client_closed")
	ErrNotConnected   = errors.New("host_client_not_connected")
	ErrSendBufferFull = errors.New("host_client_send_buffer_full")
)

type Config struct {
	URL    string
	Header http.Header

	DialTimeout time.Duration
	// Failed dials tolerated in a row before the client declares itself dead.
	MaxReconnectAttempts int
	ReconnectBackoff     time.Duration
	PingPeriod           time.Duration
}

// ConfigFrom builds a transport config for one client identity.
func ConfigFrom(url, clientID, authToken string, cfg config.HostClientConfig) Config {
	header := http.Header{}
	header.Set("X-Client-Id", clientID)
	if authToken != "" {
		header.Set("Authorization", "Bearer "+authToken)
	}
	return Config{
		URL:                  url,
		Header:               header,
		DialTimeout:          cfg.DialTimeout,
		MaxReconnectAttempts: cfg.MaxReconnectAttempts,
		ReconnectBackoff:     cfg.ReconnectBackoff,
		PingPeriod:           cfg.PingPeriod,
	}
}

type outbound struct {
	requestID hostmsg.RequestID
	frame     []byte
}

// Client is one handle to the host service. It keeps reconnecting on its own
// until it runs out of attempts or is closed, after which it reports
// ReportIsDead and never comes back; callers construct a new Client.
//
// Nothing on Client blocks: outbound calls enqueue, inbound traffic is
// collected into a queue the owner drains once per tick.
type Client struct {
	cfg    Config
	dialer *websocket.Dialer
	log    zerolog.Logger

	nextID atomic.Uint64

	mu        sync.Mutex
	queue     []hostmsg.Event
	connected bool
	dead      bool
	inflight  map[hostmsg.RequestID]struct{}
	out       chan outbound

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func New(cfg Config) *Client {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaultDialWait
	}
	if cfg.PingPeriod <= 0 {
		cfg.PingPeriod = defaultPing
	}
	if cfg.MaxReconnectAttempts < 0 {
		cfg.MaxReconnectAttempts = 0
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		cfg: cfg,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.DialTimeout,
		},
		log:      log.With().Str("component", "host_client").Str("url", cfg.URL).Logger(),
		inflight: map[hostmsg.RequestID]struct{}{},
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	metricClientsConstructed.Add(1)
	go c.run()
	return c
}

// Request sends req on the request channel. The returned id is later
// resolved by exactly one of RequestAck, RequestReject, RequestResponse,
// SendFailed or ResponseLost in the inbound queue, or listed in the final
// ReportIsDead.
func (c *Client) Request(req hostmsg.Request) (hostmsg.RequestID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dead {
		return 0, ErrClosed
	}
	id := hostmsg.RequestID(c.nextID.Add(1))
	frame, err := hostmsg.EncodeMessage(id, req)
	if err != nil {
		return 0, err
	}
	if !c.connected {
		c.queue = append(c.queue, hostmsg.SendFailed{RequestID: id})
		return id, nil
	}
	select {
	case c.out <- outbound{requestID: id, frame: frame}:
		c.inflight[id] = struct{}{}
	default:
		metricSendBufferFull.Add(1)
		c.queue = append(c.queue, hostmsg.SendFailed{RequestID: id})
	}
	return id, nil
}

// Send enqueues a fire-and-forget message.
func (c *Client) Send(msg hostmsg.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dead {
		return ErrClosed
	}
	if !c.connected {
		return ErrNotConnected
	}
	frame, err := hostmsg.EncodeMessage(0, msg)
	if err != nil {
		return err
	}
	select {
	case c.out <- outbound{frame: frame}:
		return nil
	default:
		metricSendBufferFull.Add(1)
		return ErrSendBufferFull
	}
}

// Drain hands over everything received since the previous call, in order.
func (c *Client) Drain() []hostmsg.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.queue
	c.queue = nil
	return out
}

// Close shuts the handle down. The inbound queue will end with
// ReportClosedBySelf and ReportIsDead.
func (c *Client) Close() {
	c.cancel()
}

// Done is closed once the handle is dead.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *Client) run() {
	defer close(c.done)
	failures := 0
	for {
		if c.ctx.Err() != nil {
			c.push(hostmsg.ConnectionReport{Kind: hostmsg.ReportClosedBySelf})
			c.die()
			return
		}
		conn, status, err := c.dial()
		if err != nil {
			if c.ctx.Err() != nil {
				continue
			}
			failures++
			metricDialErrors.Add(1)
			c.log.Warn().Err(err).Int("status", status).Int("attempt", failures).Msg("host dial failed")
			if status == http.StatusUnauthorized || status == http.StatusForbidden {
				c.die()
				return
			}
			if failures > c.cfg.MaxReconnectAttempts {
				c.die()
				return
			}
			c.sleep(c.cfg.ReconnectBackoff)
			continue
		}
		failures = 0
		kind := c.serve(conn)
		c.push(hostmsg.ConnectionReport{Kind: kind})
		if kind == hostmsg.ReportClosedBySelf {
			c.die()
			return
		}
		c.sleep(c.cfg.ReconnectBackoff)
	}
}

func (c *Client) dial() (*websocket.Conn, int, error) {
	metricDials.Add(1)
	ctx, cancel := context.WithTimeout(c.ctx, c.cfg.DialTimeout)
	defer cancel()
	conn, resp, err := c.dialer.DialContext(ctx, c.cfg.URL, c.cfg.Header)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		return nil, status, err
	}
	return conn, 0, nil
}

func (c *Client) sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-c.ctx.Done():
	}
}

func (c *Client) serve(conn *websocket.Conn) hostmsg.ReportKind {
	out := make(chan outbound, outboundBuffer)
	c.mu.Lock()
	c.connected = true
	c.out = out
	c.queue = append(c.queue, hostmsg.ConnectionReport{Kind: hostmsg.ReportConnected})
	c.mu.Unlock()
	c.log.Info().Msg("host connected")

	readErr := make(chan error, 1)
	go func() {
		readErr <- c.readLoop(conn)
	}()
	kind, readDone := c.writeLoop(conn, out, readErr)
	_ = conn.Close()
	if !readDone {
		<-readErr
	}

	c.mu.Lock()
	c.connected = false
	c.out = nil
	for _, id := range sortedIDs(c.inflight) {
		c.queue = append(c.queue, hostmsg.ResponseLost{RequestID: id})
	}
	c.inflight = map[hostmsg.RequestID]struct{}{}
	// Anything still buffered was never written; it is covered by the
	// ResponseLost signals above.
	c.mu.Unlock()
	c.log.Info().Str("reason", kind.String()).Msg("host connection ended")
	return kind
}

func (c *Client) writeLoop(conn *websocket.Conn, out <-chan outbound, readErr <-chan error) (hostmsg.ReportKind, bool) {
	ticker := time.NewTicker(c.cfg.PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-c.ctx.Done():
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
			return hostmsg.ReportClosedBySelf, false
		case err := <-readErr:
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return hostmsg.ReportClosedByServer, true
			}
			c.log.Debug().Err(err).Msg("host read loop ended")
			return hostmsg.ReportDisconnected, true
		case item := <-out:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, item.frame); err != nil {
				c.log.Warn().Err(err).Uint64("request_id", uint64(item.requestID)).Msg("host write failed")
				return hostmsg.ReportDisconnected, false
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return hostmsg.ReportDisconnected, false
			}
		}
	}
}

func (c *Client) readLoop(conn *websocket.Conn) error {
	pongWait := 2 * c.cfg.PingPeriod
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		ev, err := hostmsg.Decode(data)
		if err != nil {
			metricFramesDropped.Add(1)
			c.log.Warn().Err(err).Int("bytes", len(data)).Msg("dropping malformed host frame")
			continue
		}
		c.accept(ev)
	}
}

func (c *Client) accept(ev hostmsg.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch e := ev.(type) {
	case hostmsg.RequestAck:
		delete(c.inflight, e.RequestID)
	case hostmsg.RequestReject:
		delete(c.inflight, e.RequestID)
	case hostmsg.RequestResponse:
		delete(c.inflight, e.RequestID)
	}
	c.queue = append(c.queue, ev)
}

func (c *Client) push(ev hostmsg.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queue = append(c.queue, ev)
}

func (c *Client) die() {
	c.cancel()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dead {
		return
	}
	c.dead = true
	c.connected = false
	c.out = nil
	aborted := sortedIDs(c.inflight)
	c.inflight = map[hostmsg.RequestID]struct{}{}
	c.queue = append(c.queue, hostmsg.ConnectionReport{Kind: hostmsg.ReportIsDead, AbortedRequests: aborted})
	c.log.Warn().Int("aborted_requests", len(aborted)).Msg("host client is dead")
}

func sortedIDs(m map[hostmsg.RequestID]struct{}) []hostmsg.RequestID {
	if len(m) == 0 {
		return nil
	}
	ids := make([]hostmsg.RequestID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

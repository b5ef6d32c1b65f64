package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"chartdesk/internal/chart"
	"chartdesk/internal/crosshair"
	"chartdesk/internal/logger"
	"chartdesk/internal/model"
	"chartdesk/internal/surface"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
	readLimit    = 8192
	sendBuffer   = 64
	hoverBuffer  = 64
)

// Client is one WebSocket peer driving its own chart.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub
	srv  *Server

	orch   *chart.Orchestrator
	box    *chart.FixedContainer
	hovers *hoverQueue // readPump → hoverLoop
	wake   chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once

	mu      sync.Mutex
	watched *surface.Surface
	unwatch func()
	unsubs  []func()
}

func newClient(srv *Server, conn *websocket.Conn) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	box := chart.NewFixedContainer(srv.deps.Chart.Width, srv.deps.Chart.Height)
	c := &Client{
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		hub:    srv.hub,
		srv:    srv,
		orch:   srv.newOrchestrator(box),
		box:    box,
		hovers: newHoverQueue(hoverBuffer),
		wake:   make(chan struct{}, 1),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	c.unsubs = append(c.unsubs,
		c.orch.OnStateChange(c.onState),
		c.orch.SubscribeTooltip(func(tip *crosshair.Tooltip) {
			c.sendJSON(TooltipMsg{Type: "tooltip", Tooltip: tip})
		}),
	)
	return c
}

func (c *Client) start() {
	c.hub.add(c)
	go c.writePump()
	go c.hoverLoop()
	go c.readPump()
}

// close tears the client down. Safe to call from any goroutine, repeatedly.
func (c *Client) close() {
	c.once.Do(func() {
		close(c.done)
		c.cancel()

		c.mu.Lock()
		unsubs := c.unsubs
		if c.unwatch != nil {
			unsubs = append(unsubs, c.unwatch)
		}
		c.unsubs, c.unwatch, c.watched = nil, nil, nil
		c.mu.Unlock()
		for _, fn := range unsubs {
			fn()
		}

		c.orch.Dispose()
		c.hub.RemoveClient(c)
		c.conn.Close()
	})
}

// sendJSON queues v for the write pump, dropping it when the buffer is full.
func (c *Client) sendJSON(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("[gateway] json marshal error: %v", err)
		return
	}
	select {
	case <-c.done:
	case c.send <- data:
	default:
		log.Println("[gateway] client send buffer full, dropping message")
	}
}

func (c *Client) sendError(reqID, msg string) {
	c.sendJSON(ErrorResponse{Type: "error", ReqID: reqID, Error: msg})
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))

			// Coalesce queued messages into one frame, newline separated.
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(msg)
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}
			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) readPump() {
	defer c.close()

	c.conn.SetReadLimit(readLimit)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg ClientMsg
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.sendError("", "invalid message: "+err.Error())
			continue
		}
		c.handle(msg)
	}
}

// hoverLoop turns queued pointer moves into tooltips, skipping moves that
// were overtaken before they could be served.
func (c *Client) hoverLoop() {
	for {
		select {
		case <-c.done:
			return
		case <-c.wake:
			if mv, ok := c.hovers.latest(); ok {
				c.orch.Hover(mv.time)
			}
		}
	}
}

func (c *Client) handle(msg ClientMsg) {
	switch msg.Type {
	case MsgMount:
		if msg.Symbol == "" {
			c.sendError(msg.ReqID, "symbol is required")
			return
		}
		c.runLoad(func(ctx context.Context) error { return c.orch.Mount(ctx, msg.Symbol) })

	case MsgLoad:
		req, err := parseLoad(msg)
		if err != nil {
			c.sendError(msg.ReqID, err.Error())
			return
		}
		c.runLoad(func(ctx context.Context) error { return c.orch.Load(ctx, req) })

	case MsgPrefs:
		if msg.Prefs == nil {
			c.sendError(msg.ReqID, "prefs is required")
			return
		}
		p := msg.Prefs.Clone()
		c.runLoad(func(ctx context.Context) error {
			if err := c.orch.ApplyPreferences(ctx, p); err != nil {
				return err
			}
			c.watchPrimary()
			c.pushState(c.orch.State(), nil)
			return nil
		})

	case MsgVisibility:
		if msg.ID == "" || msg.Visible == nil {
			c.sendError(msg.ReqID, "id and visible are required")
			return
		}
		n := c.orch.SetVisibility(c.ctx, msg.ID, *msg.Visible)
		c.sendJSON(VisibilityMsg{Type: MsgVisibility, ReqID: msg.ReqID, ID: msg.ID, Visible: *msg.Visible, Series: n})

	case MsgRange:
		if !c.orch.SetVisibleRange(surface.Range{From: msg.From, To: msg.To}) && msg.To < msg.From {
			c.sendError(msg.ReqID, "range is inverted")
		}

	case MsgHover:
		c.hovers.push(msg.Time)
		select {
		case c.wake <- struct{}{}:
		default:
		}

	case MsgResize:
		if msg.Width <= 0 {
			c.sendError(msg.ReqID, "width must be positive")
			return
		}
		c.box.Set(msg.Width, msg.Height)
		c.orch.Resize(msg.Width, msg.Height)

	case MsgFullscreen:
		c.sendJSON(FullscreenMsg{Type: MsgFullscreen, On: c.orch.ToggleFullscreen()})

	case MsgResetZoom:
		c.orch.ResetZoom()

	case MsgExport:
		img, err := c.orch.Export()
		if err != nil {
			c.sendError(msg.ReqID, err.Error())
			return
		}
		c.sendJSON(ExportMsg{Type: MsgExport, ReqID: msg.ReqID, Name: img.Name, PNG: img.PNG})

	case MsgPing:
		c.sendJSON(map[string]interface{}{
			"type":      "pong",
			"server_ts": time.Now().UnixMilli(),
		})

	default:
		c.sendError(msg.ReqID, "unknown message type "+msg.Type)
	}
}

// runLoad runs fn off the read loop so a newer request can supersede it.
func (c *Client) runLoad(fn func(ctx context.Context) error) {
	ctx := logger.WithLoadID(c.ctx, logger.NewLoadID())
	go func() {
		start := time.Now()
		err := fn(ctx)
		if errors.Is(err, model.ErrSuperseded) || errors.Is(err, context.Canceled) {
			return
		}
		c.srv.recordLoad(time.Since(start), err)
	}()
}

func (c *Client) onState(s chart.State, err error) {
	if s == chart.StateReady {
		c.watchPrimary()
	}
	c.pushState(s, err)
}

// watchPrimary follows range changes on the current primary surface, which
// is replaced on every load and chart type change.
func (c *Client) watchPrimary() {
	p := c.orch.Primary()

	c.mu.Lock()
	defer c.mu.Unlock()
	if p == c.watched {
		return
	}
	if c.unwatch != nil {
		c.unwatch()
		c.unwatch = nil
	}
	c.watched = p
	if p == nil {
		return
	}
	c.unwatch = p.SubscribeVisibleRange(func(r surface.Range) {
		c.sendJSON(RangeMsg{Type: MsgRange, From: r.From, To: r.To})
	})
}

func (c *Client) pushState(s chart.State, err error) {
	msg := StateMsg{Type: "state", State: s}
	if err != nil {
		msg.Error = err.Error()
	}
	req := c.orch.Request()
	msg.Symbol, msg.Timeframe = req.Symbol, req.Timeframe
	if s == chart.StateReady {
		p := c.orch.Preferences()
		msg.Prefs = &p
		msg.Panes = snapshotPanes(c.orch)
	}
	c.sendJSON(msg)
}

func snapshotPanes(o *chart.Orchestrator) []PaneOut {
	var panes []PaneOut
	for _, s := range []*surface.Surface{o.Primary(), o.Pane(surface.RoleRSI), o.Pane(surface.RoleMACD)} {
		if s == nil {
			continue
		}
		w, h := s.Size()
		pane := PaneOut{Role: s.Role(), Width: w, Height: h, Range: s.VisibleRange()}
		for _, id := range s.SeriesIDs() {
			series, ok := s.Series(id)
			if !ok {
				continue
			}
			out := SeriesOut{ID: id, Kind: series.Kind(), Visible: series.Visible()}
			if series.Kind() == surface.KindCandlestick {
				out.Candles = series.Candles()
			} else {
				out.Points = series.Points()
			}
			pane.Series = append(pane.Series, out)
		}
		panes = append(panes, pane)
	}
	return panes
}

func parseLoad(msg ClientMsg) (chart.Request, error) {
	req := chart.Request{Symbol: msg.Symbol}
	if msg.Symbol == "" {
		return req, errors.New("symbol is required")
	}
	tf, err := model.ParseTimeframe(msg.Timeframe)
	if msg.Timeframe == "" {
		tf, err = model.TF1Y, nil
	}
	if err != nil {
		return req, err
	}
	ct, err := model.ParseChartType(msg.ChartType)
	if err != nil {
		return req, err
	}
	req.Timeframe, req.ChartType = tf, ct
	if tf == model.TFCustom {
		req.From, req.To = time.Unix(msg.From, 0), time.Unix(msg.To, 0)
	}
	return req, nil
}

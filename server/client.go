package server

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teranos/vidmask/errors"
	"github.com/teranos/vidmask/frame"
	"github.com/teranos/vidmask/logger"
	"github.com/teranos/vidmask/segment"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// A base64 1080p BGRA frame is about 11MB
	maxMessageSize = 32 * 1024 * 1024

	// Largest accepted frame edge
	maxFrameEdge = 8192

	sendBuffer = 16
)

// client is one websocket connection and the engine it drives. The engine
// is only touched from readPump.
type client struct {
	server    *Server
	conn      *websocket.Conn
	id        string
	sendMsg   chan interface{}
	closeOnce sync.Once

	engine   *segment.Engine
	maskType segment.MaskType
	frames   int
}

func newClient(s *Server, conn *websocket.Conn, id string) *client {
	return &client{
		server:  s,
		conn:    conn,
		id:      id,
		sendMsg: make(chan interface{}, sendBuffer),
	}
}

func (c *client) readPump() {
	defer func() {
		c.closeEngine()
		c.server.unregister(c)
		c.close()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.handleReadError(err)
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.server.log.Warnw("JSON unmarshal error", "client_id", c.id, logger.FieldError, err)
			c.send(ErrorReply{Type: TypeFrameError, Error: "malformed message"})
			continue
		}
		c.routeMessage(&msg)
	}
}

// handleReadError logs unexpected closes. Normal disconnects are silent.
func (c *client) handleReadError(err error) {
	if websocket.IsUnexpectedCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseNoStatusReceived,
	) {
		c.server.log.Warnw("WebSocket read error", "client_id", c.id, logger.FieldError, err)
	}
}

func (c *client) routeMessage(msg *ClientMessage) {
	switch msg.Type {
	case TypeInit:
		c.handleInit(msg)
	case TypeFrame:
		c.handleFrame(msg)
	case TypeSetModes:
		c.handleSetModes(msg)
	case TypeStats:
		c.handleStats()
	case TypePing:
		// deadline already extended
	default:
		c.server.log.Debugw("Unknown message type", "type", msg.Type, "client_id", c.id)
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.server.ctx.Done():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return

		case msg, ok := <-c.sendMsg:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				c.server.log.Debugw("Message write error", "client_id", c.id, logger.FieldError, err)
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

// send queues msg for writePump. A full queue drops the message; masks are
// superseded by the next frame anyway.
func (c *client) send(msg interface{}) {
	select {
	case c.sendMsg <- msg:
	default:
		c.server.log.Warnw("Send buffer full, dropping message", "client_id", c.id)
	}
}

// close closes the send channel exactly once
func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.sendMsg)
	})
}

func (c *client) closeEngine() {
	if c.engine == nil {
		return
	}
	if err := c.engine.Close(); err != nil {
		c.server.log.Warnw("Engine close failed", "client_id", c.id, logger.FieldError, err)
	}
	c.engine = nil
}

// settings merges msg over the server defaults
func (c *client) settings(msg *ClientMessage) (EngineSettings, error) {
	s := c.server.cfg.Defaults
	var err error
	if msg.Pipeline != "" {
		if s.Pipeline, err = segment.ParsePipeline(msg.Pipeline); err != nil {
			return s, err
		}
	}
	if msg.MaskType != "" {
		if s.MaskType, err = segment.ParseMaskType(msg.MaskType); err != nil {
			return s, err
		}
	}
	if msg.SegmentationMode != "" {
		if s.SegmentationMode, err = segment.ParseSegmentationMode(msg.SegmentationMode); err != nil {
			return s, err
		}
	}
	if msg.BlurMode != "" {
		if s.BlurMode, err = segment.ParseBlurMode(msg.BlurMode); err != nil {
			return s, err
		}
	}
	return s, nil
}

// handleInit replaces the client's engine
func (c *client) handleInit(msg *ClientMessage) {
	s, err := c.settings(msg)
	if err != nil {
		c.send(ErrorReply{Type: TypeInitError, Error: err.Error()})
		return
	}
	if s.Pipeline.Accelerated() {
		c.send(ErrorReply{
			Type:  TypeInitError,
			Error: fmt.Sprintf("%s takes GPU textures and cannot segment uploaded frames", s.Pipeline),
		})
		return
	}

	c.closeEngine()
	c.frames = 0
	engine := c.server.newEngine(s)
	if engine == nil || !engine.Initialized() {
		if engine != nil {
			engine.Close()
		}
		c.send(ErrorReply{Type: TypeInitError, Error: "engine failed to initialize"})
		return
	}
	c.engine = engine
	c.maskType = s.MaskType

	w, h := engine.CurrentModelSize()
	c.server.log.Infow("Engine started",
		"client_id", c.id,
		logger.FieldPipeline, s.Pipeline.String(),
		"session_id", engine.SessionID())
	c.send(InitSuccess{
		Type:        TypeInitSuccess,
		SessionID:   engine.SessionID(),
		Pipeline:    s.Pipeline.String(),
		MaskType:    s.MaskType.String(),
		ModelWidth:  w,
		ModelHeight: h,
	})
}

// validateFrame rejects anything SegmentFrame would treat as a contract
// violation
func validateFrame(msg *ClientMessage) (frame.PixelFormat, error) {
	if msg.Width <= 0 || msg.Height <= 0 || msg.Width > maxFrameEdge || msg.Height > maxFrameEdge {
		return 0, errors.NewInvalidRequestError("frame size %dx%d out of range", msg.Width, msg.Height)
	}
	format, err := frame.ParsePixelFormat(msg.Format)
	if err != nil {
		return 0, err
	}
	if need := frame.ExpectedSize(msg.Width, msg.Height, format); len(msg.FrameData) < need {
		return 0, errors.NewInvalidRequestError("frame data holds %d bytes, %dx%d %s needs %d",
			len(msg.FrameData), msg.Width, msg.Height, format, need)
	}
	return format, nil
}

func (c *client) handleFrame(msg *ClientMessage) {
	if c.engine == nil {
		c.send(ErrorReply{Type: TypeFrameError, Error: "send segment_init first"})
		return
	}
	format, err := validateFrame(msg)
	if err != nil {
		c.send(ErrorReply{Type: TypeFrameError, Error: err.Error()})
		return
	}

	c.frames++
	timer := segment.StartFrameTimer(c.engine, nil)
	c.engine.SegmentFrame(msg.FrameData, msg.Width, msg.Height, format, c.engine.Snapshot().SegmentationMode, c.maskType)
	d := timer.Stop()

	reply := MaskReply{
		Type:       TypeMask,
		Frame:      c.frames,
		Width:      msg.Width,
		Height:     msg.Height,
		DurationUS: d.Microseconds(),
	}
	if c.engine.HasNewMask() {
		reply.New = true
		reply.Mask = c.maskBytes()
		c.engine.CleanNewMaskFlag()
	}
	c.send(reply)
}

// maskBytes copies the newest mask as one byte per pixel
func (c *client) maskBytes() []byte {
	if c.maskType == segment.MaskFloat32 {
		return quantize(c.engine.Float32Mask())
	}
	return append([]byte(nil), c.engine.Uint8Mask()...)
}

func quantize(mask []float32) []byte {
	out := make([]byte, len(mask))
	for i, v := range mask {
		switch {
		case v <= 0:
			out[i] = 0
		case v >= 1:
			out[i] = 255
		default:
			out[i] = uint8(v*255 + 0.5)
		}
	}
	return out
}

func (c *client) handleSetModes(msg *ClientMessage) {
	if c.engine == nil {
		c.send(ErrorReply{Type: TypeFrameError, Error: "send segment_init first"})
		return
	}
	if msg.SegmentationMode != "" {
		mode, err := segment.ParseSegmentationMode(msg.SegmentationMode)
		if err != nil {
			c.send(ErrorReply{Type: TypeFrameError, Error: err.Error()})
			return
		}
		c.engine.SetSegmentationMode(mode)
	}
	if msg.BlurMode != "" {
		blur, err := segment.ParseBlurMode(msg.BlurMode)
		if err != nil {
			c.send(ErrorReply{Type: TypeFrameError, Error: err.Error()})
			return
		}
		c.engine.SetBlurMode(blur)
	}
	snap := c.engine.Snapshot()
	c.send(ModesReply{
		Type:             TypeModesUpdated,
		SegmentationMode: snap.SegmentationMode.String(),
		BlurMode:         snap.BlurMode.String(),
	})
}

func (c *client) handleStats() {
	if c.engine == nil {
		c.send(StatsReply{Type: TypeStatsReply})
		return
	}
	st := c.engine.Stats()
	c.send(StatsReply{
		Type:   TypeStatsReply,
		Count:  st.Count,
		MeanUS: st.Mean().Microseconds(),
		MaxUS:  st.Max.Microseconds(),
	})
}

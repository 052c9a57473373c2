package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/vidmask/errors"
	"github.com/teranos/vidmask/frame"
	"github.com/teranos/vidmask/infer"
	vmtest "github.com/teranos/vidmask/internal/testing"
	"github.com/teranos/vidmask/resolve"
	"github.com/teranos/vidmask/segment"
)

const tuningPath = "/res/tuning_generic.json"

// fakeFactory builds engines on a fake runtime whose masks carry the frame number
func fakeFactory(t *testing.T) EngineFactory {
	t.Helper()
	fs := afero.NewMemMapFs()
	vmtest.WriteTuningFile(t, fs, tuningPath, `{}`)
	return func(s EngineSettings) *segment.Engine {
		rt := vmtest.NewFakeRuntime()
		return segment.New(s.Pipeline,
			segment.WithFs(fs),
			segment.WithResolver(resolve.Static(resolve.Paths{TuningFile: tuningPath, ModelDir: "/res/models"})),
			segment.WithRuntimeFactory(func() (infer.Runtime, error) { return rt, nil }),
			segment.WithModes(s.SegmentationMode, s.BlurMode),
		)
	}
}

func defaultConfig() Config {
	return Config{
		AllowedOrigins: []string{"http://localhost"},
		MaxClients:     2,
		Defaults: EngineSettings{
			Pipeline:         segment.PipelinePortableCPU,
			MaskType:         segment.MaskUint8,
			SegmentationMode: segment.ModeSilhouette,
		},
	}
}

func startServer(t *testing.T, cfg Config, factory EngineFactory) (*Server, *httptest.Server) {
	t.Helper()
	s := New(cfg, factory, nil)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		s.Close()
	})
	return s, ts
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func exchange(t *testing.T, conn *websocket.Conn, msg ClientMessage, reply interface{}) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(msg))
	read(t, conn, reply)
}

func read(t *testing.T, conn *websocket.Conn, reply interface{}) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.ReadJSON(reply))
}

func frameMsg(w, h int, format frame.PixelFormat) ClientMessage {
	return ClientMessage{
		Type:      TypeFrame,
		Width:     w,
		Height:    h,
		Format:    format.String(),
		FrameData: frame.Disc(w, h, w/2, h/2, h/4, format),
	}
}

func TestInitAndSegment(t *testing.T) {
	_, ts := startServer(t, defaultConfig(), fakeFactory(t))
	conn := dial(t, ts)

	var init InitSuccess
	exchange(t, conn, ClientMessage{Type: TypeInit}, &init)
	assert.Equal(t, TypeInitSuccess, init.Type)
	assert.Equal(t, "portable-cpu", init.Pipeline)
	assert.Equal(t, "uint8", init.MaskType)
	assert.NotEmpty(t, init.SessionID)

	for i := 1; i <= 2; i++ {
		var mask MaskReply
		exchange(t, conn, frameMsg(32, 18, frame.FormatBGRA), &mask)
		require.Equal(t, TypeMask, mask.Type)
		assert.Equal(t, i, mask.Frame)
		assert.True(t, mask.New)
		require.Len(t, mask.Mask, 32*18)
		assert.Equal(t, byte(i), mask.Mask[0], "fake runtime writes the frame number")
	}

	var stats StatsReply
	exchange(t, conn, ClientMessage{Type: TypeStats}, &stats)
	assert.Equal(t, 2, stats.Count)
}

func TestFloatMasksAreQuantized(t *testing.T) {
	_, ts := startServer(t, defaultConfig(), fakeFactory(t))
	conn := dial(t, ts)

	var init InitSuccess
	exchange(t, conn, ClientMessage{Type: TypeInit, MaskType: "float32"}, &init)
	require.Equal(t, TypeInitSuccess, init.Type)

	var mask MaskReply
	exchange(t, conn, frameMsg(16, 16, frame.FormatI420A), &mask)
	require.True(t, mask.New)
	require.Len(t, mask.Mask, 256)
	assert.Equal(t, byte(1), mask.Mask[0])
}

func TestModeNoneProducesNoMask(t *testing.T) {
	_, ts := startServer(t, defaultConfig(), fakeFactory(t))
	conn := dial(t, ts)

	var init InitSuccess
	exchange(t, conn, ClientMessage{Type: TypeInit}, &init)

	var modes ModesReply
	exchange(t, conn, ClientMessage{Type: TypeSetModes, SegmentationMode: "none", BlurMode: "light"}, &modes)
	assert.Equal(t, "none", modes.SegmentationMode)
	assert.Equal(t, "light", modes.BlurMode)

	var mask MaskReply
	exchange(t, conn, frameMsg(32, 18, frame.FormatBGRA), &mask)
	assert.False(t, mask.New)
	assert.Empty(t, mask.Mask)
}

func TestFrameBeforeInit(t *testing.T) {
	_, ts := startServer(t, defaultConfig(), fakeFactory(t))
	conn := dial(t, ts)

	var reply ErrorReply
	exchange(t, conn, frameMsg(8, 8, frame.FormatBGRA), &reply)
	assert.Equal(t, TypeFrameError, reply.Type)
	assert.Contains(t, reply.Error, "segment_init")
}

func TestInvalidFramesAreRejected(t *testing.T) {
	_, ts := startServer(t, defaultConfig(), fakeFactory(t))
	conn := dial(t, ts)

	var init InitSuccess
	exchange(t, conn, ClientMessage{Type: TypeInit}, &init)

	short := frameMsg(32, 18, frame.FormatBGRA)
	short.FrameData = short.FrameData[:10]

	cases := []struct {
		name string
		msg  ClientMessage
		want string
	}{
		{"zero width", ClientMessage{Type: TypeFrame, Width: 0, Height: 4, Format: "bgra"}, "out of range"},
		{"huge", ClientMessage{Type: TypeFrame, Width: maxFrameEdge + 1, Height: 4, Format: "bgra"}, "out of range"},
		{"bad format", ClientMessage{Type: TypeFrame, Width: 4, Height: 4, Format: "nv12"}, "nv12"},
		{"short buffer", short, "needs"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var reply ErrorReply
			exchange(t, conn, tc.msg, &reply)
			assert.Equal(t, TypeFrameError, reply.Type)
			assert.Contains(t, reply.Error, tc.want)
		})
	}

	// The connection survives and still segments.
	var mask MaskReply
	exchange(t, conn, frameMsg(32, 18, frame.FormatBGRA), &mask)
	assert.True(t, mask.New)
}

func TestInitErrors(t *testing.T) {
	_, ts := startServer(t, defaultConfig(), fakeFactory(t))
	conn := dial(t, ts)

	var reply ErrorReply
	exchange(t, conn, ClientMessage{Type: TypeInit, Pipeline: "accelerated-windows"}, &reply)
	assert.Equal(t, TypeInitError, reply.Type)
	assert.Contains(t, reply.Error, "GPU textures")

	exchange(t, conn, ClientMessage{Type: TypeInit, Pipeline: "bogus"}, &reply)
	assert.Equal(t, TypeInitError, reply.Type)
	assert.Contains(t, reply.Error, "bogus")
}

func TestInitFailure(t *testing.T) {
	failing := func(s EngineSettings) *segment.Engine {
		rt := vmtest.NewFakeRuntime()
		rt.ConfigureErr = errors.New("bad tuning file")
		return segment.New(s.Pipeline,
			segment.WithFs(afero.NewMemMapFs()),
			segment.WithResolver(resolve.Static(resolve.Paths{TuningFile: tuningPath})),
			segment.WithRuntimeFactory(func() (infer.Runtime, error) { return rt, nil }),
		)
	}
	_, ts := startServer(t, defaultConfig(), failing)
	conn := dial(t, ts)

	var reply ErrorReply
	exchange(t, conn, ClientMessage{Type: TypeInit}, &reply)
	assert.Equal(t, TypeInitError, reply.Type)
	assert.Contains(t, reply.Error, "initialize")
}

func TestMalformedMessage(t *testing.T) {
	_, ts := startServer(t, defaultConfig(), fakeFactory(t))
	conn := dial(t, ts)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	var reply ErrorReply
	read(t, conn, &reply)
	assert.Equal(t, "malformed message", reply.Error)
}

func TestOriginCheck(t *testing.T) {
	_, ts := startServer(t, defaultConfig(), fakeFactory(t))

	header := http.Header{"Origin": []string{"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts), header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header = http.Header{"Origin": []string{"http://localhost:5173"}}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts), header)
	require.NoError(t, err)
	conn.Close()
}

func TestMaxClients(t *testing.T) {
	s, ts := startServer(t, defaultConfig(), fakeFactory(t))
	dial(t, ts)
	dial(t, ts)
	require.Eventually(t, func() bool { return s.ClientCount() == 2 }, 2*time.Second, 10*time.Millisecond)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestPendingUpgradesHoldSlots(t *testing.T) {
	s := New(defaultConfig(), fakeFactory(t), nil)
	defer s.Close()

	require.NoError(t, s.reserve())
	require.NoError(t, s.reserve())
	assert.ErrorIs(t, s.reserve(), errTooManyClients)
	assert.Equal(t, 0, s.ClientCount())

	s.release()
	require.NoError(t, s.reserve())
	s.release()
	s.release()
}

func TestConcurrentDialsRespectMaxClients(t *testing.T) {
	s, ts := startServer(t, defaultConfig(), fakeFactory(t))

	const dialers = 8
	results := make(chan *websocket.Conn, dialers)
	for i := 0; i < dialers; i++ {
		go func() {
			conn, resp, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
			if resp != nil && resp.Body != nil {
				resp.Body.Close()
			}
			if err != nil {
				conn = nil
			}
			results <- conn
		}()
	}

	accepted := 0
	for i := 0; i < dialers; i++ {
		if conn := <-results; conn != nil {
			accepted++
			defer conn.Close()
		}
	}
	assert.Equal(t, 2, accepted)
	assert.LessOrEqual(t, s.ClientCount(), 2)
}

func TestRejectsAfterClose(t *testing.T) {
	s := New(defaultConfig(), fakeFactory(t), nil)
	s.Close()

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), errShuttingDown.Error())
	assert.ErrorIs(t, s.reserve(), errShuttingDown)
}

func TestDisconnectUnregisters(t *testing.T) {
	s, ts := startServer(t, defaultConfig(), fakeFactory(t))
	conn := dial(t, ts)

	var init InitSuccess
	exchange(t, conn, ClientMessage{Type: TypeInit}, &init)
	require.Equal(t, 1, s.ClientCount())

	conn.Close()
	assert.Eventually(t, func() bool { return s.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHealth(t *testing.T) {
	_, ts := startServer(t, defaultConfig(), fakeFactory(t))

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(0), body["clients"])
}

func TestListenAndServeShutdown(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	s := New(defaultConfig(), fakeFactory(t), nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx, addr) }()

	var conn *websocket.Conn
	require.Eventually(t, func() bool {
		c, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws", nil)
		if err != nil {
			return false
		}
		conn = c
		return true
	}, 2*time.Second, 20*time.Millisecond)
	defer conn.Close()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("ListenAndServe did not return")
	}
	assert.Equal(t, 0, s.ClientCount())
}

func TestQuantize(t *testing.T) {
	assert.Equal(t, []byte{0, 0, 128, 255, 255}, quantize([]float32{-1, 0, 0.5, 1, 2}))
}

package server

// Message types exchanged over the websocket. Clients send ClientMessage;
// the server answers with one of the typed replies below.
const (
	TypeInit     = "segment_init"
	TypeFrame    = "segment_frame"
	TypeSetModes = "set_modes"
	TypeStats    = "stats"
	TypePing     = "ping"

	TypeInitSuccess  = "segment_init_success"
	TypeInitError    = "segment_init_error"
	TypeMask         = "segment_mask"
	TypeFrameError   = "segment_frame_error"
	TypeModesUpdated = "modes_updated"
	TypeStatsReply   = "stats_reply"
)

// ClientMessage is any message a client sends. Fields not used by Type are
// ignored.
type ClientMessage struct {
	Type string `json:"type"`

	// segment_init and set_modes
	Pipeline         string `json:"pipeline,omitempty"`
	MaskType         string `json:"mask_type,omitempty"`
	SegmentationMode string `json:"segmentation_mode,omitempty"`
	BlurMode         string `json:"blur_mode,omitempty"`

	// segment_frame
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
	Format    string `json:"format,omitempty"`
	FrameData []byte `json:"frame_data,omitempty"` // base64 in JSON
}

// InitSuccess reports a started engine
type InitSuccess struct {
	Type        string `json:"type"`
	SessionID   string `json:"session_id"`
	Pipeline    string `json:"pipeline"`
	MaskType    string `json:"mask_type"`
	ModelWidth  int    `json:"model_width"`
	ModelHeight int    `json:"model_height"`
}

// MaskReply answers one segment_frame. Mask is set only when New is true,
// as one byte per pixel (float masks are quantized).
type MaskReply struct {
	Type       string `json:"type"`
	Frame      int    `json:"frame"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	New        bool   `json:"new"`
	Mask       []byte `json:"mask,omitempty"`
	DurationUS int64  `json:"duration_us"`
}

// ModesReply echoes the modes now in effect
type ModesReply struct {
	Type             string `json:"type"`
	SegmentationMode string `json:"segmentation_mode"`
	BlurMode         string `json:"blur_mode"`
}

// StatsReply reports recorded frame durations
type StatsReply struct {
	Type   string `json:"type"`
	Count  int    `json:"count"`
	MeanUS int64  `json:"mean_us"`
	MaxUS  int64  `json:"max_us"`
}

// ErrorReply carries a failure for the request named by Type
type ErrorReply struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

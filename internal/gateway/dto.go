package gateway

import (
	"chartdesk/internal/chart"
	"chartdesk/internal/crosshair"
	"chartdesk/internal/model"
	"chartdesk/internal/surface"
)

// Client message types.
const (
	MsgMount      = "mount"
	MsgLoad       = "load"
	MsgPrefs      = "prefs"
	MsgVisibility = "visibility"
	MsgRange      = "range"
	MsgHover      = "hover"
	MsgResize     = "resize"
	MsgFullscreen = "fullscreen"
	MsgResetZoom  = "reset_zoom"
	MsgExport     = "export"
	MsgPing       = "ping"
)

// ClientMsg is any message a browser sends. Only the fields of its Type are set.
type ClientMsg struct {
	Type  string `json:"type"`
	ReqID string `json:"req_id,omitempty"`

	// mount, load
	Symbol    string `json:"symbol,omitempty"`
	Timeframe string `json:"timeframe,omitempty"`
	ChartType string `json:"chart_type,omitempty"`

	// load (CUSTOM timeframe) and range, unix seconds
	From int64 `json:"from,omitempty"`
	To   int64 `json:"to,omitempty"`

	Prefs *model.ChartPreferences `json:"prefs,omitempty"`

	// visibility
	ID      string `json:"id,omitempty"`
	Visible *bool  `json:"visible,omitempty"`

	// hover; null clears the crosshair
	Time *int64 `json:"time,omitempty"`

	// resize
	Width  int `json:"width,omitempty"`
	Height int `json:"height,omitempty"`
}

// SeriesOut is one drawable series in a state snapshot.
type SeriesOut struct {
	ID      string         `json:"id"`
	Kind    surface.Kind   `json:"kind"`
	Visible bool           `json:"visible"`
	Points  model.Series   `json:"points,omitempty"`
	Candles []model.Candle `json:"candles,omitempty"`
}

// PaneOut is one surface in a state snapshot.
type PaneOut struct {
	Role   surface.Role  `json:"role"`
	Width  int           `json:"width"`
	Height int           `json:"height"`
	Range  surface.Range `json:"range"`
	Series []SeriesOut   `json:"series"`
}

// StateMsg is pushed on every lifecycle transition and after preference
// changes. Panes are set only when the chart is ready.
type StateMsg struct {
	Type      string                  `json:"type"`
	State     chart.State             `json:"state"`
	Error     string                  `json:"error,omitempty"`
	Symbol    string                  `json:"symbol,omitempty"`
	Timeframe model.Timeframe         `json:"timeframe,omitempty"`
	Prefs     *model.ChartPreferences `json:"prefs,omitempty"`
	Panes     []PaneOut               `json:"panes,omitempty"`
}

// RangeMsg is pushed when the primary pane's visible range changes.
type RangeMsg struct {
	Type string `json:"type"`
	From int64  `json:"from"`
	To   int64  `json:"to"`
}

// TooltipMsg carries the crosshair readout; a null tooltip clears it.
type TooltipMsg struct {
	Type    string             `json:"type"`
	Tooltip *crosshair.Tooltip `json:"tooltip"`
}

// VisibilityMsg acknowledges a visibility toggle. Series is the number of
// live series affected.
type VisibilityMsg struct {
	Type    string `json:"type"`
	ReqID   string `json:"req_id,omitempty"`
	ID      string `json:"id"`
	Visible bool   `json:"visible"`
	Series  int    `json:"series"`
}

// FullscreenMsg reports the new fullscreen mode.
type FullscreenMsg struct {
	Type string `json:"type"`
	On   bool   `json:"on"`
}

// ExportMsg carries a PNG snapshot, base64 encoded by encoding/json.
type ExportMsg struct {
	Type  string `json:"type"`
	ReqID string `json:"req_id,omitempty"`
	Name  string `json:"name"`
	PNG   []byte `json:"png"`
}

// ErrorResponse reports a rejected client message.
type ErrorResponse struct {
	Type  string `json:"type"`
	ReqID string `json:"req_id,omitempty"`
	Error string `json:"error"`
}

// PeriodsOut is the /api/periods payload.
type PeriodsOut struct {
	Timeframe model.Timeframe `json:"timeframe"`
	Periods   []int           `json:"periods"`
}

package model

import (
	"encoding/json"
	"strconv"
)

// AlertType identifies what condition produced a notification.
type AlertType string

const (
	AlertTrailBullFlip AlertType = "trail_bull_flip"
	AlertTrailBearFlip AlertType = "trail_bear_flip"
	AlertSTBullFlip    AlertType = "supertrend_bull_flip"
	AlertSTBearFlip    AlertType = "supertrend_bear_flip"
	AlertRSIOverbought AlertType = "rsi_overbought"
	AlertRSIOversold   AlertType = "rsi_oversold"
	AlertChannelBuy    AlertType = "channel_buy"
	AlertChannelSell   AlertType = "channel_sell"
	AlertChannelSLHit  AlertType = "channel_sl_hit"
	AlertOISurge       AlertType = "oi_surge"
)

// Notification is one alert produced by the evaluator, consumed by the
// per-timeframe queue and the persistent log.
type Notification struct {
	ID        string    `json:"id"`
	Symbol    string    `json:"symbol"`
	Timeframe string    `json:"timeframe"`
	Type      AlertType `json:"type"`
	Price     float64   `json:"price"`
	Body      string    `json:"body"`
	Timestamp int64     `json:"timestamp"` // epoch ms, wall clock at creation
	Read      bool      `json:"read"`
}

// NewNotificationID builds a stable id from the identifying fields.
func NewNotificationID(symbol, timeframe string, typ AlertType, ts int64) string {
	return symbol + "-" + timeframe + "-" + string(typ) + "-" + strconv.FormatInt(ts, 10)
}

// JSON returns the JSON-encoded notification.
func (n *Notification) JSON() []byte {
	b, _ := json.Marshal(n)
	return b
}

// NotificationFromJSON decodes one persisted log entry.
func NotificationFromJSON(data []byte) (Notification, error) {
	var n Notification
	err := json.Unmarshal(data, &n)
	return n, err
}

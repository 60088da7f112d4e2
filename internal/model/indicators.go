package model

import "encoding/json"

// Bias is the binary trend state of the statistical trailing stop.
type Bias int

const (
	BiasBearish Bias = -1
	BiasNeutral Bias = 0
	BiasBullish Bias = 1
)

func (b Bias) String() string {
	switch b {
	case BiasBearish:
		return "BEARISH"
	case BiasBullish:
		return "BULLISH"
	default:
		return "NEUTRAL"
	}
}

// TrailPoint is one output bar of the statistical trailing stop.
// Warm-up bars carry BiasNeutral and Level=0.
type TrailPoint struct {
	Time  int64   `json:"time"`
	Bias  Bias    `json:"bias"`
	Level float64 `json:"level"`
	Close float64 `json:"close"` // close of the source candle, for alert price reporting
}

// SupertrendPoint is one output bar of the Supertrend indicator.
// Only the band matching the active trend is valid; the other is unset.
type SupertrendPoint struct {
	Time    int64   `json:"time"`
	Trend   int     `json:"trend"` // +1 or -1, 0 during warm-up
	Up      float64 `json:"up,omitempty"`
	Dn      float64 `json:"dn,omitempty"`
	UpValid bool    `json:"upValid"`
	DnValid bool    `json:"dnValid"`
	Close   float64 `json:"close"`
}

// ProfileBucket is one price bucket of a volume profile.
type ProfileBucket struct {
	Price      float64 `json:"price"` // bucket midpoint
	Volume     float64 `json:"volume"`
	BuyVolume  float64 `json:"buyVolume"`
	SellVolume float64 `json:"sellVolume"`
}

// VolumeProfileData holds the computed profile plus its landmarks.
// POC is the bucket with maximum volume; VAH/VAL bound the smallest
// contiguous bucket range around POC holding >= 70% of total volume.
type VolumeProfileData struct {
	Profile   []ProfileBucket `json:"profile"`
	POC       float64         `json:"poc"`
	VAH       float64         `json:"vah"`
	VAL       float64         `json:"val"`
	MaxVolume float64         `json:"maxVolume"`
	MinPrice  float64         `json:"minPrice"`
	MaxPrice  float64         `json:"maxPrice"`
}

// ChannelSignalType enumerates the high/low channel state machine outputs.
type ChannelSignalType string

const (
	ChannelBuy   ChannelSignalType = "BUY"
	ChannelSell  ChannelSignalType = "SELL"
	ChannelSLHit ChannelSignalType = "SL_HIT"
)

// ChannelSignal is one emitted signal of the high/low channel algo.
type ChannelSignal struct {
	Time    int64             `json:"time"`
	Type    ChannelSignalType `json:"type"`
	Price   float64           `json:"price"`
	SLLevel float64           `json:"slLevel,omitempty"` // armed stop level after a BUY
}

// SymbolSnapshot is the per-(symbol,timeframe) result of one fetch+compute
// pass: every indicator series the alert evaluator and display consume.
type SymbolSnapshot struct {
	Symbol    string `json:"symbol"`
	Timeframe string `json:"timeframe"`
	FetchedAt int64  `json:"fetchedAt"` // epoch ms

	LastPrice float64 `json:"lastPrice"`
	LastTime  int64   `json:"lastTime"` // time of the newest candle

	Trail        []TrailPoint       `json:"trail,omitempty"`
	Supertrend   []SupertrendPoint  `json:"supertrend,omitempty"`
	RSI          []IndicatorPoint   `json:"rsi,omitempty"`
	StochK       []IndicatorPoint   `json:"stochK,omitempty"`
	StochD       []IndicatorPoint   `json:"stochD,omitempty"`
	VWAP         []IndicatorPoint   `json:"vwap,omitempty"`
	AnchoredVWAP []IndicatorPoint   `json:"anchoredVwap,omitempty"`
	CVD          []IndicatorPoint   `json:"cvd,omitempty"`
	Profile      *VolumeProfileData `json:"profile,omitempty"`
	Signals      []ChannelSignal    `json:"signals,omitempty"`

	// OIChangePct maps a lookback label ("1h", "4h", "8h") to the percent
	// change of open interest over that window. Absent when the OI source
	// has too little history.
	OIChangePct map[string]float64 `json:"oiChangePct,omitempty"`
}

// Key returns "symbol:timeframe".
func (s *SymbolSnapshot) Key() string {
	return s.Symbol + ":" + s.Timeframe
}

// JSON returns the JSON-encoded snapshot.
func (s *SymbolSnapshot) JSON() []byte {
	b, _ := json.Marshal(s)
	return b
}

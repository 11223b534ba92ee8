package domain

import "time"

// ImpactLevel ranks how disruptive a macro event is expected to be.
type ImpactLevel string

const (
	ImpactHigh   ImpactLevel = "high"
	ImpactMedium ImpactLevel = "medium"
	ImpactLow    ImpactLevel = "low"
)

// MacroEvent is a scheduled macro-economic release or announcement.
type MacroEvent struct {
	Name   string
	Time   time.Time
	Impact ImpactLevel
}

// FundingTrend classifies the recent trajectory of a coin's funding rate.
type FundingTrend string

const (
	FundingIncreasing FundingTrend = "increasing"
	FundingDecreasing FundingTrend = "decreasing"
	FundingStable     FundingTrend = "stable"
)

// TechnicalIndicators holds the derived indicator set for one coin,
// computed only once at least 50 candles are present (spec.md §4.4).
type TechnicalIndicators struct {
	RSI           float64
	MACD          float64
	MACDSignal    float64
	MACDHistogram float64
	BBUpper       float64
	BBMiddle      float64
	BBLower       float64
	BBPosition    float64 // [0,1]
	SMA20         float64
	SMA50         float64
	EMA12         float64
	EMA26         float64
	ADX           float64
}

// LiquidityRegime classifies book depth for the largest position.
type LiquidityRegime string

const (
	LiquidityHigh   LiquidityRegime = "high"
	LiquidityMedium LiquidityRegime = "medium"
	LiquidityLow    LiquidityRegime = "low"
)

// WhaleFlow is 24h on-chain whale activity for one coin.
type WhaleFlow struct {
	Inflow  float64
	Outflow float64
	Net     float64
	TxCount int
}

// FastBundle targets a collection time of <= 1s: order-book microstructure.
type FastBundle struct {
	SpreadsBps          map[string]float64
	OrderBookDepth      map[string]float64
	SlippageEstimateBps map[string]float64
	ShortTermVolatility map[string]float64
	MicroPnL            map[string]float64
	APILatencyMs        float64
	Metadata            SignalQualityMetadata
}

// MediumBundle targets a collection time of <= 5s: technical/derivatives
// state derived from candles, funding history and open interest.
type MediumBundle struct {
	RealizedVol1h        map[string]float64
	RealizedVol24h       map[string]float64
	TrendScore           map[string]float64 // [-1,+1]
	FundingBasis         map[string]float64
	FundingRateTrend     map[string]FundingTrend
	OpenInterestChange24h map[string]float64
	OIToVolumeRatio      map[string]float64
	TechnicalIndicators  map[string]TechnicalIndicators
	Metadata             SignalQualityMetadata
}

// SlowBundle targets a collection time of <= 15s: macro/cross-asset context.
type SlowBundle struct {
	MacroEventsUpcoming   []MacroEvent
	CrossAssetRiskOnScore float64 // [-1,+1]
	VenueHealthScore      float64 // [0,1]
	LiquidityRegime       LiquidityRegime
	BTCEthCorrelation     float64
	BTCSpxCorrelation     *float64
	FearGreedIndex        float64
	TokenUnlocks7d        map[string]float64
	WhaleFlow24h          map[string]WhaleFlow
	Metadata              SignalQualityMetadata
}

// RegimeSignals is the deterministic feature record passed into Classify.
// It must be reproducible from an AccountState + signal bundle alone so
// tests can pin exact inputs (spec.md §4.5).
type RegimeSignals struct {
	RepresentativeAsset string
	ADX                 float64
	SMA20               float64
	SMA50               float64
	RealizedVol24h      float64
	WeightedFunding     float64
	AvgSpreadBps        float64
	AvgDepth            float64
	EventLock           bool
}

// ClassificationRecord is one entry in the regime detector's rolling
// history: a timestamped raw label with its confidence.
type ClassificationRecord struct {
	Timestamp  time.Time
	Regime     Regime
	Confidence float64
}

// Package sdk holds the JSON wire types for the Hyperliquid-shaped REST and
// websocket APIs the HTTPClient adapter translates into internal/exchange
// domain types. Keeping wire shapes separate from the adapter mirrors the
// teacher's clients/exchangerate split between a raw response struct and
// the translating Client method.
package sdk

// MetaResponse is the raw `meta` endpoint payload.
type MetaResponse struct {
	Universe []struct {
		Name         string `json:"name"`
		SzDecimals   int    `json:"szDecimals"`
		MaxLeverage  int    `json:"maxLeverage"`
		OnlyIsolated bool   `json:"onlyIsolated"`
	} `json:"universe"`
}

// SpotMetaResponse is the raw `spot_meta` endpoint payload.
type SpotMetaResponse struct {
	Tokens []struct {
		Name       string `json:"name"`
		SzDecimals int    `json:"szDecimals"`
		Index      int    `json:"index"`
	} `json:"tokens"`
	Universe []struct {
		Name       string `json:"name"`
		Tokens     [2]int `json:"tokens"`
		MarketName string `json:"marketName"`
	} `json:"universe"`
}

// L2BookResponse is the raw order-book snapshot payload.
type L2BookResponse struct {
	Coin   string       `json:"coin"`
	Time   int64        `json:"time"`
	Levels [2][]L2Level `json:"levels"` // [0]=bids, [1]=asks
}

// L2Level is one (price, size) entry as returned over the wire (strings,
// to preserve decimal precision across JSON).
type L2Level struct {
	Px string `json:"px"`
	Sz string `json:"sz"`
}

// CandleResponse is one OHLCV bar as returned by the candle snapshot
// endpoint.
type CandleResponse struct {
	T int64  `json:"t"`
	O string `json:"o"`
	H string `json:"h"`
	L string `json:"l"`
	C string `json:"c"`
	V string `json:"v"`
}

// FundingResponse is one historical funding observation.
type FundingResponse struct {
	Time     int64  `json:"time"`
	Coin     string `json:"coin"`
	FundingRate string `json:"fundingRate"`
	Premium  string `json:"premium"`
}

// OpenInterestResponse is the raw open-interest payload for one coin.
type OpenInterestResponse struct {
	Coin         string `json:"coin"`
	OpenInterest string `json:"openInterest"`
	Time         int64  `json:"time"`
}

// OrderRequest is the raw order placement payload.
type OrderRequest struct {
	Coin       string `json:"coin"`
	IsBuy      bool   `json:"isBuy"`
	Sz         string `json:"sz"`
	LimitPx    string `json:"limitPx,omitempty"`
	ReduceOnly bool   `json:"reduceOnly"`
	PostOnly   bool   `json:"postOnly"`
}

// OrderResponse is the raw order placement result.
type OrderResponse struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
	Filled  string `json:"filled,omitempty"`
	Error   string `json:"error,omitempty"`
}

// AccountStateResponse is the raw account/clearinghouse-state payload.
type AccountStateResponse struct {
	MarginSummary struct {
		AccountValue    string `json:"accountValue"`
		TotalMarginUsed string `json:"totalMarginUsed"`
	} `json:"marginSummary"`
	Withdrawable      string `json:"withdrawable"`
	AssetPositions    []struct {
		Position struct {
			Coin         string `json:"coin"`
			Szi          string `json:"szi"`
			EntryPx      string `json:"entryPx"`
			Leverage     struct {
				Value int `json:"value"`
			} `json:"leverage"`
			LiquidationPx string `json:"liquidationPx"`
		} `json:"position"`
	} `json:"assetPositions"`
	SpotBalances []struct {
		Coin  string `json:"coin"`
		Total string `json:"total"`
	} `json:"balances"`
	Time int64 `json:"time"`
}

// WSSubscribeMessage is the subscribe envelope used on the order-book/trade
// websocket stream (gorilla/websocket).
type WSSubscribeMessage struct {
	Method       string `json:"method"`
	Subscription struct {
		Type string `json:"type"`
		Coin string `json:"coin"`
	} `json:"subscription"`
}

// WSUserEvent is one message on the user-event websocket stream
// (nhooyr.io/websocket), e.g. a fill or a funding payment notification.
type WSUserEvent struct {
	Channel string `json:"channel"`
	Data    struct {
		Coin string `json:"coin"`
		Type string `json:"type"`
	} `json:"data"`
}

package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	nhws "nhooyr.io/websocket"

	"github.com/aristath/aegis/internal/domain"
	"github.com/aristath/aegis/internal/errs"
	"github.com/aristath/aegis/internal/exchange/sdk"
)

// HTTPClient implements Client against a Hyperliquid-shaped REST API, with
// two separate websocket stacks mirroring the teacher's dual-stream split:
// gorilla/websocket drives the public order-book feed (reconnecting on
// drop; the books it receives are read and discarded, not cached),
// nhooyr.io/websocket drives the authenticated
// user-event feed (fills, funding payments).
type HTTPClient struct {
	baseURL    string
	accountID  string
	secretKey  string
	httpClient *http.Client
	log        zerolog.Logger

	bookStream *bookStream
}

// NewHTTPClient constructs a venue client bound to baseURL with the given
// credentials. The websocket streams are not started until StreamOrderBooks
// is called.
func NewHTTPClient(baseURL, accountID, secretKey string, log zerolog.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		accountID: accountID,
		secretKey: secretKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		log: log.With().Str("component", "exchange.http_client").Logger(),
	}
}

func (c *HTTPClient) post(ctx context.Context, path string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return errs.New(errs.KindValidation, "exchange.post", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return errs.New(errs.KindTransient, "exchange.post", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errs.New(errs.KindTransient, "exchange.post", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errs.New(errs.KindTransient, "exchange.post", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return errs.New(errs.KindRateLimit, "exchange.post", fmt.Errorf("rate limited: %s", respBody))
	}
	if resp.StatusCode >= 500 {
		return errs.New(errs.KindTransient, "exchange.post", fmt.Errorf("server error %d: %s", resp.StatusCode, respBody))
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return errs.New(errs.KindAuth, "exchange.post", fmt.Errorf("auth error %d: %s", resp.StatusCode, respBody))
	}
	if resp.StatusCode >= 400 {
		return errs.New(errs.KindValidation, "exchange.post", fmt.Errorf("client error %d: %s", resp.StatusCode, respBody))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return errs.New(errs.KindTransient, "exchange.post", fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func (c *HTTPClient) Meta(ctx context.Context) (Meta, error) {
	var raw sdk.MetaResponse
	if err := c.post(ctx, "/info", map[string]string{"type": "meta"}, &raw); err != nil {
		return Meta{}, err
	}
	perps := make([]PerpMarket, 0, len(raw.Universe))
	for _, u := range raw.Universe {
		perps = append(perps, PerpMarket{
			Base:         u.Name,
			MarketID:     u.Name + "-PERP",
			SizeDecimals: u.SzDecimals,
		})
	}
	return Meta{Perps: perps}, nil
}

func (c *HTTPClient) SpotMeta(ctx context.Context) (SpotMeta, error) {
	var raw sdk.SpotMetaResponse
	if err := c.post(ctx, "/info", map[string]string{"type": "spotMeta"}, &raw); err != nil {
		return SpotMeta{}, err
	}
	tokenName := make(map[int]string, len(raw.Tokens))
	tokenDecimals := make(map[int]int, len(raw.Tokens))
	for _, t := range raw.Tokens {
		tokenName[t.Index] = t.Name
		tokenDecimals[t.Index] = t.SzDecimals
	}
	markets := make([]SpotMarket, 0, len(raw.Universe))
	for _, u := range raw.Universe {
		base := tokenName[u.Tokens[0]]
		quote := tokenName[u.Tokens[1]]
		markets = append(markets, SpotMarket{
			Base:         base,
			Quote:        quote,
			MarketID:     u.MarketName,
			SizeDecimals: tokenDecimals[u.Tokens[0]],
		})
	}
	return SpotMeta{Markets: markets}, nil
}

func (c *HTTPClient) FetchOrderBook(ctx context.Context, coin string) (OrderBook, error) {
	var raw sdk.L2BookResponse
	if err := c.post(ctx, "/info", map[string]string{"type": "l2Book", "coin": coin}, &raw); err != nil {
		return OrderBook{}, err
	}
	book := OrderBook{
		Coin:      coin,
		Timestamp: time.UnixMilli(raw.Time),
	}
	if len(raw.Levels) == 2 {
		book.Bids = decodeLevels(raw.Levels[0])
		book.Asks = decodeLevels(raw.Levels[1])
	}
	return book, nil
}

func decodeLevels(levels []sdk.L2Level) []PriceLevel {
	out := make([]PriceLevel, 0, len(levels))
	for _, l := range levels {
		px, err := decimal.NewFromString(l.Px)
		if err != nil {
			continue
		}
		sz, err := decimal.NewFromString(l.Sz)
		if err != nil {
			continue
		}
		out = append(out, PriceLevel{Price: px, Size: sz})
	}
	return out
}

func (c *HTTPClient) FetchCandles(ctx context.Context, coin string, interval Interval, start, end time.Time) ([]Candle, error) {
	req := map[string]any{
		"type": "candleSnapshot",
		"req": map[string]any{
			"coin":      coin,
			"interval":  string(interval),
			"startTime": start.UnixMilli(),
			"endTime":   end.UnixMilli(),
		},
	}
	var raw []sdk.CandleResponse
	if err := c.post(ctx, "/info", req, &raw); err != nil {
		return nil, err
	}
	if len(raw) > MaxCandlesPerCall {
		raw = raw[len(raw)-MaxCandlesPerCall:]
	}
	candles := make([]Candle, 0, len(raw))
	for _, r := range raw {
		candles = append(candles, Candle{
			Open:      decimalOrZero(r.O),
			High:      decimalOrZero(r.H),
			Low:       decimalOrZero(r.L),
			Close:     decimalOrZero(r.C),
			Volume:    decimalOrZero(r.V),
			Timestamp: time.UnixMilli(r.T),
		})
	}
	return candles, nil
}

func (c *HTTPClient) FetchFundingHistory(ctx context.Context, coin string, start, end time.Time) ([]FundingPoint, error) {
	req := map[string]any{
		"type":      "fundingHistory",
		"coin":      coin,
		"startTime": start.UnixMilli(),
		"endTime":   end.UnixMilli(),
	}
	var raw []sdk.FundingResponse
	if err := c.post(ctx, "/info", req, &raw); err != nil {
		return nil, err
	}
	points := make([]FundingPoint, 0, len(raw))
	for _, r := range raw {
		points = append(points, FundingPoint{
			Rate:      decimalOrZero(r.FundingRate),
			Premium:   decimalOrZero(r.Premium),
			Timestamp: time.UnixMilli(r.Time),
		})
	}
	return points, nil
}

func (c *HTTPClient) FetchOpenInterest(ctx context.Context, coin string) (OpenInterest, error) {
	var raw sdk.OpenInterestResponse
	if err := c.post(ctx, "/info", map[string]string{"type": "openInterest", "coin": coin}, &raw); err != nil {
		return OpenInterest{}, err
	}
	return OpenInterest{
		OpenInterest: decimalOrZero(raw.OpenInterest),
		Timestamp:    time.UnixMilli(raw.Time),
	}, nil
}

func (c *HTTPClient) PlaceOrder(ctx context.Context, req OrderRequest) (OrderResult, error) {
	wire := sdk.OrderRequest{
		Coin:       req.Coin,
		IsBuy:      req.IsBuy,
		Sz:         req.Size.String(),
		ReduceOnly: req.ReduceOnly,
		PostOnly:   req.PostOnly,
	}
	if req.LimitPrice != nil {
		wire.LimitPx = req.LimitPrice.String()
	}
	var raw sdk.OrderResponse
	if err := c.post(ctx, "/exchange", wire, &raw); err != nil {
		return OrderResult{}, err
	}
	result := OrderResult{OrderID: raw.OrderID, Success: raw.Status == "ok", Err: raw.Error}
	if raw.Filled != "" {
		f := decimalOrZero(raw.Filled)
		result.Filled = &f
	}
	return result, nil
}

func (c *HTTPClient) AccountState(ctx context.Context) (domain.AccountState, error) {
	var raw sdk.AccountStateResponse
	req := map[string]string{"type": "clearinghouseState", "user": c.accountID}
	if err := c.post(ctx, "/info", req, &raw); err != nil {
		return domain.AccountState{}, err
	}

	positions := make([]domain.Position, 0, len(raw.AssetPositions))
	liqPrices := make(map[string]decimal.Decimal, len(raw.AssetPositions))
	for _, ap := range raw.AssetPositions {
		p := ap.Position
		size := decimalOrZero(p.Szi)
		entry := decimalOrZero(p.EntryPx)
		lev := decimal.NewFromInt(int64(p.Leverage.Value))
		positions = append(positions, domain.Position{
			Coin:         p.Coin,
			MarketType:   domain.MarketPerp,
			Size:         size,
			EntryPrice:   entry,
			CurrentPrice: entry,
			Leverage:     &lev,
		})
		if p.LiquidationPx != "" {
			liqPrices[p.Coin] = decimalOrZero(p.LiquidationPx)
		}
	}

	spotBalances := make(map[string]decimal.Decimal, len(raw.SpotBalances))
	for _, b := range raw.SpotBalances {
		spotBalances[b.Coin] = decimalOrZero(b.Total)
	}

	accountValue := decimalOrZero(raw.MarginSummary.AccountValue)
	marginUsed := decimalOrZero(raw.MarginSummary.TotalMarginUsed)
	var marginRatio decimal.Decimal
	if !accountValue.IsZero() {
		marginRatio = marginUsed.Div(accountValue)
	}

	return domain.AccountState{
		PortfolioValue:    accountValue,
		AvailableBalance:  decimalOrZero(raw.Withdrawable),
		Positions:         positions,
		SpotBalances:      spotBalances,
		Timestamp:         time.UnixMilli(raw.Time),
		MarginRatio:       marginRatio,
		LiquidationPrices: liqPrices,
	}, nil
}

func decimalOrZero(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// bookStream is a slot for an order-book stream connection. StreamOrderBooks
// does not store its connection here and no streamed book is cached; the
// orchestrator reads order books through FetchOrderBook.
type bookStream struct {
	conn *websocket.Conn
}

// StreamOrderBooks opens the public gorilla/websocket feed and subscribes
// to l2Book updates for each coin in coins. It runs until ctx is canceled,
// reconnecting with backoff on drop; failures are logged, never returned,
// since the REST path remains the source of truth.
func (c *HTTPClient) StreamOrderBooks(ctx context.Context, coins []string) {
	wsURL := strings.Replace(c.baseURL, "https://", "wss://", 1) + "/ws"
	go func() {
		backoff := time.Second
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}
			conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
			if err != nil {
				c.log.Warn().Err(err).Dur("backoff", backoff).Msg("order book stream dial failed")
				time.Sleep(backoff)
				if backoff < 30*time.Second {
					backoff *= 2
				}
				continue
			}
			backoff = time.Second
			for _, coin := range coins {
				sub := sdk.WSSubscribeMessage{Method: "subscribe"}
				sub.Subscription.Type = "l2Book"
				sub.Subscription.Coin = coin
				_ = conn.WriteJSON(sub)
			}
			c.readBookLoop(ctx, conn)
		}
	}()
}

func (c *HTTPClient) readBookLoop(ctx context.Context, conn *websocket.Conn) {
	defer conn.Close()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		var msg sdk.L2BookResponse
		if err := conn.ReadJSON(&msg); err != nil {
			c.log.Debug().Err(err).Msg("order book stream read failed, reconnecting")
			return
		}
	}
}

// StreamUserEvents opens the authenticated nhooyr.io/websocket user-event
// feed and invokes onEvent for each fill/funding notification. This is the
// second, independent websocket stack (user-scoped, distinct endpoint and
// library from the public order-book stream).
func (c *HTTPClient) StreamUserEvents(ctx context.Context, onEvent func(sdk.WSUserEvent)) error {
	wsURL := strings.Replace(c.baseURL, "https://", "wss://", 1) + "/ws/user"
	conn, _, err := nhws.Dial(ctx, wsURL, nil)
	if err != nil {
		return errs.New(errs.KindTransient, "exchange.StreamUserEvents", err)
	}
	defer conn.Close(nhws.StatusNormalClosure, "done")

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		_, data, err := conn.Read(ctx)
		if err != nil {
			return errs.New(errs.KindTransient, "exchange.StreamUserEvents", err)
		}
		var evt sdk.WSUserEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			continue
		}
		onEvent(evt)
	}
}

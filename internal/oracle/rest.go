package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// RESTFetcher polls an HTTP price-feed endpoint on demand, grounded on the
// teacher's oanda.Client (plain *http.Client, bearer auth header, JSON
// decode) but without its streaming connection — every call here is a
// discrete request, matching priceFeedMode=api (spec §4.1).
type RESTFetcher struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewRESTFetcher(baseURL, apiKey string, timeout time.Duration) *RESTFetcher {
	return &RESTFetcher{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type restQuoteResponse struct {
	Symbol    string  `json:"symbol"`
	Bid       float64 `json:"bid"`
	Ask       float64 `json:"ask"`
	Timestamp int64   `json:"timestamp"` // unix millis
}

func (f *RESTFetcher) doRequest(ctx context.Context, path string, query url.Values, out any) error {
	u := f.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if f.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.apiKey)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("price feed returned %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func toQuote(r restQuoteResponse) Quote {
	mid := (r.Bid + r.Ask) / 2
	return Quote{
		Symbol:    r.Symbol,
		Bid:       r.Bid,
		Ask:       r.Ask,
		Mid:       mid,
		Spread:    r.Ask - r.Bid,
		Timestamp: time.UnixMilli(r.Timestamp),
	}
}

func (f *RESTFetcher) FetchQuote(ctx context.Context, symbol string) (Quote, error) {
	var r restQuoteResponse
	if err := f.doRequest(ctx, "/v1/quote", url.Values{"symbol": {symbol}}, &r); err != nil {
		return Quote{}, err
	}
	return toQuote(r), nil
}

func (f *RESTFetcher) FetchQuoteBatch(ctx context.Context, symbols []string) (map[string]Quote, error) {
	var rs []restQuoteResponse
	if err := f.doRequest(ctx, "/v1/quotes", url.Values{"symbols": {strings.Join(symbols, ",")}}, &rs); err != nil {
		return nil, err
	}
	out := make(map[string]Quote, len(rs))
	for _, r := range rs {
		out[r.Symbol] = toQuote(r)
	}
	return out, nil
}

func (f *RESTFetcher) IsMarketOpen(ctx context.Context) (bool, error) {
	var r struct {
		Open bool `json:"open"`
	}
	if err := f.doRequest(ctx, "/v1/market-status", nil, &r); err != nil {
		return false, err
	}
	return r.Open, nil
}

func (f *RESTFetcher) MarketStatus(ctx context.Context) (string, error) {
	var r struct {
		Status string `json:"status"`
	}
	if err := f.doRequest(ctx, "/v1/market-status", nil, &r); err != nil {
		return "", err
	}
	return r.Status, nil
}

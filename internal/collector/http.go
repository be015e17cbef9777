package collector

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"CVDMonitor/internal/model"

	"github.com/pkg/errors"
)

// HTTPSource pulls observations from a REST endpoint returning a JSON array.
type HTTPSource struct {
	Endpoint string
	APIKey   string
	RoundCVD int32
	Client   *http.Client
}

// NewHTTPSource creates a source with optional proxy support.
func NewHTTPSource(endpoint, apiKey, proxyURL string, places int32) *HTTPSource {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &HTTPSource{
		Endpoint: endpoint,
		APIKey:   apiKey,
		RoundCVD: places,
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
	}
}

func (s *HTTPSource) Name() string { return "http:" + s.Endpoint }

// wireObservation is the JSON shape served by the endpoint. Timestamps are
// unix seconds.
type wireObservation struct {
	Symbol       string   `json:"symbol"`
	Timestamp    *int64   `json:"timestamp"`
	Price        *float64 `json:"price"`
	CVD          *float64 `json:"cvd"`
	PeriodVolume *float64 `json:"period_volume"`
	TradeCount   *int64   `json:"trade_count"`
}

func (s *HTTPSource) Load(ctx context.Context) (*model.Dataset, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.Endpoint, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	if s.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.APIKey)
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "fetch observations")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errors.Errorf("fetch observations: status %d, body: %s", resp.StatusCode, string(body))
	}

	var wire []wireObservation
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, errors.Wrap(err, "decode observations")
	}

	rows := make([]model.Observation, 0, len(wire))
	for i, w := range wire {
		obs, err := w.observation(i, s.RoundCVD)
		if err != nil {
			return nil, err
		}
		rows = append(rows, obs)
	}
	sortRows(rows)
	return model.NewDataset(rows), nil
}

func (w wireObservation) observation(row int, places int32) (model.Observation, error) {
	missing := func(col string) error {
		return &model.SchemaError{Column: col, Row: row, Reason: "missing field"}
	}
	switch {
	case w.Timestamp == nil:
		return model.Observation{}, missing(model.ColumnTimestamp)
	case w.Price == nil:
		return model.Observation{}, missing(model.ColumnPrice)
	case w.CVD == nil:
		return model.Observation{}, missing(model.ColumnCVD)
	case w.PeriodVolume == nil:
		return model.Observation{}, missing(model.ColumnPeriodVolume)
	case w.TradeCount == nil:
		return model.Observation{}, missing(model.ColumnTradeCount)
	}
	return model.Observation{
		Symbol:       w.Symbol,
		Timestamp:    time.Unix(*w.Timestamp, 0).UTC(),
		Price:        *w.Price,
		CVD:          roundCVD(*w.CVD, places),
		PeriodVolume: *w.PeriodVolume,
		TradeCount:   *w.TradeCount,
	}, nil
}

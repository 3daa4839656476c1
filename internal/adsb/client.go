package adsb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"golang.org/x/time/rate"

	"github.com/yegors/superplane/internal/config"
	"github.com/yegors/superplane/internal/position"
	"github.com/yegors/superplane/pkg/logger"
)

// Client fetches aircraft around a position from the configured feed
type Client struct {
	httpClient        *http.Client
	sourceType        string
	localSourceURL    string
	externalSourceURL string
	apiHost           string
	apiKey            string
	maxRadiusKm       float64
	limiter           *rate.Limiter
	logger            *logger.Logger
}

// NewClient creates a new ADS-B feed client
func NewClient(cfg config.ADSBConfig, logger *logger.Logger) *Client {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout(),
		},
		sourceType:        cfg.SourceType,
		localSourceURL:    cfg.LocalSourceURL,
		externalSourceURL: cfg.ExternalSourceURL,
		apiHost:           cfg.APIHost,
		apiKey:            cfg.APIKey,
		maxRadiusKm:       NMToKm(cfg.MaxRadiusNM),
		limiter:           rate.NewLimiter(limit, 1),
		logger:            logger.Named("adsb-cli"),
	}
}

// FetchCandidates returns the aircraft within radiusKm of fix, in feed order.
// Every failure is reported as a *NetworkError.
func (c *Client) FetchCandidates(ctx context.Context, fix position.Fix, radiusKm float64) ([]Candidate, error) {
	if c.maxRadiusKm > 0 && radiusKm > c.maxRadiusKm {
		c.logger.Debug("Clamping search radius",
			logger.Float64("requested_km", radiusKm),
			logger.Float64("max_km", c.maxRadiusKm))
		radiusKm = c.maxRadiusKm
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &NetworkError{Op: "request", URL: c.sourceURL(), Err: fmt.Errorf("rate limiter: %w", err)}
	}

	switch c.sourceType {
	case "local":
		return c.fetchLocalData(ctx, fix, radiusKm)
	case "external":
		return c.fetchExternalData(ctx, fix, radiusKm)
	}
	return nil, &NetworkError{Op: "request", Err: fmt.Errorf("unknown source type: %s", c.sourceType)}
}

func (c *Client) sourceURL() string {
	if c.sourceType == "local" {
		return c.localSourceURL
	}
	return c.externalSourceURL
}

// fetchLocalData reads a receiver's aircraft.json and filters it to the radius
func (c *Client) fetchLocalData(ctx context.Context, fix position.Fix, radiusKm float64) ([]Candidate, error) {
	c.logger.Debug("Fetching local ADS-B data", logger.String("url", c.localSourceURL))

	body, err := c.get(ctx, c.localSourceURL, nil)
	if err != nil {
		return nil, err
	}

	var data RawAircraftData
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, &NetworkError{Op: "parse", URL: c.localSourceURL, Err: err}
	}

	candidates := make([]Candidate, 0, len(data.Aircraft))
	for _, target := range data.Aircraft {
		candidate, ok := target.Convert()
		if !ok {
			continue
		}
		d := DistanceKm(fix.Latitude, fix.Longitude, candidate.Latitude, candidate.Longitude)
		if d > radiusKm {
			continue
		}
		candidate.ReportedDistanceKm = d
		candidates = append(candidates, candidate)
	}

	c.logger.Debug("Successfully fetched local ADS-B data",
		logger.Int("aircraft_count", len(data.Aircraft)),
		logger.Int("in_range", len(candidates)),
		logger.Int("message_count", data.Messages))

	return candidates, nil
}

// fetchExternalData queries a VirtualRadar style API for aircraft in range
func (c *Client) fetchExternalData(ctx context.Context, fix position.Fix, radiusKm float64) ([]Candidate, error) {
	u, err := url.Parse(c.externalSourceURL)
	if err != nil {
		return nil, &NetworkError{Op: "request", URL: c.externalSourceURL, Err: err}
	}
	q := u.Query()
	q.Set("lat", strconv.FormatFloat(fix.Latitude, 'f', -1, 64))
	q.Set("lng", strconv.FormatFloat(fix.Longitude, 'f', -1, 64))
	q.Set("fDstL", "0")
	q.Set("fDstU", strconv.FormatFloat(radiusKm, 'f', -1, 64))
	u.RawQuery = q.Encode()

	headers := http.Header{}
	if c.apiHost != "" {
		headers.Set("x-rapidapi-host", c.apiHost)
	}
	if c.apiKey != "" {
		headers.Set("x-rapidapi-key", c.apiKey)
	}

	c.logger.Debug("Fetching external ADS-B data",
		logger.String("url", u.String()),
		logger.String("host", c.apiHost),
		logger.String("key_prefix", keyPrefix(c.apiKey)))

	body, err := c.get(ctx, u.String(), headers)
	if err != nil {
		return nil, err
	}

	var data VirtualRadarResponse
	if err := json.Unmarshal(body, &data); err != nil {
		bodyPreview := string(body)
		if len(bodyPreview) > 200 {
			bodyPreview = bodyPreview[:200] + "..."
		}
		c.logger.Error("Failed to parse external feed response",
			logger.Error(err),
			logger.String("body", bodyPreview))
		return nil, &NetworkError{Op: "parse", URL: u.String(), Err: err}
	}

	candidates := make([]Candidate, 0, len(data.AcList))
	for _, target := range data.AcList {
		if candidate, ok := target.Convert(); ok {
			candidates = append(candidates, candidate)
		}
	}

	c.logger.Debug("Successfully fetched external ADS-B data",
		logger.Int("aircraft_count", len(data.AcList)),
		logger.Int("with_position", len(candidates)))

	return candidates, nil
}

func (c *Client) get(ctx context.Context, target string, headers http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &NetworkError{Op: "request", URL: target, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header[k] = v
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Failed to execute request", logger.Error(err), logger.String("url", target))
		return nil, &NetworkError{Op: "request", URL: target, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("Unexpected status code",
			logger.Int("status_code", resp.StatusCode),
			logger.String("url", target))
		return nil, &NetworkError{Op: "status", URL: target, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Op: "read", URL: target, Err: err}
	}
	return body, nil
}

// keyPrefix returns enough of an API key to tell keys apart in logs
func keyPrefix(key string) string {
	if len(key) <= 5 {
		return ""
	}
	return key[:5] + "..."
}

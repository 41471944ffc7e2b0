// Package geocode resolves coordinates to a street address through the
// Nominatim reverse-geocoding API.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/liftcare/field-bot/internal/apperr"
)

const userAgent = "lift-field-bot/1.0"

// Address is the part of a reverse-geocoding result intake needs.
type Address struct {
	Road        string
	HouseNumber string
}

type nominatimResponse struct {
	Address struct {
		Road        string `json:"road"`
		HouseNumber string `json:"house_number"`
	} `json:"address"`
	Error string `json:"error"`
}

type Client struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
	logger  *zap.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		timeout: timeout,
		client:  &http.Client{},
		logger:  logger.Named("geocode"),
	}
}

// Reverse looks up the road and house number at (lat, lon). It never runs
// longer than the configured timeout; exceeding it yields KindGeoTimeout.
func (c *Client) Reverse(ctx context.Context, lat, lon float64) (Address, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := url.Values{}
	params.Add("lat", strconv.FormatFloat(lat, 'f', 7, 64))
	params.Add("lon", strconv.FormatFloat(lon, 'f', 7, 64))
	params.Add("format", "json")
	params.Add("addressdetails", "1")
	params.Add("accept-language", "uk")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s?%s", c.baseURL, params.Encode()), nil)
	if err != nil {
		return Address{}, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			c.logger.Warn("nominatim timed out", zap.Duration("timeout", c.timeout))
			return Address{}, apperr.Wrap(apperr.KindGeoTimeout, "reverse geocoding timed out", err)
		}
		c.logger.Error("nominatim request failed", zap.Error(err))
		return Address{}, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("nominatim upstream error", zap.Int("status", resp.StatusCode))
		return Address{}, fmt.Errorf("upstream api error: %d", resp.StatusCode)
	}

	var raw nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Address{}, apperr.Wrap(apperr.KindGeoTimeout, "reverse geocoding timed out", err)
		}
		c.logger.Error("failed to decode nominatim payload", zap.Error(err))
		return Address{}, err
	}
	if raw.Error != "" || raw.Address.Road == "" {
		return Address{}, apperr.NotFound("no road at location").WithOp("geocode.Reverse")
	}

	return Address{
		Road:        raw.Address.Road,
		HouseNumber: strings.ToLower(strings.TrimSpace(raw.Address.HouseNumber)),
	}, nil
}

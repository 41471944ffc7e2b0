// Package ocr reads the service date from a maintenance journal photo by
// handing the image to an external text-recognition service.
package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Recognizer turns a photo into the date written on it, if any.
type Recognizer interface {
	RecognizeDate(ctx context.Context, photo []byte) (time.Time, bool, error)
}

type recognizeResponse struct {
	Text string `json:"text"`
}

// Client posts photos to an OCR service that answers {"text": "..."}.
type Client struct {
	url     string
	timeout time.Duration
	loc     *time.Location
	client  *http.Client
	logger  *zap.Logger
}

func NewClient(url string, timeout time.Duration, loc *time.Location, logger *zap.Logger) *Client {
	return &Client{
		url:     url,
		timeout: timeout,
		loc:     loc,
		client:  &http.Client{},
		logger:  logger.Named("ocr"),
	}
}

// Text returns the raw recognized text for a photo.
func (c *Client) Text(ctx context.Context, photo []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := Downscale(photo, MaxSide)
	if err != nil {
		c.logger.Warn("photo not decodable, sending original", zap.Error(err))
		body = photo
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "image/jpeg")
	req.Header.Set("Accept-Language", "uk,ru")

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			c.logger.Warn("ocr timed out", zap.Duration("timeout", c.timeout))
		}
		return "", fmt.Errorf("ocr request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("ocr upstream error", zap.Int("status", resp.StatusCode))
		return "", fmt.Errorf("ocr upstream error: %d", resp.StatusCode)
	}

	var out recognizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode ocr payload: %w", err)
	}
	return out.Text, nil
}

// RecognizeDate implements Recognizer.
func (c *Client) RecognizeDate(ctx context.Context, photo []byte) (time.Time, bool, error) {
	text, err := c.Text(ctx, photo)
	if err != nil {
		return time.Time{}, false, err
	}
	date, ok := ExtractDate(text, c.loc)
	c.logger.Debug("ocr result", zap.Int("chars", len(text)), zap.Bool("date_found", ok))
	return date, ok, nil
}

// Package classifier is the boundary to the remote threat classifier. It is
// the only component in the pipeline that blocks on network I/O.
package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/phantomsec/threatwatch/internal/models"
	"github.com/sirupsen/logrus"
)

// ErrUnavailable reports a transport failure, timeout or non-success status
// from the classifier. Callers must treat it as "no verdict" (fall back to
// the heuristic scorer or drop silently), never as "safe".
var ErrUnavailable = errors.New("classifier unavailable")

// TokenProvider supplies the bearer credential attached to each request.
// Token lifecycle is owned by an external collaborator, not this client.
type TokenProvider func() string

// Client submits scan requests to the remote classifier. It performs no
// retries; retry and backoff policy belongs to the caller since the ambient
// and manual call-sites have different tolerance for delay.
type Client struct {
	client  *resty.Client
	baseURL string
	token   TokenProvider
}

// NewClient creates a classifier client for the given base endpoint.
func NewClient(baseURL string, token TokenProvider) *Client {
	if token == nil {
		token = func() string { return "" }
	}
	return &Client{
		client:  resty.New().SetTimeout(30 * time.Second),
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
	}
}

// Submit sends one scan request and returns the verdict. The context carries
// the caller's wait bound; on timeout the call fails with ErrUnavailable.
func (c *Client) Submit(ctx context.Context, request models.ScanRequest) (models.ScanVerdict, error) {
	r := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(request)

	if t := c.token(); t != "" {
		r.SetHeader("Authorization", "Bearer "+t)
	}

	resp, err := r.Post(c.baseURL + "/api/phishing/scan")
	if err != nil {
		logrus.Debugf("Classifier request failed: %v", err)
		return models.ScanVerdict{}, ErrUnavailable
	}

	if resp.StatusCode() != http.StatusOK {
		logrus.Debugf("Classifier returned status %d", resp.StatusCode())
		return models.ScanVerdict{}, ErrUnavailable
	}

	var verdict models.ScanVerdict
	if err := json.Unmarshal(resp.Body(), &verdict); err != nil {
		logrus.Debugf("Classifier returned unparseable body: %v", err)
		return models.ScanVerdict{}, ErrUnavailable
	}

	return verdict, nil
}

// Statistics fetches the backend's per-device scan counters, surfaced through
// the metrics endpoint. Best-effort; failures map to ErrUnavailable.
func (c *Client) Statistics(ctx context.Context) (map[string]int64, error) {
	r := c.client.R().SetContext(ctx)
	if t := c.token(); t != "" {
		r.SetHeader("Authorization", "Bearer "+t)
	}

	resp, err := r.Get(c.baseURL + "/api/phishing/statistics")
	if err != nil || resp.StatusCode() != http.StatusOK {
		return nil, ErrUnavailable
	}

	stats := make(map[string]int64)
	if err := json.Unmarshal(resp.Body(), &stats); err != nil {
		return nil, ErrUnavailable
	}
	return stats, nil
}

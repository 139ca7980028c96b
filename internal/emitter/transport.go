package emitter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/radiusdt/vector-analytics/internal/models"
	"go.uber.org/zap"
)

// Transport delivers one tracking event to the ingestion endpoint.
type Transport interface {
	Send(ctx context.Context, ev *models.PageEvent) error
}

// HTTPTransport is the normal request path used for enter events.
type HTTPTransport struct {
	client   *http.Client
	endpoint string
}

// NewHTTPTransport creates the enter-event transport.
func NewHTTPTransport(endpoint string, timeout time.Duration) *HTTPTransport {
	return &HTTPTransport{
		client:   &http.Client{Timeout: timeout},
		endpoint: endpoint,
	}
}

func (t *HTTPTransport) Send(ctx context.Context, ev *models.PageEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("ingestion returned status %d", resp.StatusCode)
	}
	return nil
}

// BeaconTransport is the unload-path transport: the send is dispatched on
// its own goroutine with a short deadline and is never awaited, so it can
// complete while the page tears down. Delivery is at most once and may
// silently fail; failures are logged and nothing else.
type BeaconTransport struct {
	client   *http.Client
	endpoint string
	timeout  time.Duration
	logger   *zap.Logger
}

// NewBeaconTransport creates the exit-event transport.
func NewBeaconTransport(endpoint string, logger *zap.Logger) *BeaconTransport {
	return &BeaconTransport{
		client:   &http.Client{},
		endpoint: endpoint,
		timeout:  2 * time.Second,
		logger:   logger,
	}
}

// Send dispatches the event without waiting for the result.
func (t *BeaconTransport) Send(_ context.Context, ev *models.PageEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
		if err != nil {
			t.logger.Debug("failed to create beacon request", zap.Error(err))
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := t.client.Do(req)
		if err != nil {
			t.logger.Debug("beacon send failed", zap.String("path", ev.Path), zap.Error(err))
			return
		}
		resp.Body.Close()
	}()

	return nil
}

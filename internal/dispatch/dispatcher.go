package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"go.quayer.tech/hooks/internal/common/metrics"
	"go.quayer.tech/hooks/internal/config"
	"go.quayer.tech/hooks/internal/delivery"
)

// Payload is the JSON body posted to subscriber endpoints.
// Field order is fixed: the signature is computed over these exact bytes.
type Payload struct {
	Event     string         `json:"event"`
	Data      map[string]any `json:"data"`
	Timestamp string         `json:"timestamp"`
	WebhookID string         `json:"webhookId"`
}

// Result is the settled outcome of a single dispatch attempt.
// A Dispatcher never returns a Go error; every failure mode lands here.
type Result struct {
	Success    bool
	StatusCode int
	Body       string
	Err        string
}

// Snapshot converts the result into a delivery response record.
// Transport failures produced no HTTP response, so the snapshot carries
// only the error text.
func (r Result) Snapshot() *delivery.Response {
	if r.StatusCode == 0 && r.Err == "" {
		return nil
	}
	return &delivery.Response{
		StatusCode: r.StatusCode,
		Body:       r.Body,
		Error:      r.Err,
	}
}

// Dispatcher posts signed webhook payloads to subscriber endpoints
type Dispatcher struct {
	client           *http.Client
	signer           *Signer
	circuitBreaker   *gobreaker.CircuitBreaker
	userAgent        string
	maxResponseBytes int64
	defaultTimeout   time.Duration
}

// NewDispatcher creates a dispatcher from configuration
func NewDispatcher(cfg config.DispatchConfig) *Dispatcher {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}

	d := &Dispatcher{
		// Per-request deadlines come from the subscription via context,
		// so the client itself carries no global timeout.
		client:           &http.Client{Transport: transport},
		signer:           NewSigner(),
		userAgent:        cfg.UserAgent,
		maxResponseBytes: cfg.MaxResponseBytes,
		defaultTimeout:   cfg.DefaultTimeout,
	}

	if cfg.CircuitBreakerEnabled {
		d.circuitBreaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "webhook-dispatch",
			MaxRequests: cfg.CircuitBreakerRequests,
			Interval:    cfg.CircuitBreakerInterval,
			Timeout:     cfg.CircuitBreakerTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				if counts.Requests < cfg.CircuitBreakerMinRequests {
					return false
				}
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return failureRatio >= cfg.CircuitBreakerRatio
			},
			OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
				slog.Info("Circuit breaker state changed",
					"name", name,
					"from", from.String(),
					"to", to.String())

				var stateValue float64
				switch to {
				case gobreaker.StateClosed:
					stateValue = float64(metrics.CircuitBreakerClosed)
				case gobreaker.StateOpen:
					stateValue = float64(metrics.CircuitBreakerOpen)
					metrics.DispatchCircuitBreakerTrips.Inc()
				case gobreaker.StateHalfOpen:
					stateValue = float64(metrics.CircuitBreakerHalfOpen)
				}
				metrics.DispatchCircuitBreakerState.Set(stateValue)
			},
		})
	}

	return d
}

// Dispatch posts the payload to url and settles the outcome into a Result.
// It never returns a Go error: non-2xx statuses, network failures, and
// timeouts are all captured in the result so callers need no error handling
// around a single attempt.
func (d *Dispatcher) Dispatch(ctx context.Context, url string, payload Payload, secret string, timeout time.Duration) Result {
	if timeout <= 0 {
		timeout = d.defaultTimeout
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Result{Err: fmt.Sprintf("encoding payload: %v", err)}
	}

	if d.circuitBreaker != nil {
		result, cbErr := d.circuitBreaker.Execute(func() (interface{}, error) {
			res := d.executeOnce(ctx, url, payload, body, secret, timeout)
			if !res.Success {
				return res, errors.New(res.Err)
			}
			return res, nil
		})
		if errors.Is(cbErr, gobreaker.ErrOpenState) || errors.Is(cbErr, gobreaker.ErrTooManyRequests) {
			slog.Warn("Circuit breaker rejected dispatch",
				"url", url,
				"event", payload.Event)
			return Result{Err: cbErr.Error()}
		}
		if res, ok := result.(Result); ok {
			return res
		}
		return Result{Err: cbErr.Error()}
	}

	return d.executeOnce(ctx, url, payload, body, secret, timeout)
}

// executeOnce performs a single HTTP POST attempt
func (d *Dispatcher) executeOnce(ctx context.Context, url string, payload Payload, body []byte, secret string, timeout time.Duration) Result {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Result{Err: fmt.Sprintf("creating request: %v", err)}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", d.userAgent)
	req.Header.Set(EventHeader, payload.Event)
	req.Header.Set(TimestampHeader, payload.Timestamp)
	if secret != "" {
		req.Header.Set(SignatureHeader, d.signer.Sign(body, secret))
	}

	slog.Debug("Dispatching webhook",
		"url", url,
		"event", payload.Event,
		"webhookId", payload.WebhookID,
		"timeout", timeout)

	startTime := time.Now()
	resp, err := d.client.Do(req)
	duration := time.Since(startTime)

	metrics.DispatchDuration.WithLabelValues(payload.Event).Observe(duration.Seconds())

	if err != nil {
		metrics.DispatchRequests.WithLabelValues("error").Inc()
		if errors.Is(err, context.DeadlineExceeded) {
			return Result{Err: fmt.Sprintf("request timed out after %s", timeout)}
		}
		return Result{Err: err.Error()}
	}
	defer resp.Body.Close()

	metrics.DispatchRequests.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, d.maxResponseBytes))

	slog.Debug("Webhook response received",
		"url", url,
		"statusCode", resp.StatusCode,
		"bodyLen", len(respBody),
		"duration", duration)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return Result{
			Success:    true,
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
		}
	}

	return Result{
		StatusCode: resp.StatusCode,
		Body:       string(respBody),
		Err:        fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(respBody)),
	}
}

package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fieldops/fieldops/internal/customers"
	"github.com/fieldops/fieldops/internal/invoicing"
	"github.com/fieldops/fieldops/internal/jobs"
)

const (
	// DefaultBaseURL points at a locally running backend.
	DefaultBaseURL = "http://127.0.0.1:8081/api/v1"
	// DefaultTimeout bounds every remote call.
	DefaultTimeout = 15 * time.Second

	maxBodyBytes = 4 << 20
)

// CallObserver receives one observation per remote call.
type CallObserver interface {
	ObserveGatewayCall(op, outcome string, elapsed time.Duration)
}

// Client talks to the remote REST backend. Calls are never retried.
type Client struct {
	baseURL  *url.URL
	http     *http.Client
	logger   *slog.Logger
	observer CallObserver
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithObserver records call metrics.
func WithObserver(observer CallObserver) Option {
	return func(c *Client) {
		c.observer = observer
	}
}

// NewClient builds a Client for baseURL, e.g. "http://host:8081/api/v1".
func NewClient(baseURL string, timeout time.Duration, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse gateway base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("gateway base url %q must be http or https", baseURL)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{
		baseURL: u,
		http:    &http.Client{Timeout: timeout},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

var _ Gateway = (*Client)(nil)

// CreateCustomer implements customers.Gateway.
func (c *Client) CreateCustomer(ctx context.Context, input customers.CreateInput) (*customers.Customer, error) {
	return call[*customers.Customer](ctx, c, OpCreateCustomer, http.MethodPost, "/customers", input)
}

// ListCustomers implements customers.Gateway.
func (c *Client) ListCustomers(ctx context.Context) ([]customers.Customer, error) {
	return call[[]customers.Customer](ctx, c, OpListCustomers, http.MethodGet, "/customers", nil)
}

// ListJobs implements jobs.Gateway.
func (c *Client) ListJobs(ctx context.Context) ([]jobs.Job, error) {
	return call[[]jobs.Job](ctx, c, OpListJobs, http.MethodGet, "/jobs", nil)
}

// GetJob implements jobs.Gateway.
func (c *Client) GetJob(ctx context.Context, id string) (*jobs.Job, error) {
	return call[*jobs.Job](ctx, c, OpGetJob, http.MethodGet, "/jobs/"+url.PathEscape(id), nil)
}

// CreateJob implements jobs.Gateway.
func (c *Client) CreateJob(ctx context.Context, input jobs.CreateInput) (*jobs.Job, error) {
	return call[*jobs.Job](ctx, c, OpCreateJob, http.MethodPost, "/jobs", input)
}

// CreateAppointment implements jobs.Gateway.
func (c *Client) CreateAppointment(ctx context.Context, jobID string, input jobs.AppointmentInput) (*jobs.Appointment, error) {
	return call[*jobs.Appointment](ctx, c, OpCreateAppointment, http.MethodPost, "/jobs/"+url.PathEscape(jobID)+"/appointments", input)
}

// UpdateJobStatus implements jobs.Gateway.
func (c *Client) UpdateJobStatus(ctx context.Context, jobID string, input jobs.StatusInput) (*jobs.Job, error) {
	return call[*jobs.Job](ctx, c, OpUpdateJobStatus, http.MethodPatch, "/jobs/"+url.PathEscape(jobID)+"/status", input)
}

// GenerateInvoice implements invoicing.Gateway.
func (c *Client) GenerateInvoice(ctx context.Context, jobID string, input invoicing.GenerateInput) (*invoicing.Invoice, error) {
	return call[*invoicing.Invoice](ctx, c, OpGenerateInvoice, http.MethodPost, "/jobs/"+url.PathEscape(jobID)+"/invoice", input)
}

// ListInvoices implements invoicing.Gateway.
func (c *Client) ListInvoices(ctx context.Context) ([]invoicing.Invoice, error) {
	return call[[]invoicing.Invoice](ctx, c, OpListInvoices, http.MethodGet, "/invoices", nil)
}

// RecordPayment implements invoicing.Gateway.
func (c *Client) RecordPayment(ctx context.Context, invoiceID string, input invoicing.PaymentInput) (*invoicing.Payment, error) {
	return call[*invoicing.Payment](ctx, c, OpRecordPayment, http.MethodPost, "/invoices/"+url.PathEscape(invoiceID)+"/payments", input)
}

func call[T any](ctx context.Context, c *Client, op, method, path string, body any) (T, error) {
	var zero T
	start := time.Now()
	data, err := c.roundTrip(ctx, op, method, path, body)
	outcome := "ok"
	if err != nil {
		outcome = string(KindTransport)
		var gwErr *Error
		if errors.As(err, &gwErr) {
			outcome = string(gwErr.Kind)
		}
	}
	if c.observer != nil {
		c.observer.ObserveGatewayCall(op, outcome, time.Since(start))
	}
	if err != nil {
		c.logger.Debug("gateway call failed",
			slog.String("op", op),
			slog.String("outcome", outcome),
			slog.Any("error", err))
		return zero, err
	}

	var env Envelope[T]
	if err := json.Unmarshal(data, &env); err != nil {
		return zero, &Error{Op: op, Kind: KindTransport, Err: fmt.Errorf("decode envelope: %w", err)}
	}
	c.logger.Debug("gateway call",
		slog.String("op", op),
		slog.Int("status", env.StatusCode),
		slog.Duration("elapsed", time.Since(start)))
	return env.Data, nil
}

// roundTrip performs the request and returns the body of a success envelope.
func (c *Client) roundTrip(ctx context.Context, op, method, path string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("gateway %s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, reader)
	if err != nil {
		return nil, fmt.Errorf("gateway %s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &Error{Op: op, Kind: KindTransport, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &Error{Op: op, StatusCode: resp.StatusCode, Kind: KindTransport, Err: fmt.Errorf("read body: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, failureFromBody(op, resp.StatusCode, data)
	}

	var head struct {
		Success *bool `json:"success"`
	}
	if err := json.Unmarshal(data, &head); err == nil && head.Success != nil && !*head.Success {
		return nil, failureFromBody(op, resp.StatusCode, data)
	}
	return data, nil
}

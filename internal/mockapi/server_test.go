package mockapi

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldops/fieldops/internal/customers"
	"github.com/fieldops/fieldops/internal/gateway"
	"github.com/fieldops/fieldops/internal/gateway/memory"
	"github.com/fieldops/fieldops/internal/invoicing"
	"github.com/fieldops/fieldops/internal/jobs"
	"github.com/fieldops/fieldops/internal/money"
	"github.com/fieldops/fieldops/internal/shared"
)

func newSandbox(t *testing.T) (*gateway.Client, *memory.Backend, string) {
	t.Helper()
	backend := memory.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := httptest.NewServer(NewServer(backend, logger).Routes())
	t.Cleanup(srv.Close)
	client, err := gateway.NewClient(srv.URL+Prefix, 5*time.Second, gateway.WithLogger(logger))
	require.NoError(t, err)
	return client, backend, srv.URL
}

func TestClientAgainstSandbox(t *testing.T) {
	ctx := context.Background()
	client, backend, _ := newSandbox(t)
	tech := backend.AddTechnician("92bc23b9-92e5-4eda-b3eb-3a2e6d2f240a", "Grace")

	c, err := client.CreateCustomer(ctx, customers.CreateInput{Name: "Ada", Phone: "555", Email: "ada@example.com", Address: "1 Main St"})
	require.NoError(t, err)

	job, err := client.CreateJob(ctx, jobs.CreateInput{Title: "Fix sink", Description: "Leaking", CustomerID: c.ID})
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusNew, job.Status)

	start := time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC)
	appt, err := client.CreateAppointment(ctx, job.ID, jobs.AppointmentInput{TechnicianID: tech.ID, Start: start, End: start.Add(2 * time.Hour)})
	require.NoError(t, err)
	assert.True(t, appt.Start.Equal(start))

	inv, err := client.GenerateInvoice(ctx, job.ID, invoicing.GenerateInput{
		Items:   []invoicing.ItemInput{{Description: "Labor", Quantity: 2, UnitPrice: money.FromMajor(50)}},
		TaxRate: money.Percent(10),
	})
	require.NoError(t, err)
	assert.Equal(t, money.FromMajor(110), inv.Total)

	pay, err := client.RecordPayment(ctx, inv.ID, invoicing.PaymentInput{Amount: money.MustParse("110.00")})
	require.NoError(t, err)
	assert.Equal(t, money.FromMajor(110), pay.Amount)

	list, err := client.ListJobs(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, jobs.StatusInvoiced, list[0].Status)
	assert.Len(t, list[0].History, 3)
}

func TestSandboxFailuresComeBackAsEnvelopes(t *testing.T) {
	ctx := context.Background()
	client, _, baseURL := newSandbox(t)

	_, err := client.CreateCustomer(ctx, customers.CreateInput{Name: "Ada"})
	require.ErrorIs(t, err, shared.ErrValidation)
	assert.Equal(t, "phone is required", shared.UserSafeMessage(err))

	_, err = client.GetJob(ctx, "missing")
	require.ErrorIs(t, err, shared.ErrNotFound)
	assert.Equal(t, "Job not found", shared.UserSafeMessage(err))

	resp, err := http.Post(baseURL+Prefix+"/customers", "application/json", strings.NewReader(`{"name":`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestParseSeed(t *testing.T) {
	seed, err := ParseSeed([]byte(`
technicians:
  - id: tech-1
    name: Grace
customers:
  - name: Ada
    phone: "555"
    email: ada@example.com
    address: 1 Main St
`))
	require.NoError(t, err)
	require.Len(t, seed.Technicians, 1)
	require.Len(t, seed.Customers, 1)

	backend := memory.New()
	require.NoError(t, seed.Apply(context.Background(), backend))
	list, err := backend.ListCustomers(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Ada", list[0].Name)
	assert.Equal(t, "Grace", backend.Technicians()[0].Name)
}

func TestParseTechnicians(t *testing.T) {
	got := ParseTechnicians("t-1:Grace, Linus ,")
	assert.Equal(t, []SeedTechnician{{ID: "t-1", Name: "Grace"}, {Name: "Linus"}}, got)
}

// Package mockapi serves the remote REST contract from the in-memory backend
// so the console can run without the real service.
package mockapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fieldops/fieldops/internal/customers"
	"github.com/fieldops/fieldops/internal/gateway"
	"github.com/fieldops/fieldops/internal/invoicing"
	"github.com/fieldops/fieldops/internal/jobs"
	"github.com/fieldops/fieldops/internal/platform/httpx"
)

// Prefix is where the API is mounted.
const Prefix = "/api/v1"

// Server exposes a gateway.Gateway over HTTP.
type Server struct {
	backend gateway.Gateway
	logger  *slog.Logger
}

// NewServer builds a Server.
func NewServer(backend gateway.Gateway, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{backend: backend, logger: logger}
}

// Routes returns a router with the API mounted under Prefix.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Route(Prefix, s.MountRoutes)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Fail(w, http.StatusNotFound, "Cannot "+r.Method+" "+r.URL.Path)
	})
	return r
}

// MountRoutes registers the API routes.
func (s *Server) MountRoutes(r chi.Router) {
	r.Get("/customers", s.listCustomers)
	r.Post("/customers", s.createCustomer)

	r.Get("/jobs", s.listJobs)
	r.Post("/jobs", s.createJob)
	r.Get("/jobs/{id}", s.getJob)
	r.Post("/jobs/{id}/appointments", s.createAppointment)
	r.Patch("/jobs/{id}/status", s.updateJobStatus)
	r.Post("/jobs/{id}/invoice", s.generateInvoice)

	r.Get("/invoices", s.listInvoices)
	r.Post("/invoices/{id}/payments", s.recordPayment)
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := httpx.StatusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("mockapi request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func (s *Server) listCustomers(w http.ResponseWriter, r *http.Request) {
	out, err := s.backend.ListCustomers(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, "Customers retrieved successfully", out)
}

func (s *Server) createCustomer(w http.ResponseWriter, r *http.Request) {
	var in customers.CreateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	out, err := s.backend.CreateCustomer(r.Context(), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httpx.OK(w, http.StatusCreated, "Customer created successfully", out)
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	out, err := s.backend.ListJobs(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, "Jobs retrieved successfully", out)
}

func (s *Server) createJob(w http.ResponseWriter, r *http.Request) {
	var in jobs.CreateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	out, err := s.backend.CreateJob(r.Context(), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httpx.OK(w, http.StatusCreated, "Job created successfully", out)
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	out, err := s.backend.GetJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, "Job retrieved successfully", out)
}

func (s *Server) createAppointment(w http.ResponseWriter, r *http.Request) {
	var in jobs.AppointmentInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	out, err := s.backend.CreateAppointment(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httpx.OK(w, http.StatusCreated, "Appointment created successfully", out)
}

func (s *Server) updateJobStatus(w http.ResponseWriter, r *http.Request) {
	var in jobs.StatusInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	out, err := s.backend.UpdateJobStatus(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, "Job status updated successfully", out)
}

func (s *Server) generateInvoice(w http.ResponseWriter, r *http.Request) {
	var in invoicing.GenerateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	out, err := s.backend.GenerateInvoice(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httpx.OK(w, http.StatusCreated, "Invoice generated successfully", out)
}

func (s *Server) listInvoices(w http.ResponseWriter, r *http.Request) {
	out, err := s.backend.ListInvoices(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, "Invoices retrieved successfully", out)
}

func (s *Server) recordPayment(w http.ResponseWriter, r *http.Request) {
	var in invoicing.PaymentInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	out, err := s.backend.RecordPayment(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httpx.OK(w, http.StatusCreated, "Payment recorded successfully", out)
}

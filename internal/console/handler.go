// Package console serves the JSON backend of the field-service console: the
// data tables, their row actions and the workflows behind them.
package console

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fieldops/fieldops/internal/customers"
	"github.com/fieldops/fieldops/internal/dispatch"
	"github.com/fieldops/fieldops/internal/invoicing"
	"github.com/fieldops/fieldops/internal/platform/httpx"
	"github.com/fieldops/fieldops/internal/shared"
	"github.com/fieldops/fieldops/internal/views"
)

var submitMessages = map[dispatch.Action]string{
	dispatch.ActionCreateJob:         "Job created successfully",
	dispatch.ActionCreateAppointment: "Appointment created successfully",
	dispatch.ActionUpdateStatus:      "Job status updated successfully",
	dispatch.ActionGenerateInvoice:   "Invoice generated successfully",
	dispatch.ActionCollectPayment:    "Payment recorded successfully",
}

// Handler exposes the console endpoints.
type Handler struct {
	services   Services
	dispatcher *dispatch.Dispatcher
	views      *views.Cache
	logger     *slog.Logger
}

// NewHandler constructs the console handler.
func NewHandler(services Services, dispatcher *dispatch.Dispatcher, cache *views.Cache, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{services: services, dispatcher: dispatcher, views: cache, logger: logger}
}

// MountRoutes attaches the console routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/customers", h.listCustomers)
	r.Post("/customers", h.createCustomer)
	r.Get("/jobs", h.listJobs)
	r.Get("/jobs/{id}", h.getJob)
	r.Get("/invoices", h.listInvoices)
	r.Post("/invoices/preview", h.previewInvoice)

	r.Route("/tables/{table}/actions", func(r chi.Router) {
		r.Get("/", h.currentAction)
		r.Post("/", h.armAction)
		r.Delete("/", h.clearAction)
		r.Post("/submit", h.submitAction)
	})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := httpx.StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("console request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	} else {
		h.logger.Debug("console request rejected", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func (h *Handler) listCustomers(w http.ResponseWriter, r *http.Request) {
	var rows []CustomerRow
	if err := h.views.Rows(r.Context(), shared.TableCustomers, &rows); err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, "Customers retrieved successfully", rows)
}

func (h *Handler) createCustomer(w http.ResponseWriter, r *http.Request) {
	var input customers.CreateInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		h.fail(w, r, err)
		return
	}
	customer, err := h.services.Customers.Create(r.Context(), input)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.OK(w, http.StatusCreated, "Customer created successfully", customer)
}

func (h *Handler) listJobs(w http.ResponseWriter, r *http.Request) {
	var rows []JobRow
	if err := h.views.Rows(r.Context(), shared.TableJobs, &rows); err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, "Jobs retrieved successfully", rows)
}

func (h *Handler) getJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.services.Jobs.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, "Job retrieved successfully", job)
}

func (h *Handler) listInvoices(w http.ResponseWriter, r *http.Request) {
	var rows []InvoiceRow
	if err := h.views.Rows(r.Context(), shared.TableInvoices, &rows); err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, "Invoices retrieved successfully", rows)
}

func (h *Handler) previewInvoice(w http.ResponseWriter, r *http.Request) {
	var input invoicing.GenerateInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		h.fail(w, r, err)
		return
	}
	totals, err := h.services.Invoices.Preview(input)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, "Invoice totals computed", totals)
}

type armRequest struct {
	EntityID string          `json:"entityId"`
	Action   dispatch.Action `json:"action"`
}

type currentResponse struct {
	Pending *dispatch.Pending `json:"pending"`
	Actions []dispatch.Action `json:"actions"`
}

func tableParam(r *http.Request) shared.Table {
	return shared.Table(chi.URLParam(r, "table"))
}

func (h *Handler) currentAction(w http.ResponseWriter, r *http.Request) {
	table := tableParam(r)
	pending, err := h.dispatcher.Current(r.Context(), shared.SessionFromContext(r.Context()), table)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, "", currentResponse{Pending: pending, Actions: dispatch.Actions(table)})
}

func (h *Handler) armAction(w http.ResponseWriter, r *http.Request) {
	var req armRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	opened, err := h.dispatcher.Arm(r.Context(), shared.SessionFromContext(r.Context()), tableParam(r), req.EntityID, req.Action)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, "", opened)
}

func (h *Handler) clearAction(w http.ResponseWriter, r *http.Request) {
	if err := h.dispatcher.Clear(r.Context(), shared.SessionFromContext(r.Context()), tableParam(r)); err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.OK[any](w, http.StatusOK, "", nil)
}

func (h *Handler) submitAction(w http.ResponseWriter, r *http.Request) {
	var payload json.RawMessage
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		h.fail(w, r, err)
		return
	}
	submitted, err := h.dispatcher.Submit(r.Context(), shared.SessionFromContext(r.Context()), tableParam(r), payload)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	status := http.StatusOK
	if submitted.Pending.Action != dispatch.ActionUpdateStatus {
		status = http.StatusCreated
	}
	httpx.OK(w, status, submitMessages[submitted.Pending.Action], submitted)
}

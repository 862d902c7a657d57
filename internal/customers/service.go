package customers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fieldops/fieldops/internal/shared"
)

// Gateway is the slice of the remote API used for customers.
type Gateway interface {
	CreateCustomer(ctx context.Context, input CreateInput) (*Customer, error)
	ListCustomers(ctx context.Context) ([]Customer, error)
}

// Service runs the customer workflows.
type Service struct {
	gateway Gateway
	views   shared.Invalidator
	logger  *slog.Logger
}

// NewService builds a Service.
func NewService(gateway Gateway, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{gateway: gateway, views: shared.NopInvalidator{}, logger: logger}
}

// SetInvalidator sets the observer notified after mutations.
func (s *Service) SetInvalidator(inv shared.Invalidator) {
	if inv != nil {
		s.views = inv
	}
}

// Create validates the form and creates the customer.
func (s *Service) Create(ctx context.Context, input CreateInput) (*Customer, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Phone = strings.TrimSpace(input.Phone)
	input.Email = strings.TrimSpace(input.Email)
	input.Address = strings.TrimSpace(input.Address)
	if err := shared.ValidateStruct(input); err != nil {
		return nil, err
	}

	customer, err := s.gateway.CreateCustomer(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("create customer: %w", err)
	}
	s.logger.Info("customer created", slog.String("customer_id", customer.ID))
	s.views.Invalidate(ctx, shared.TableCustomers)
	return customer, nil
}

// List returns every customer.
func (s *Service) List(ctx context.Context) ([]Customer, error) {
	customers, err := s.gateway.ListCustomers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	return customers, nil
}

// Get finds a customer by id. The remote API has no single-customer read,
// so the list is scanned.
func (s *Service) Get(ctx context.Context, id string) (*Customer, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, shared.Validation("customer id is required")
	}
	customers, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range customers {
		if customers[i].ID == id {
			return &customers[i], nil
		}
	}
	return nil, shared.NotFound(fmt.Sprintf("customer %s not found", id))
}

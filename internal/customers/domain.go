// Package customers holds the customer entity and its console workflows.
package customers

import "time"

// Customer is immutable once created; no update or delete exists.
type Customer struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Email     string    `json:"email"`
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CreateInput is the "create customer" form.
type CreateInput struct {
	Name    string `json:"name" validate:"required,max=200"`
	Phone   string `json:"phone" validate:"required,max=50"`
	Email   string `json:"email" validate:"required,email"`
	Address string `json:"address" validate:"required,max=500"`
}

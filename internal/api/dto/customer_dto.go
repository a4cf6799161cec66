package dto

import (
	"time"

	"github.com/spec-kit/repair-desk/internal/domain"
	"github.com/spec-kit/repair-desk/internal/service"
)

// CustomerRequest payload for create and update. Code is honored on create only.
type CustomerRequest struct {
	Code    string  `json:"code" validate:"omitempty,len=4,alpha"`
	Name    string  `json:"name" validate:"required,max=255"`
	Email   *string `json:"email" validate:"omitempty,max=255"`
	Phone   *string `json:"phone" validate:"omitempty,max=64"`
	Address *string `json:"address" validate:"omitempty,max=512"`
}

func (r CustomerRequest) Input() service.CustomerInput {
	return service.CustomerInput{
		Code:    r.Code,
		Name:    r.Name,
		Email:   r.Email,
		Phone:   r.Phone,
		Address: r.Address,
	}
}

// CustomerSyncRequest carries an import batch. Records without a name are skipped.
type CustomerSyncRequest struct {
	Customers []CustomerSyncRecord `json:"customers" validate:"required"`
}

// CustomerSyncRecord is one imported customer.
type CustomerSyncRecord struct {
	Name    string  `json:"name"`
	Email   *string `json:"email"`
	Phone   *string `json:"phone"`
	Address *string `json:"address"`
}

func (r CustomerSyncRequest) Inputs() []service.CustomerInput {
	inputs := make([]service.CustomerInput, 0, len(r.Customers))
	for _, c := range r.Customers {
		inputs = append(inputs, service.CustomerInput{
			Name:    c.Name,
			Email:   c.Email,
			Phone:   c.Phone,
			Address: c.Address,
		})
	}
	return inputs
}

// CustomerResponse representation.
type CustomerResponse struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Email     *string   `json:"email"`
	Phone     *string   `json:"phone"`
	Address   *string   `json:"address"`
	CreatedAt time.Time `json:"created_at"`
}

func NewCustomerResponse(c *domain.Customer) CustomerResponse {
	return CustomerResponse{
		ID:        c.ID,
		Code:      c.Code,
		Name:      c.Name,
		Email:     c.Email,
		Phone:     c.Phone,
		Address:   c.Address,
		CreatedAt: c.CreatedAt,
	}
}

func NewCustomerResponses(customers []domain.Customer) []CustomerResponse {
	out := make([]CustomerResponse, 0, len(customers))
	for i := range customers {
		out = append(out, NewCustomerResponse(&customers[i]))
	}
	return out
}

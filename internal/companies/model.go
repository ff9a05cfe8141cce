package companies

import (
	"fmt"
	"time"

	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/platform/httpx"
)

var ErrNotFound = fmt.Errorf("company not found: %w", httpx.ErrNotFound)

// Company is an account organisation. Companies are shared across teams.
type Company struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Industry  string    `json:"industry,omitempty"`
	Website   string    `json:"website,omitempty"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Address   string    `json:"address,omitempty"`
	CreatedBy int64     `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Input is the create and replace payload.
type Input struct {
	Name     string `json:"name" validate:"required,max=200"`
	Industry string `json:"industry" validate:"max=100"`
	Website  string `json:"website" validate:"omitempty,url,max=255"`
	Email    string `json:"email" validate:"omitempty,email,max=255"`
	Phone    string `json:"phone" validate:"max=50"`
	Address  string `json:"address" validate:"max=1000"`
}

// ListFilters narrows List.
type ListFilters struct {
	Page     int
	Limit    int
	Industry string
	Search   string
}

package communications

import (
	"fmt"
	"time"

	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/platform/httpx"
)

var ErrNotFound = fmt.Errorf("communication not found: %w", httpx.ErrNotFound)

// Channel is the medium a message travelled over.
type Channel string

const (
	ChannelEmail    Channel = "EMAIL"
	ChannelWhatsApp Channel = "WHATSAPP"
	ChannelSMS      Channel = "SMS"
	ChannelCall     Channel = "CALL"
)

// Direction is INBOUND or OUTBOUND relative to the company.
type Direction string

const (
	DirectionInbound  Direction = "INBOUND"
	DirectionOutbound Direction = "OUTBOUND"
)

// Communication is an append-only log entry of a customer interaction.
type Communication struct {
	ID         int64     `json:"id"`
	Channel    Channel   `json:"channel"`
	Direction  Direction `json:"direction"`
	Subject    string    `json:"subject,omitempty"`
	Body       string    `json:"body"`
	LeadID     *int64    `json:"lead_id,omitempty"`
	LeadName   string    `json:"lead_name,omitempty"`
	DealID     *int64    `json:"deal_id,omitempty"`
	UserID     int64     `json:"user_id"`
	UserName   string    `json:"user_name,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// CreateRequest logs a communication for the caller.
type CreateRequest struct {
	Channel    Channel    `json:"channel" validate:"required,oneof=EMAIL WHATSAPP SMS CALL"`
	Direction  Direction  `json:"direction" validate:"required,oneof=INBOUND OUTBOUND"`
	Subject    string     `json:"subject" validate:"max=200"`
	Body       string     `json:"body" validate:"required,max=20000"`
	LeadID     *int64     `json:"lead_id" validate:"omitempty,gt=0"`
	DealID     *int64     `json:"deal_id" validate:"omitempty,gt=0"`
	OccurredAt *time.Time `json:"occurred_at"`
}

// ListFilters narrows List.
type ListFilters struct {
	Page      int
	Limit     int
	Channel   string
	Direction string
	LeadID    *int64
	DealID    *int64
	From      *time.Time
	To        *time.Time
}

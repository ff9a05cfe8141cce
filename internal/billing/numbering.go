package billing

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/platform/db"
)

// DocType keys the document_sequences counter.
type DocType string

const (
	DocInvoice   DocType = "invoice"
	DocQuotation DocType = "quotation"
)

// MaxNumberAttempts bounds retries after a generated number collides.
const MaxNumberAttempts = 5

var (
	// ErrNumberTaken is returned by repositories when an insert hits the
	// unique index on the document number.
	ErrNumberTaken = errors.New("billing: document number taken")
	// ErrNumberExhausted means every generated candidate collided.
	ErrNumberExhausted = errors.New("billing: could not allocate a free document number")
)

// Format renders sequence values as document numbers.
type Format struct {
	Prefix string `json:"prefix"`
	Suffix string `json:"suffix"`
	Width  int    `json:"width"`
}

// DefaultInvoiceFormat renders INV-000001.
var DefaultInvoiceFormat = Format{Prefix: "INV-", Width: 6}

// DefaultQuotationFormat renders Q-000001.
var DefaultQuotationFormat = Format{Prefix: "Q-", Width: 6}

// Render returns prefix + zero padded seq + suffix. Values wider than Width
// are not truncated.
func (f Format) Render(seq int64) string {
	digits := strconv.FormatInt(seq, 10)
	if pad := f.Width - len(digits); pad > 0 {
		digits = strings.Repeat("0", pad) + digits
	}
	return f.Prefix + digits + f.Suffix
}

// Sequencer hands out monotonically increasing values per document type.
type Sequencer interface {
	Next(ctx context.Context, docType DocType) (int64, error)
}

// SequencerFunc adapts a function to Sequencer.
type SequencerFunc func(ctx context.Context, docType DocType) (int64, error)

// Next calls f.
func (f SequencerFunc) Next(ctx context.Context, docType DocType) (int64, error) {
	return f(ctx, docType)
}

// SequenceStore is the document_sequences counter. Bind it to the create
// transaction so the counter row lock is held until commit.
type SequenceStore struct {
	db db.DBTX
}

// NewSequenceStore constructs the store.
func NewSequenceStore(q db.DBTX) *SequenceStore {
	return &SequenceStore{db: q}
}

// Next atomically increments and returns the counter for docType.
func (s *SequenceStore) Next(ctx context.Context, docType DocType) (int64, error) {
	var seq int64
	err := s.db.QueryRow(ctx, `INSERT INTO document_sequences (doc_type, last_value)
VALUES ($1, 1)
ON CONFLICT (doc_type) DO UPDATE SET last_value = document_sequences.last_value + 1
RETURNING last_value`, string(docType)).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("billing: next %s sequence: %w", docType, err)
	}
	return seq, nil
}

// AllocateNumber draws numbers from seq and passes each to insert until one
// is accepted. insert signals a collision by returning ErrNumberTaken; any
// other error stops immediately.
func AllocateNumber(ctx context.Context, seq Sequencer, docType DocType, format Format, insert func(number string) error) (string, error) {
	for attempt := 0; attempt < MaxNumberAttempts; attempt++ {
		value, err := seq.Next(ctx, docType)
		if err != nil {
			return "", err
		}
		number := format.Render(value)
		err = insert(number)
		if err == nil {
			return number, nil
		}
		if !errors.Is(err, ErrNumberTaken) {
			return "", err
		}
	}
	return "", ErrNumberExhausted
}

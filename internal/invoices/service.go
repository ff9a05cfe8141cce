package invoices

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/access"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/billing"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/documents"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/filter"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/platform/httpx"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/platform/tracing"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/shared"
)

// ScopeResolver yields the caller's visible owner set.
type ScopeResolver interface {
	Resolve(ctx context.Context, callerID int64) (access.Result, error)
}

// NumberFormats supplies the configured document number format.
type NumberFormats interface {
	NumberFormat(ctx context.Context, docType billing.DocType) (billing.Format, error)
}

// PDFRenderer renders a loaded document.
type PDFRenderer interface {
	Render(ctx context.Context, load documents.Loader) (documents.Rendered, error)
}

// Notifier queues document e-mails.
type Notifier interface {
	DocumentSent(ctx context.Context, mail shared.DocumentMail) error
}

// EventRecorder counts document lifecycle events.
type EventRecorder interface {
	DocumentEvent(docType, event string)
}

// Deps are the collaborators of Service. Renderer, Notifier and Events may
// be nil.
type Deps struct {
	Repo     Repository
	Scope    ScopeResolver
	Numbers  NumberFormats
	Renderer PDFRenderer
	Notifier Notifier
	Events   EventRecorder
	Logger   *slog.Logger
	Now      func() time.Time
}

// Service implements invoice operations.
type Service struct {
	repo     Repository
	scope    ScopeResolver
	numbers  NumberFormats
	renderer PDFRenderer
	notifier Notifier
	events   EventRecorder
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs the service.
func NewService(d Deps) *Service {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Service{
		repo:     d.Repo,
		scope:    d.Scope,
		numbers:  d.Numbers,
		renderer: d.Renderer,
		notifier: d.Notifier,
		events:   d.Events,
		logger:   d.Logger,
		now:      d.Now,
	}
}

func (s *Service) event(name string) {
	if s.events != nil {
		s.events.DocumentEvent(shared.KindInvoice, name)
	}
}

func (s *Service) resolve(ctx context.Context, actor shared.Actor) (access.Result, error) {
	scope, err := s.scope.Resolve(ctx, actor.UserID)
	if err != nil {
		return access.Result{}, fmt.Errorf("invoices: resolve scope: %w", err)
	}
	return scope, nil
}

// visible loads id and hides it when the caller's scope does not cover it.
func visible(ctx context.Context, repo Repository, scope access.Result, id int64, lock bool) (Invoice, error) {
	var (
		inv Invoice
		err error
	)
	if lock {
		inv, err = repo.GetForUpdate(ctx, id)
	} else {
		inv, err = repo.Get(ctx, id)
	}
	if err != nil {
		return Invoice{}, err
	}
	if !scope.Allows(inv.CreatedBy) {
		return Invoice{}, ErrNotFound
	}
	return inv, nil
}

func checkItems(items []billing.ItemInput) error {
	for i, in := range items {
		if err := in.Check(); err != nil {
			return fmt.Errorf("%w: items[%d]: %v", httpx.ErrValidation, i, err)
		}
	}
	return nil
}

// Create stores the header and items atomically. A generated number is
// drawn from the counter and retried on collision; an explicit number that
// is taken yields ErrDuplicateNumber.
func (s *Service) Create(ctx context.Context, actor shared.Actor, req CreateRequest) (inv Invoice, err error) {
	ctx, span := tracing.Start(ctx, "invoices.Create")
	defer func() { tracing.End(span, err) }()

	if err := httpx.Validate(req); err != nil {
		return Invoice{}, err
	}
	if err := checkItems(req.Items); err != nil {
		return Invoice{}, err
	}
	format, err := s.numbers.NumberFormat(ctx, billing.DocInvoice)
	if err != nil {
		return Invoice{}, err
	}

	items := make([]billing.LineItem, len(req.Items))
	for i, in := range req.Items {
		items[i] = in.Item()
	}
	draft := Invoice{
		Number:           req.Number,
		Title:            req.Title,
		Status:           billing.StatusDraft,
		Currency:         req.Currency,
		TaxOverride:      req.TaxOverride,
		DiscountOverride: req.DiscountOverride,
		Notes:            req.Notes,
		LeadID:           req.LeadID,
		DealID:           req.DealID,
		CompanyID:        req.CompanyID,
		QuotationID:      req.QuotationID,
		CreatedBy:        actor.UserID,
		IssueDate:        s.now().UTC().Truncate(24 * time.Hour),
		DueDate:          req.DueDate,
	}
	if draft.Currency == "" {
		draft.Currency = "USD"
	}
	if req.IssueDate != nil {
		draft.IssueDate = *req.IssueDate
	}
	draft.Totals = billing.Recompute(items, draft.Overrides())

	var id int64
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		if draft.Number != "" {
			var err error
			id, err = tx.Insert(ctx, draft)
			if errors.Is(err, billing.ErrNumberTaken) {
				return ErrDuplicateNumber
			}
			if err != nil {
				return err
			}
		} else {
			seq := billing.SequencerFunc(func(ctx context.Context, _ billing.DocType) (int64, error) {
				return tx.NextSequence(ctx)
			})
			number, err := billing.AllocateNumber(ctx, seq, billing.DocInvoice, format, func(number string) error {
				attempt := draft
				attempt.Number = number
				var insertErr error
				id, insertErr = tx.Insert(ctx, attempt)
				return insertErr
			})
			if err != nil {
				return err
			}
			draft.Number = number
		}
		for _, it := range items {
			if _, err := tx.InsertItem(ctx, id, it); err != nil {
				return err
			}
		}
		return tx.Audit(ctx, shared.AuditLog{
			ActorID:  actor.UserID,
			Action:   "invoice.create",
			Entity:   "invoice",
			EntityID: strconv.FormatInt(id, 10),
			Meta:     map[string]any{"number": draft.Number, "total": draft.TotalAmount.String()},
		})
	})
	if err != nil {
		return Invoice{}, fmt.Errorf("invoices: create: %w", err)
	}
	span.SetAttributes(attribute.Int64("invoice.id", id), attribute.String("invoice.number", draft.Number))
	s.event("created")
	return s.load(ctx, id)
}

// load returns the invoice with its items without a scope check.
func (s *Service) load(ctx context.Context, id int64) (Invoice, error) {
	inv, err := s.repo.Get(ctx, id)
	if err != nil {
		return Invoice{}, err
	}
	inv.Items, err = s.repo.Items(ctx, id)
	if err != nil {
		return Invoice{}, err
	}
	return inv, nil
}

// Get returns one visible invoice with its items.
func (s *Service) Get(ctx context.Context, actor shared.Actor, id int64) (Invoice, error) {
	scope, err := s.resolve(ctx, actor)
	if err != nil {
		return Invoice{}, err
	}
	inv, err := visible(ctx, s.repo, scope, id, false)
	if err != nil {
		return Invoice{}, err
	}
	inv.Items, err = s.repo.Items(ctx, id)
	if err != nil {
		return Invoice{}, err
	}
	return inv, nil
}

// ByQuotation returns the live invoice created from quotationID.
func (s *Service) ByQuotation(ctx context.Context, quotationID int64) (Invoice, error) {
	return s.repo.ByQuotation(ctx, quotationID)
}

// listWhere combines the scope predicate with the business filters. The
// scope is one AND operand so its OR group is never flattened.
func listWhere(scope access.Result, f ListFilters) filter.Expr {
	conds := []filter.Expr{
		scope.Predicate("i.created_by"),
		filter.IsNull("i.deleted_at"),
	}
	if f.Status != "" {
		conds = append(conds, filter.Eq("i.status", f.Status))
	}
	if f.CompanyID != nil {
		conds = append(conds, filter.Eq("i.company_id", *f.CompanyID))
	}
	if f.From != nil {
		conds = append(conds, filter.Gte("i.issue_date", *f.From))
	}
	if f.To != nil {
		conds = append(conds, filter.Lte("i.issue_date", *f.To))
	}
	if f.Search != "" {
		conds = append(conds, filter.Or(filter.Contains("i.number", f.Search), filter.Contains("i.title", f.Search)))
	}
	return filter.And(conds...)
}

// List returns one page of visible invoices.
func (s *Service) List(ctx context.Context, actor shared.Actor, f ListFilters) ([]Invoice, shared.Pagination, error) {
	scope, err := s.resolve(ctx, actor)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	page, limit := shared.NormalizePage(f.Page, f.Limit)
	where := listWhere(scope, f)
	if filter.IsFalse(where) {
		return []Invoice{}, shared.NewPagination(page, limit, 0), nil
	}
	out, total, err := s.repo.List(ctx, where, limit, shared.Offset(page, limit))
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	if out == nil {
		out = []Invoice{}
	}
	return out, shared.NewPagination(page, limit, total), nil
}

// Update patches the header and recalculates, since overrides may change.
func (s *Service) Update(ctx context.Context, actor shared.Actor, id int64, req UpdateRequest) (inv Invoice, err error) {
	ctx, span := tracing.Start(ctx, "invoices.Update", attribute.Int64("invoice.id", id))
	defer func() { tracing.End(span, err) }()

	if err := httpx.Validate(req); err != nil {
		return Invoice{}, err
	}
	scope, err := s.resolve(ctx, actor)
	if err != nil {
		return Invoice{}, err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		current, err := visible(ctx, tx, scope, id, true)
		if err != nil {
			return err
		}
		applyUpdate(&current, req)
		if err := tx.UpdateHeader(ctx, current); err != nil {
			return err
		}
		if err := s.recalculate(ctx, tx, current); err != nil {
			return err
		}
		return tx.Audit(ctx, shared.AuditLog{ActorID: actor.UserID, Action: "invoice.update", Entity: "invoice", EntityID: strconv.FormatInt(id, 10)})
	})
	if err != nil {
		return Invoice{}, fmt.Errorf("invoices: update %d: %w", id, err)
	}
	return s.load(ctx, id)
}

func applyUpdate(inv *Invoice, req UpdateRequest) {
	if req.Title != nil {
		inv.Title = *req.Title
	}
	if req.Currency != nil {
		inv.Currency = *req.Currency
	}
	if req.IssueDate != nil {
		inv.IssueDate = *req.IssueDate
	}
	if req.DueDate != nil {
		inv.DueDate = req.DueDate
	}
	if req.ClearOverrides {
		inv.TaxOverride, inv.DiscountOverride = nil, nil
	}
	if req.TaxOverride != nil {
		inv.TaxOverride = req.TaxOverride
	}
	if req.DiscountOverride != nil {
		inv.DiscountOverride = req.DiscountOverride
	}
	if req.Notes != nil {
		inv.Notes = *req.Notes
	}
	if req.LeadID != nil {
		inv.LeadID = req.LeadID
	}
	if req.DealID != nil {
		inv.DealID = req.DealID
	}
	if req.CompanyID != nil {
		inv.CompanyID = req.CompanyID
	}
}

// Delete soft-deletes a visible invoice.
func (s *Service) Delete(ctx context.Context, actor shared.Actor, id int64) error {
	scope, err := s.resolve(ctx, actor)
	if err != nil {
		return err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		if _, err := visible(ctx, tx, scope, id, true); err != nil {
			return err
		}
		if err := tx.SoftDelete(ctx, id); err != nil {
			return err
		}
		return tx.Audit(ctx, shared.AuditLog{ActorID: actor.UserID, Action: "invoice.delete", Entity: "invoice", EntityID: strconv.FormatInt(id, 10)})
	})
	if err != nil {
		return fmt.Errorf("invoices: delete %d: %w", id, err)
	}
	s.event("deleted")
	return nil
}

// recalculate recomputes totals from every stored item of inv and, once
// money was received, re-derives the payment status against the new total.
// The caller holds the row lock.
func (s *Service) recalculate(ctx context.Context, tx Repository, inv Invoice) error {
	items, err := tx.Items(ctx, inv.ID)
	if err != nil {
		return err
	}
	totals := billing.Recompute(items, inv.Overrides())
	if err := tx.WriteTotals(ctx, inv.ID, totals); err != nil {
		return err
	}
	if inv.PaidAmount.IsPositive() {
		state := billing.DerivePaymentStatus(inv.PaymentState(), inv.PaidAmount, totals.TotalAmount, s.now())
		if err := tx.SetPaymentState(ctx, inv.ID, inv.PaidAmount, state); err != nil {
			return err
		}
	}
	return nil
}

// mutateItems runs fn and a full recalculation in one transaction holding
// the invoice row lock.
func (s *Service) mutateItems(ctx context.Context, actor shared.Actor, id int64, action string, fn func(ctx context.Context, tx Repository) error) (Invoice, error) {
	scope, err := s.resolve(ctx, actor)
	if err != nil {
		return Invoice{}, err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		inv, err := visible(ctx, tx, scope, id, true)
		if err != nil {
			return err
		}
		if err := fn(ctx, tx); err != nil {
			return err
		}
		if err := s.recalculate(ctx, tx, inv); err != nil {
			return err
		}
		return tx.Audit(ctx, shared.AuditLog{ActorID: actor.UserID, Action: action, Entity: "invoice", EntityID: strconv.FormatInt(id, 10)})
	})
	if err != nil {
		return Invoice{}, err
	}
	return s.load(ctx, id)
}

// AddItem appends an item and recalculates.
func (s *Service) AddItem(ctx context.Context, actor shared.Actor, id int64, in billing.ItemInput) (inv Invoice, err error) {
	ctx, span := tracing.Start(ctx, "invoices.AddItem", attribute.Int64("invoice.id", id))
	defer func() { tracing.End(span, err) }()

	if err := httpx.Validate(in); err != nil {
		return Invoice{}, err
	}
	if err := checkItems([]billing.ItemInput{in}); err != nil {
		return Invoice{}, err
	}
	inv, err = s.mutateItems(ctx, actor, id, "invoice.item.add", func(ctx context.Context, tx Repository) error {
		_, err := tx.InsertItem(ctx, id, in.Item())
		return err
	})
	if err != nil {
		return Invoice{}, fmt.Errorf("invoices: add item to %d: %w", id, err)
	}
	return inv, nil
}

// UpdateItem replaces an item and recalculates its invoice.
func (s *Service) UpdateItem(ctx context.Context, actor shared.Actor, itemID int64, in billing.ItemInput) (inv Invoice, err error) {
	ctx, span := tracing.Start(ctx, "invoices.UpdateItem", attribute.Int64("item.id", itemID))
	defer func() { tracing.End(span, err) }()

	if err := httpx.Validate(in); err != nil {
		return Invoice{}, err
	}
	if err := checkItems([]billing.ItemInput{in}); err != nil {
		return Invoice{}, err
	}
	current, err := s.repo.Item(ctx, itemID)
	if err != nil {
		return Invoice{}, err
	}
	inv, err = s.mutateItems(ctx, actor, current.DocumentID, "invoice.item.update", func(ctx context.Context, tx Repository) error {
		next := in.Item()
		next.ID = itemID
		next.DocumentID = current.DocumentID
		if next.SortOrder == 0 {
			next.SortOrder = current.SortOrder
		}
		_, err := tx.UpdateItem(ctx, next)
		return err
	})
	if err != nil {
		return Invoice{}, fmt.Errorf("invoices: update item %d: %w", itemID, err)
	}
	return inv, nil
}

// RemoveItem deletes an item and recalculates its invoice.
func (s *Service) RemoveItem(ctx context.Context, actor shared.Actor, itemID int64) (inv Invoice, err error) {
	ctx, span := tracing.Start(ctx, "invoices.RemoveItem", attribute.Int64("item.id", itemID))
	defer func() { tracing.End(span, err) }()

	current, err := s.repo.Item(ctx, itemID)
	if err != nil {
		return Invoice{}, err
	}
	inv, err = s.mutateItems(ctx, actor, current.DocumentID, "invoice.item.remove", func(ctx context.Context, tx Repository) error {
		return tx.DeleteItem(ctx, itemID)
	})
	if err != nil {
		return Invoice{}, fmt.Errorf("invoices: remove item %d: %w", itemID, err)
	}
	return inv, nil
}

// Recalculate recomputes the cached totals of a visible invoice.
func (s *Service) Recalculate(ctx context.Context, actor shared.Actor, id int64) (Invoice, error) {
	inv, err := s.mutateItems(ctx, actor, id, "invoice.recalculate", func(context.Context, Repository) error { return nil })
	if err != nil {
		return Invoice{}, fmt.Errorf("invoices: recalculate %d: %w", id, err)
	}
	return inv, nil
}

// MarkSent moves a DRAFT or SENT invoice to SENT and optionally queues the
// e-mail. A failed enqueue is logged, not returned.
func (s *Service) MarkSent(ctx context.Context, actor shared.Actor, id int64, req SendRequest) (inv Invoice, err error) {
	ctx, span := tracing.Start(ctx, "invoices.MarkSent", attribute.Int64("invoice.id", id))
	defer func() { tracing.End(span, err) }()

	if err := httpx.Validate(req); err != nil {
		return Invoice{}, err
	}
	scope, err := s.resolve(ctx, actor)
	if err != nil {
		return Invoice{}, err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		current, err := visible(ctx, tx, scope, id, true)
		if err != nil {
			return err
		}
		if !billing.InvoiceTransitions.Allows(current.Status, billing.StatusSent) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, billing.StatusSent)
		}
		if err := tx.SetSent(ctx, id, s.now()); err != nil {
			return err
		}
		return tx.Audit(ctx, shared.AuditLog{ActorID: actor.UserID, Action: "invoice.send", Entity: "invoice", EntityID: strconv.FormatInt(id, 10)})
	})
	if err != nil {
		return Invoice{}, fmt.Errorf("invoices: send %d: %w", id, err)
	}
	s.event("sent")
	if req.Email != "" && s.notifier != nil {
		mail := shared.DocumentMail{Kind: shared.KindInvoice, DocumentID: id, To: req.Email, ActorID: actor.UserID}
		if err := s.notifier.DocumentSent(ctx, mail); err != nil {
			s.logger.Warn("queue invoice email", slog.Int64("invoice_id", id), slog.Any("error", err))
		}
	}
	return s.load(ctx, id)
}

// RecordPayment appends a payment, sums every payment of the invoice and
// derives the status. A repeated idempotency key replays the first result.
func (s *Service) RecordPayment(ctx context.Context, actor shared.Actor, id int64, key string, req PaymentRequest) (res PaymentResult, err error) {
	ctx, span := tracing.Start(ctx, "invoices.RecordPayment", attribute.Int64("invoice.id", id))
	defer func() { tracing.End(span, err) }()

	if err := httpx.Validate(req); err != nil {
		return PaymentResult{}, err
	}
	if !req.Amount.IsPositive() {
		return PaymentResult{}, fmt.Errorf("%w: amount must be positive", httpx.ErrValidation)
	}
	scope, err := s.resolve(ctx, actor)
	if err != nil {
		return PaymentResult{}, err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		inv, err := visible(ctx, tx, scope, id, true)
		if err != nil {
			return err
		}
		if key != "" {
			paymentID, found, err := tx.LookupKey(ctx, key)
			if err != nil {
				return err
			}
			if found {
				res.Payment, err = tx.Payment(ctx, paymentID)
				if err != nil {
					return err
				}
				if res.Payment.InvoiceID != id {
					return fmt.Errorf("%w: idempotency key belongs to another invoice", httpx.ErrConflict)
				}
				res.Replayed = true
				return nil
			}
		}

		p := Payment{
			InvoiceID: id,
			Amount:    req.Amount,
			Currency:  req.Currency,
			Method:    req.Method,
			PaidOn:    s.now().UTC().Truncate(24 * time.Hour),
			Reference: req.Reference,
			CreatedBy: actor.UserID,
		}
		if p.Currency == "" {
			p.Currency = inv.Currency
		}
		if req.PaidOn != nil {
			p.PaidOn = *req.PaidOn
		}
		if p.Reference == "" {
			p.Reference = "PAY-" + uuid.NewString()
		}
		res.Payment, err = tx.InsertPayment(ctx, p)
		if err != nil {
			return err
		}
		paid, err := tx.PaymentTotal(ctx, id)
		if err != nil {
			return err
		}
		state := billing.DerivePaymentStatus(inv.PaymentState(), paid, inv.TotalAmount, s.now())
		if err := tx.SetPaymentState(ctx, id, paid, state); err != nil {
			return err
		}
		if key != "" {
			if err := tx.RememberKey(ctx, key, res.Payment.ID); err != nil {
				return err
			}
		}
		return tx.Audit(ctx, shared.AuditLog{
			ActorID:  actor.UserID,
			Action:   "invoice.payment",
			Entity:   "invoice",
			EntityID: strconv.FormatInt(id, 10),
			Meta:     map[string]any{"amount": req.Amount.String(), "paid": paid.String(), "status": string(state.Status)},
		})
	})
	if err != nil {
		return PaymentResult{}, fmt.Errorf("invoices: record payment on %d: %w", id, err)
	}
	if !res.Replayed {
		s.event("payment")
	}
	res.Invoice, err = s.load(ctx, id)
	if err != nil {
		return PaymentResult{}, err
	}
	return res, nil
}

// ListPayments returns the payments of a visible invoice.
func (s *Service) ListPayments(ctx context.Context, actor shared.Actor, id int64) ([]Payment, error) {
	scope, err := s.resolve(ctx, actor)
	if err != nil {
		return nil, err
	}
	if _, err := visible(ctx, s.repo, scope, id, false); err != nil {
		return nil, err
	}
	out, err := s.repo.Payments(ctx, id)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []Payment{}
	}
	return out, nil
}

// RenderPDF renders a visible invoice.
func (s *Service) RenderPDF(ctx context.Context, actor shared.Actor, id int64) (out documents.Rendered, err error) {
	ctx, span := tracing.Start(ctx, "invoices.RenderPDF", attribute.Int64("invoice.id", id))
	defer func() { tracing.End(span, err) }()

	if s.renderer == nil {
		return documents.Rendered{}, fmt.Errorf("invoices: %w: pdf renderer not configured", httpx.ErrUnavailable)
	}
	return s.renderer.Render(ctx, func(ctx context.Context) (documents.Document, error) {
		inv, err := s.Get(ctx, actor, id)
		if err != nil {
			return documents.Document{}, err
		}
		return inv.Document(), nil
	})
}

// RenderForDelivery renders id without a caller scope, for the mail worker.
func (s *Service) RenderForDelivery(ctx context.Context, id int64) (documents.Rendered, error) {
	if s.renderer == nil {
		return documents.Rendered{}, fmt.Errorf("invoices: %w: pdf renderer not configured", httpx.ErrUnavailable)
	}
	return s.renderer.Render(ctx, func(ctx context.Context) (documents.Document, error) {
		inv, err := s.load(ctx, id)
		if err != nil {
			return documents.Document{}, err
		}
		return inv.Document(), nil
	})
}

// Document converts the invoice to its printable view.
func (i Invoice) Document() documents.Document {
	paid := i.PaidAmount
	doc := documents.Document{
		Kind:      "Invoice",
		Number:    i.Number,
		Title:     i.Title,
		Status:    string(i.Status),
		Currency:  i.Currency,
		Notes:     i.Notes,
		IssueDate: i.IssueDate,
		DueLabel:  "Due date",
		DueDate:   i.DueDate,
		Items:     i.Items,
		Totals:    i.Totals,
	}
	if paid.IsPositive() {
		doc.PaidAmount = &paid
	}
	if i.CompanyName != "" {
		doc.BillTo = &documents.Party{Name: i.CompanyName}
	}
	return doc
}

// exportLimit caps a single CSV export.
const exportLimit = 10000

// ExportCSV writes every visible invoice matching f as CSV.
func (s *Service) ExportCSV(ctx context.Context, actor shared.Actor, f ListFilters, w io.Writer) error {
	scope, err := s.resolve(ctx, actor)
	if err != nil {
		return err
	}
	var out []Invoice
	if where := listWhere(scope, f); !filter.IsFalse(where) {
		out, _, err = s.repo.List(ctx, where, exportLimit, 0)
		if err != nil {
			return fmt.Errorf("invoices: export: %w", err)
		}
	}
	return writeCSV(w, out)
}

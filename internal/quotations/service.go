package quotations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/access"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/billing"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/documents"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/filter"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/invoices"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/platform/httpx"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/platform/tracing"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/shared"
)

// InvoiceCreator is the part of the invoice service conversion needs.
type InvoiceCreator interface {
	Create(ctx context.Context, actor shared.Actor, req invoices.CreateRequest) (invoices.Invoice, error)
	ByQuotation(ctx context.Context, quotationID int64) (invoices.Invoice, error)
}

// Deps are the collaborators of Service.
type Deps struct {
	Repo     Repository
	Invoices InvoiceCreator
	Scope    invoices.ScopeResolver
	Numbers  invoices.NumberFormats
	Renderer invoices.PDFRenderer
	Notifier invoices.Notifier
	Events   invoices.EventRecorder
	Logger   *slog.Logger
	Now      func() time.Time
}

// Service implements quotation operations.
type Service struct {
	repo     Repository
	invoices InvoiceCreator
	scope    invoices.ScopeResolver
	numbers  invoices.NumberFormats
	renderer invoices.PDFRenderer
	notifier invoices.Notifier
	events   invoices.EventRecorder
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
		invoices: d.Invoices,
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
		s.events.DocumentEvent(shared.KindQuotation, name)
	}
}

func (s *Service) resolve(ctx context.Context, actor shared.Actor) (access.Result, error) {
	scope, err := s.scope.Resolve(ctx, actor.UserID)
	if err != nil {
		return access.Result{}, fmt.Errorf("quotations: resolve scope: %w", err)
	}
	return scope, nil
}

func visible(ctx context.Context, repo Repository, scope access.Result, id int64, lock bool) (Quotation, error) {
	var (
		q   Quotation
		err error
	)
	if lock {
		q, err = repo.GetForUpdate(ctx, id)
	} else {
		q, err = repo.Get(ctx, id)
	}
	if err != nil {
		return Quotation{}, err
	}
	if !scope.Allows(q.CreatedBy) {
		return Quotation{}, ErrNotFound
	}
	return q, nil
}

func audit(actor shared.Actor, action string, id int64) shared.AuditLog {
	return shared.AuditLog{ActorID: actor.UserID, Action: action, Entity: "quotation", EntityID: strconv.FormatInt(id, 10)}
}

func checkItems(items []billing.ItemInput) error {
	for i, in := range items {
		if err := in.Check(); err != nil {
			return fmt.Errorf("%w: items[%d]: %v", httpx.ErrValidation, i, err)
		}
	}
	return nil
}

// Create stores the header and items atomically.
func (s *Service) Create(ctx context.Context, actor shared.Actor, req CreateRequest) (q Quotation, err error) {
	ctx, span := tracing.Start(ctx, "quotations.Create")
	defer func() { tracing.End(span, err) }()

	if err := httpx.Validate(req); err != nil {
		return Quotation{}, err
	}
	if err := checkItems(req.Items); err != nil {
		return Quotation{}, err
	}
	format, err := s.numbers.NumberFormat(ctx, billing.DocQuotation)
	if err != nil {
		return Quotation{}, err
	}

	items := make([]billing.LineItem, len(req.Items))
	for i, in := range req.Items {
		items[i] = in.Item()
	}
	draft := Quotation{
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
		CreatedBy:        actor.UserID,
		IssueDate:        s.now().UTC().Truncate(24 * time.Hour),
		ValidUntil:       req.ValidUntil,
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
			number, err := billing.AllocateNumber(ctx, seq, billing.DocQuotation, format, func(number string) error {
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
		return tx.Audit(ctx, audit(actor, "quotation.create", id))
	})
	if err != nil {
		return Quotation{}, fmt.Errorf("quotations: create: %w", err)
	}
	span.SetAttributes(attribute.Int64("quotation.id", id), attribute.String("quotation.number", draft.Number))
	s.event("created")
	return s.load(ctx, id)
}

func (s *Service) load(ctx context.Context, id int64) (Quotation, error) {
	q, err := s.repo.Get(ctx, id)
	if err != nil {
		return Quotation{}, err
	}
	q.Items, err = s.repo.Items(ctx, id)
	if err != nil {
		return Quotation{}, err
	}
	return q, nil
}

// Get returns one visible quotation with its items.
func (s *Service) Get(ctx context.Context, actor shared.Actor, id int64) (Quotation, error) {
	scope, err := s.resolve(ctx, actor)
	if err != nil {
		return Quotation{}, err
	}
	q, err := visible(ctx, s.repo, scope, id, false)
	if err != nil {
		return Quotation{}, err
	}
	q.Items, err = s.repo.Items(ctx, id)
	if err != nil {
		return Quotation{}, err
	}
	return q, nil
}

func listWhere(scope access.Result, f ListFilters) filter.Expr {
	conds := []filter.Expr{
		scope.Predicate("q.created_by"),
		filter.IsNull("q.deleted_at"),
	}
	if f.Status != "" {
		conds = append(conds, filter.Eq("q.status", f.Status))
	}
	if f.CompanyID != nil {
		conds = append(conds, filter.Eq("q.company_id", *f.CompanyID))
	}
	if f.From != nil {
		conds = append(conds, filter.Gte("q.issue_date", *f.From))
	}
	if f.To != nil {
		conds = append(conds, filter.Lte("q.issue_date", *f.To))
	}
	if f.Search != "" {
		conds = append(conds, filter.Or(filter.Contains("q.number", f.Search), filter.Contains("q.title", f.Search)))
	}
	return filter.And(conds...)
}

// List returns one page of visible quotations.
func (s *Service) List(ctx context.Context, actor shared.Actor, f ListFilters) ([]Quotation, shared.Pagination, error) {
	scope, err := s.resolve(ctx, actor)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	page, limit := shared.NormalizePage(f.Page, f.Limit)
	where := listWhere(scope, f)
	if filter.IsFalse(where) {
		return []Quotation{}, shared.NewPagination(page, limit, 0), nil
	}
	out, total, err := s.repo.List(ctx, where, limit, shared.Offset(page, limit))
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	if out == nil {
		out = []Quotation{}
	}
	return out, shared.NewPagination(page, limit, total), nil
}

// Update patches the header and recalculates.
func (s *Service) Update(ctx context.Context, actor shared.Actor, id int64, req UpdateRequest) (q Quotation, err error) {
	ctx, span := tracing.Start(ctx, "quotations.Update", attribute.Int64("quotation.id", id))
	defer func() { tracing.End(span, err) }()

	if err := httpx.Validate(req); err != nil {
		return Quotation{}, err
	}
	scope, err := s.resolve(ctx, actor)
	if err != nil {
		return Quotation{}, err
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
		if err := recalculate(ctx, tx, current); err != nil {
			return err
		}
		return tx.Audit(ctx, audit(actor, "quotation.update", id))
	})
	if err != nil {
		return Quotation{}, fmt.Errorf("quotations: update %d: %w", id, err)
	}
	return s.load(ctx, id)
}

func applyUpdate(q *Quotation, req UpdateRequest) {
	if req.Title != nil {
		q.Title = *req.Title
	}
	if req.Currency != nil {
		q.Currency = *req.Currency
	}
	if req.IssueDate != nil {
		q.IssueDate = *req.IssueDate
	}
	if req.ValidUntil != nil {
		q.ValidUntil = req.ValidUntil
	}
	if req.ClearOverrides {
		q.TaxOverride, q.DiscountOverride = nil, nil
	}
	if req.TaxOverride != nil {
		q.TaxOverride = req.TaxOverride
	}
	if req.DiscountOverride != nil {
		q.DiscountOverride = req.DiscountOverride
	}
	if req.Notes != nil {
		q.Notes = *req.Notes
	}
	if req.LeadID != nil {
		q.LeadID = req.LeadID
	}
	if req.DealID != nil {
		q.DealID = req.DealID
	}
	if req.CompanyID != nil {
		q.CompanyID = req.CompanyID
	}
}

// Delete soft-deletes a visible quotation.
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
		return tx.Audit(ctx, audit(actor, "quotation.delete", id))
	})
	if err != nil {
		return fmt.Errorf("quotations: delete %d: %w", id, err)
	}
	s.event("deleted")
	return nil
}

func recalculate(ctx context.Context, tx Repository, q Quotation) error {
	items, err := tx.Items(ctx, q.ID)
	if err != nil {
		return err
	}
	return tx.WriteTotals(ctx, q.ID, billing.Recompute(items, q.Overrides()))
}

func (s *Service) mutateItems(ctx context.Context, actor shared.Actor, id int64, action string, fn func(ctx context.Context, tx Repository) error) (Quotation, error) {
	scope, err := s.resolve(ctx, actor)
	if err != nil {
		return Quotation{}, err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		q, err := visible(ctx, tx, scope, id, true)
		if err != nil {
			return err
		}
		if err := fn(ctx, tx); err != nil {
			return err
		}
		if err := recalculate(ctx, tx, q); err != nil {
			return err
		}
		return tx.Audit(ctx, audit(actor, action, id))
	})
	if err != nil {
		return Quotation{}, err
	}
	return s.load(ctx, id)
}

// AddItem appends an item and recalculates.
func (s *Service) AddItem(ctx context.Context, actor shared.Actor, id int64, in billing.ItemInput) (q Quotation, err error) {
	ctx, span := tracing.Start(ctx, "quotations.AddItem", attribute.Int64("quotation.id", id))
	defer func() { tracing.End(span, err) }()

	if err := httpx.Validate(in); err != nil {
		return Quotation{}, err
	}
	if err := checkItems([]billing.ItemInput{in}); err != nil {
		return Quotation{}, err
	}
	q, err = s.mutateItems(ctx, actor, id, "quotation.item.add", func(ctx context.Context, tx Repository) error {
		_, err := tx.InsertItem(ctx, id, in.Item())
		return err
	})
	if err != nil {
		return Quotation{}, fmt.Errorf("quotations: add item to %d: %w", id, err)
	}
	return q, nil
}

// UpdateItem replaces an item and recalculates its quotation.
func (s *Service) UpdateItem(ctx context.Context, actor shared.Actor, itemID int64, in billing.ItemInput) (q Quotation, err error) {
	ctx, span := tracing.Start(ctx, "quotations.UpdateItem", attribute.Int64("item.id", itemID))
	defer func() { tracing.End(span, err) }()

	if err := httpx.Validate(in); err != nil {
		return Quotation{}, err
	}
	if err := checkItems([]billing.ItemInput{in}); err != nil {
		return Quotation{}, err
	}
	current, err := s.repo.Item(ctx, itemID)
	if err != nil {
		return Quotation{}, err
	}
	q, err = s.mutateItems(ctx, actor, current.DocumentID, "quotation.item.update", func(ctx context.Context, tx Repository) error {
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
		return Quotation{}, fmt.Errorf("quotations: update item %d: %w", itemID, err)
	}
	return q, nil
}

// RemoveItem deletes an item and recalculates its quotation.
func (s *Service) RemoveItem(ctx context.Context, actor shared.Actor, itemID int64) (q Quotation, err error) {
	ctx, span := tracing.Start(ctx, "quotations.RemoveItem", attribute.Int64("item.id", itemID))
	defer func() { tracing.End(span, err) }()

	current, err := s.repo.Item(ctx, itemID)
	if err != nil {
		return Quotation{}, err
	}
	q, err = s.mutateItems(ctx, actor, current.DocumentID, "quotation.item.remove", func(ctx context.Context, tx Repository) error {
		return tx.DeleteItem(ctx, itemID)
	})
	if err != nil {
		return Quotation{}, fmt.Errorf("quotations: remove item %d: %w", itemID, err)
	}
	return q, nil
}

// Recalculate recomputes the cached totals.
func (s *Service) Recalculate(ctx context.Context, actor shared.Actor, id int64) (Quotation, error) {
	q, err := s.mutateItems(ctx, actor, id, "quotation.recalculate", func(context.Context, Repository) error { return nil })
	if err != nil {
		return Quotation{}, fmt.Errorf("quotations: recalculate %d: %w", id, err)
	}
	return q, nil
}

// transition moves a visible quotation to change.Status when the
// transition table allows it.
func (s *Service) transition(ctx context.Context, actor shared.Actor, id int64, change StatusChange) (Quotation, error) {
	scope, err := s.resolve(ctx, actor)
	if err != nil {
		return Quotation{}, err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		current, err := visible(ctx, tx, scope, id, true)
		if err != nil {
			return err
		}
		if !billing.QuotationTransitions.Allows(current.Status, change.Status) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, change.Status)
		}
		if err := tx.SetStatus(ctx, id, change); err != nil {
			return err
		}
		log := audit(actor, "quotation.status", id)
		log.Meta = map[string]any{"from": string(current.Status), "to": string(change.Status)}
		if change.Reason != "" {
			log.Meta["reason"] = change.Reason
		}
		return tx.Audit(ctx, log)
	})
	if err != nil {
		return Quotation{}, fmt.Errorf("quotations: %s %d: %w", change.Status, id, err)
	}
	s.event(strings.ToLower(string(change.Status)))
	return s.load(ctx, id)
}

// MarkSent moves a DRAFT quotation to SENT and optionally queues the e-mail.
func (s *Service) MarkSent(ctx context.Context, actor shared.Actor, id int64, req SendRequest) (q Quotation, err error) {
	ctx, span := tracing.Start(ctx, "quotations.MarkSent", attribute.Int64("quotation.id", id))
	defer func() { tracing.End(span, err) }()

	if err := httpx.Validate(req); err != nil {
		return Quotation{}, err
	}
	q, err = s.transition(ctx, actor, id, StatusChange{Status: billing.StatusSent, At: s.now()})
	if err != nil {
		return Quotation{}, err
	}
	if req.Email != "" && s.notifier != nil {
		mail := shared.DocumentMail{Kind: shared.KindQuotation, DocumentID: id, To: req.Email, ActorID: actor.UserID}
		if err := s.notifier.DocumentSent(ctx, mail); err != nil {
			s.logger.Warn("queue quotation email", slog.Int64("quotation_id", id), slog.Any("error", err))
		}
	}
	return q, nil
}

// MarkAccepted accepts a DRAFT or SENT quotation.
func (s *Service) MarkAccepted(ctx context.Context, actor shared.Actor, id int64) (q Quotation, err error) {
	ctx, span := tracing.Start(ctx, "quotations.MarkAccepted", attribute.Int64("quotation.id", id))
	defer func() { tracing.End(span, err) }()
	return s.transition(ctx, actor, id, StatusChange{Status: billing.StatusAccepted, At: s.now()})
}

// MarkRejected rejects a DRAFT or SENT quotation with an optional reason.
func (s *Service) MarkRejected(ctx context.Context, actor shared.Actor, id int64, req RejectRequest) (q Quotation, err error) {
	ctx, span := tracing.Start(ctx, "quotations.MarkRejected", attribute.Int64("quotation.id", id))
	defer func() { tracing.End(span, err) }()

	if err := httpx.Validate(req); err != nil {
		return Quotation{}, err
	}
	return s.transition(ctx, actor, id, StatusChange{Status: billing.StatusRejected, At: s.now(), Reason: req.Reason})
}

// GenerateInvoice copies the header and items into a new invoice and links
// both documents. REJECTED or already converted quotations are refused; the
// quotation status itself is left unchanged.
func (s *Service) GenerateInvoice(ctx context.Context, actor shared.Actor, id int64) (inv invoices.Invoice, err error) {
	ctx, span := tracing.Start(ctx, "quotations.GenerateInvoice", attribute.Int64("quotation.id", id))
	defer func() { tracing.End(span, err) }()

	q, err := s.Get(ctx, actor, id)
	if err != nil {
		return invoices.Invoice{}, err
	}
	if q.Status == billing.StatusRejected {
		return invoices.Invoice{}, fmt.Errorf("%w: rejected quotation cannot be invoiced", ErrInvalidTransition)
	}
	if q.ConvertedInvoiceID != nil {
		return invoices.Invoice{}, ErrAlreadyConverted
	}

	req := invoices.CreateRequest{
		Title:            q.Title,
		Currency:         q.Currency,
		TaxOverride:      q.TaxOverride,
		DiscountOverride: q.DiscountOverride,
		Notes:            q.Notes,
		LeadID:           q.LeadID,
		DealID:           q.DealID,
		CompanyID:        q.CompanyID,
		QuotationID:      &q.ID,
	}
	for _, it := range q.Items {
		req.Items = append(req.Items, it.Input())
	}
	inv, err = s.invoices.Create(ctx, actor, req)
	if errors.Is(err, invoices.ErrAlreadyConverted) {
		// An earlier conversion created the invoice but did not link it.
		if existing, lookupErr := s.invoices.ByQuotation(ctx, id); lookupErr == nil {
			if linkErr := s.link(ctx, actor, id, existing.ID); linkErr != nil {
				s.logger.Warn("relink converted invoice",
					slog.Int64("quotation_id", id), slog.Int64("invoice_id", existing.ID), slog.Any("error", linkErr))
			}
		}
		return invoices.Invoice{}, ErrAlreadyConverted
	}
	if err != nil {
		return invoices.Invoice{}, fmt.Errorf("quotations: generate invoice from %d: %w", id, err)
	}
	if err := s.link(ctx, actor, id, inv.ID); err != nil {
		return invoices.Invoice{}, fmt.Errorf("quotations: link invoice %d to %d: %w", inv.ID, id, err)
	}
	s.event("converted")
	return inv, nil
}

func (s *Service) link(ctx context.Context, actor shared.Actor, id, invoiceID int64) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		if err := tx.SetConverted(ctx, id, invoiceID); err != nil {
			return err
		}
		log := audit(actor, "quotation.convert", id)
		log.Meta = map[string]any{"invoice_id": invoiceID}
		return tx.Audit(ctx, log)
	})
}

// RenderPDF renders a visible quotation.
func (s *Service) RenderPDF(ctx context.Context, actor shared.Actor, id int64) (out documents.Rendered, err error) {
	ctx, span := tracing.Start(ctx, "quotations.RenderPDF", attribute.Int64("quotation.id", id))
	defer func() { tracing.End(span, err) }()

	if s.renderer == nil {
		return documents.Rendered{}, fmt.Errorf("quotations: %w: pdf renderer not configured", httpx.ErrUnavailable)
	}
	return s.renderer.Render(ctx, func(ctx context.Context) (documents.Document, error) {
		q, err := s.Get(ctx, actor, id)
		if err != nil {
			return documents.Document{}, err
		}
		return q.Document(), nil
	})
}

// RenderForDelivery renders id without a caller scope, for the mail worker.
func (s *Service) RenderForDelivery(ctx context.Context, id int64) (documents.Rendered, error) {
	if s.renderer == nil {
		return documents.Rendered{}, fmt.Errorf("quotations: %w: pdf renderer not configured", httpx.ErrUnavailable)
	}
	return s.renderer.Render(ctx, func(ctx context.Context) (documents.Document, error) {
		q, err := s.load(ctx, id)
		if err != nil {
			return documents.Document{}, err
		}
		return q.Document(), nil
	})
}

// Document converts the quotation to its printable view.
func (q Quotation) Document() documents.Document {
	doc := documents.Document{
		Kind:      "Quotation",
		Number:    q.Number,
		Title:     q.Title,
		Status:    string(q.Status),
		Currency:  q.Currency,
		Notes:     q.Notes,
		IssueDate: q.IssueDate,
		DueLabel:  "Valid until",
		DueDate:   q.ValidUntil,
		Items:     q.Items,
		Totals:    q.Totals,
	}
	if q.CompanyName != "" {
		doc.BillTo = &documents.Party{Name: q.CompanyName}
	}
	return doc
}

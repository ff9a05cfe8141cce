package communications

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/filter"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/platform/db"
)

// Repository is the communication log store.
type Repository interface {
	List(ctx context.Context, where filter.Expr, limit, offset int) ([]Communication, int, error)
	Get(ctx context.Context, id int64) (Communication, error)
	Insert(ctx context.Context, c Communication) (int64, error)
}

type pgRepository struct {
	db db.DBTX
}

// NewRepository constructs the PostgreSQL repository.
func NewRepository(q db.DBTX) Repository {
	return &pgRepository{db: q}
}

const selectCommunication = `SELECT c.id, c.channel, c.direction, COALESCE(c.subject, ''), c.body, c.lead_id, COALESCE(l.name, ''),
	c.deal_id, c.user_id, COALESCE(u.name, ''), c.occurred_at, c.created_at
FROM communications c
LEFT JOIN leads l ON l.id = c.lead_id
LEFT JOIN users u ON u.id = c.user_id`

func scanCommunication(row pgx.Row) (Communication, error) {
	var c Communication
	err := row.Scan(&c.ID, &c.Channel, &c.Direction, &c.Subject, &c.Body, &c.LeadID, &c.LeadName,
		&c.DealID, &c.UserID, &c.UserName, &c.OccurredAt, &c.CreatedAt)
	return c, err
}

func (r *pgRepository) List(ctx context.Context, where filter.Expr, limit, offset int) ([]Communication, int, error) {
	clause, args := filter.Where(where)
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM communications c WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("communications: count: %w", err)
	}
	limitMark, args := filter.Placeholder(args, limit)
	offsetMark, args := filter.Placeholder(args, offset)
	rows, err := r.db.Query(ctx, selectCommunication+` WHERE `+clause+
		` ORDER BY c.occurred_at DESC, c.id DESC LIMIT `+limitMark+` OFFSET `+offsetMark, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("communications: list: %w", err)
	}
	defer rows.Close()
	var out []Communication
	for rows.Next() {
		c, err := scanCommunication(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

func (r *pgRepository) Get(ctx context.Context, id int64) (Communication, error) {
	c, err := scanCommunication(r.db.QueryRow(ctx, selectCommunication+` WHERE c.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Communication{}, ErrNotFound
	}
	return c, err
}

func (r *pgRepository) Insert(ctx context.Context, c Communication) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `INSERT INTO communications (channel, direction, subject, body, lead_id, deal_id, user_id, occurred_at)
VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8) RETURNING id`,
		c.Channel, c.Direction, c.Subject, c.Body, c.LeadID, c.DealID, c.UserID, c.OccurredAt).Scan(&id)
	return id, err
}

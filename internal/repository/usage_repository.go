package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/listkeep/invite-service/internal/model"
	"github.com/listkeep/invite-service/internal/service"
	"github.com/listkeep/invite-service/pkg/database"
)

// UsagePoolInterface defines the database operations needed by UsageRepository.
type UsagePoolInterface interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// UsageRepository provides data access for code usage rows using pgx.
// Usage rows are append-only; this repository exposes no update or delete.
type UsageRepository struct {
	pool UsagePoolInterface
}

// NewUsageRepository creates a new UsageRepository with the given pool.
func NewUsageRepository(pool *pgxpool.Pool) *UsageRepository {
	return &UsageRepository{pool: pool}
}

// NewUsageRepositoryWithPool creates a new UsageRepository with a custom pool interface.
// This is primarily used for testing.
func NewUsageRepositoryWithPool(pool UsagePoolInterface) *UsageRepository {
	return &UsageRepository{pool: pool}
}

// Insert records a redemption within a transaction.
// Returns service.ErrAlreadyUsed if the (code, user) pair already has a row;
// the UNIQUE constraint on (code_id, user_id) is the authoritative guard.
func (r *UsageRepository) Insert(ctx context.Context, tx database.TxQuerier, usage *model.CodeUsage) error {
	query := `INSERT INTO invitation_code_usages (id, code_id, user_id, ip_address, user_agent)
		VALUES ($1, $2, $3, nullif($4, ''), nullif($5, ''))
		RETURNING used_at`

	err := tx.QueryRow(ctx, query,
		usage.ID, usage.CodeID, usage.UserID, usage.IPAddress, usage.UserAgent,
	).Scan(&usage.UsedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return service.ErrAlreadyUsed
		}
		return fmt.Errorf("insert code usage: %w", err)
	}
	return nil
}

// CountByCode returns how many usage rows reference a code.
func (r *UsageRepository) CountByCode(ctx context.Context, codeID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM invitation_code_usages WHERE code_id = $1`, codeID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count usages for code %s: %w", codeID, err)
	}
	return count, nil
}

// ListByCode returns one page of a code's usage history, newest first, with
// redeemer display names resolved.
func (r *UsageRepository) ListByCode(ctx context.Context, codeID uuid.UUID, page, pageSize int) ([]model.CodeUsageDetail, error) {
	query := `SELECT u.id, u.code_id, u.user_id, u.used_at,
			coalesce(u.ip_address, ''), coalesce(u.user_agent, ''), usr.display_name
		FROM invitation_code_usages u
		JOIN users usr ON usr.id = u.user_id
		WHERE u.code_id = $1
		ORDER BY u.used_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, codeID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, fmt.Errorf("list usages for code %s: %w", codeID, err)
	}
	defer rows.Close()

	items := []model.CodeUsageDetail{}
	for rows.Next() {
		var d model.CodeUsageDetail
		if err := rows.Scan(&d.ID, &d.CodeID, &d.UserID, &d.UsedAt,
			&d.IPAddress, &d.UserAgent, &d.UserDisplayName); err != nil {
			return nil, fmt.Errorf("scan usage row: %w", err)
		}
		items = append(items, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate usage rows: %w", err)
	}
	return items, nil
}

// ListByUser returns every redemption a user has made, newest first.
func (r *UsageRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.UserCodeUsage, error) {
	query := `SELECT u.id, u.code_id, u.user_id, u.used_at,
			coalesce(u.ip_address, ''), coalesce(u.user_agent, ''), c.code
		FROM invitation_code_usages u
		JOIN invitation_codes c ON c.id = u.code_id
		WHERE u.user_id = $1
		ORDER BY u.used_at DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list usages for user %s: %w", userID, err)
	}
	defer rows.Close()

	items := []model.UserCodeUsage{}
	for rows.Next() {
		var u model.UserCodeUsage
		if err := rows.Scan(&u.ID, &u.CodeID, &u.UserID, &u.UsedAt,
			&u.IPAddress, &u.UserAgent, &u.Code); err != nil {
			return nil, fmt.Errorf("scan user usage row: %w", err)
		}
		items = append(items, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user usage rows: %w", err)
	}
	return items, nil
}

// CountWindows returns the usage counters of the stats endpoint: all-time,
// since UTC midnight, since the UTC start of the ISO week (Monday) and since
// the first of the UTC month. Optionally scoped to codes of one creator.
func (r *UsageRepository) CountWindows(ctx context.Context, createdBy *uuid.UUID) (total, today, week, month int, err error) {
	query := `SELECT
			count(*),
			count(*) FILTER (WHERE u.used_at >= date_trunc('day', now() at time zone 'utc') at time zone 'utc'),
			count(*) FILTER (WHERE u.used_at >= date_trunc('week', now() at time zone 'utc') at time zone 'utc'),
			count(*) FILTER (WHERE u.used_at >= date_trunc('month', now() at time zone 'utc') at time zone 'utc')
		FROM invitation_code_usages u
		JOIN invitation_codes c ON c.id = u.code_id
		WHERE ($1::uuid IS NULL OR c.created_by = $1)`

	err = r.pool.QueryRow(ctx, query, createdBy).Scan(&total, &today, &week, &month)
	if err != nil {
		return 0, 0, 0, 0, fmt.Errorf("count usage windows: %w", err)
	}
	return total, today, week, month, nil
}

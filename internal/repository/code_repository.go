package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/listkeep/invite-service/internal/model"
	"github.com/listkeep/invite-service/internal/service"
	"github.com/listkeep/invite-service/pkg/database"
)

// PoolInterface defines the database operations needed by repositories.
// This allows for easier testing with mocks.
type PoolInterface interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const codeColumns = `id, code, description, max_uses, used_count, expires_at, status, created_by, created_at, updated_at`

// CodeRepository provides data access for invitation codes using pgx.
type CodeRepository struct {
	pool PoolInterface
}

// NewCodeRepository creates a new CodeRepository with the given pool.
func NewCodeRepository(pool *pgxpool.Pool) *CodeRepository {
	return &CodeRepository{pool: pool}
}

// NewCodeRepositoryWithPool creates a new CodeRepository with a custom pool interface.
// This is primarily used for testing.
func NewCodeRepositoryWithPool(pool PoolInterface) *CodeRepository {
	return &CodeRepository{pool: pool}
}

func scanCode(row pgx.Row, c *model.InvitationCode) error {
	return row.Scan(
		&c.ID,
		&c.Code,
		&c.Description,
		&c.MaxUses,
		&c.UsedCount,
		&c.ExpiresAt,
		&c.Status,
		&c.CreatedBy,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
}

// Insert inserts a new invitation code.
// Returns service.ErrCodeExists if the code string is already taken.
func (r *CodeRepository) Insert(ctx context.Context, code *model.InvitationCode) error {
	query := `INSERT INTO invitation_codes (id, code, description, max_uses, expires_at, status, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING used_count, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		code.ID, code.Code, code.Description, code.MaxUses, code.ExpiresAt, code.Status, code.CreatedBy,
	).Scan(&code.UsedCount, &code.CreatedAt, &code.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return service.ErrCodeExists
		}
		return fmt.Errorf("insert invitation code: %w", err)
	}
	return nil
}

// GetByCode retrieves an invitation code by its code string.
// Returns nil, nil if not found (service layer handles this).
func (r *CodeRepository) GetByCode(ctx context.Context, code string) (*model.InvitationCode, error) {
	query := `SELECT ` + codeColumns + ` FROM invitation_codes WHERE code = $1`

	var c model.InvitationCode
	err := scanCode(r.pool.QueryRow(ctx, query, code), &c)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found - let service handle
		}
		return nil, fmt.Errorf("get invitation code %s: %w", code, err)
	}
	return &c, nil
}

// GetByID retrieves an invitation code by id.
// Returns nil, nil if not found.
func (r *CodeRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.InvitationCode, error) {
	query := `SELECT ` + codeColumns + ` FROM invitation_codes WHERE id = $1`

	var c model.InvitationCode
	err := scanCode(r.pool.QueryRow(ctx, query, id), &c)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get invitation code by id %s: %w", id, err)
	}
	return &c, nil
}

// GetForUpdate retrieves an invitation code with a row lock (SELECT FOR UPDATE).
// The lock is held until the surrounding transaction completes.
// Returns service.ErrCodeNotFound if the code doesn't exist.
func (r *CodeRepository) GetForUpdate(ctx context.Context, tx database.TxQuerier, code string) (*model.InvitationCode, error) {
	query := `SELECT ` + codeColumns + ` FROM invitation_codes WHERE code = $1 FOR UPDATE`

	var c model.InvitationCode
	err := scanCode(tx.QueryRow(ctx, query, code), &c)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, service.ErrCodeNotFound
		}
		return nil, fmt.Errorf("get invitation code for update %s: %w", code, err)
	}
	return &c, nil
}

// IncrementUsage increments used_count by 1, guarded so the counter can never
// pass max_uses even if a caller skips the row lock.
// Must be called within a transaction.
// Returns service.ErrCodeExhausted when the guard rejects the increment.
func (r *CodeRepository) IncrementUsage(ctx context.Context, tx database.TxQuerier, id uuid.UUID) error {
	query := `UPDATE invitation_codes
		SET used_count = used_count + 1, updated_at = now()
		WHERE id = $1 AND used_count < max_uses`

	tag, err := tx.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("increment usage for %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return service.ErrCodeExhausted
	}
	return nil
}

// Update applies a partial update; nil fields are left untouched.
// updated_at is always refreshed.
// Returns service.ErrCodeNotFound if the id does not resolve.
func (r *CodeRepository) Update(ctx context.Context, id uuid.UUID, req *model.UpdateCodeRequest) (*model.InvitationCode, error) {
	sets := []string{"updated_at = now()"}
	args := []any{id}

	if req.MaxUses != nil {
		args = append(args, *req.MaxUses)
		sets = append(sets, fmt.Sprintf("max_uses = $%d", len(args)))
	}
	if req.ExpiresAt != nil {
		args = append(args, *req.ExpiresAt)
		sets = append(sets, fmt.Sprintf("expires_at = $%d", len(args)))
	}
	if req.Status != nil {
		args = append(args, *req.Status)
		sets = append(sets, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `UPDATE invitation_codes SET ` + strings.Join(sets, ", ") +
		` WHERE id = $1 RETURNING ` + codeColumns

	var c model.InvitationCode
	err := scanCode(r.pool.QueryRow(ctx, query, args...), &c)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, service.ErrCodeNotFound
		}
		return nil, fmt.Errorf("update invitation code %s: %w", id, err)
	}
	return &c, nil
}

// SetStatus switches a code between active and disabled.
// Returns service.ErrCodeNotFound if the id does not resolve.
func (r *CodeRepository) SetStatus(ctx context.Context, id uuid.UUID, status string) error {
	query := `UPDATE invitation_codes SET status = $2, updated_at = now() WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("set status for %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return service.ErrCodeNotFound
	}
	return nil
}

// Delete removes a code row.
// Returns service.ErrCodeNotFound if the id does not resolve and
// service.ErrCodeInUse if usage rows still reference the code.
func (r *CodeRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM invitation_codes WHERE id = $1`, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			// FK violation from invitation_code_usages
			return service.ErrCodeInUse
		}
		return fmt.Errorf("delete invitation code %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return service.ErrCodeNotFound
	}
	return nil
}

// List returns one page of codes matching the filter, newest first, along
// with the total match count.
func (r *CodeRepository) List(ctx context.Context, filter model.ListCodesFilter) ([]model.InvitationCode, int, error) {
	where := []string{"true"}
	args := []any{}

	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.CreatedBy != nil {
		args = append(args, *filter.CreatedBy)
		where = append(where, fmt.Sprintf("created_by = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		where = append(where, fmt.Sprintf("code ILIKE $%d", len(args)))
	}
	if !filter.IncludeExpired {
		where = append(where, "(expires_at IS NULL OR expires_at >= now())")
	}
	cond := strings.Join(where, " AND ")

	var total int
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM invitation_codes WHERE `+cond, args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count invitation codes: %w", err)
	}

	args = append(args, filter.PageSize, filter.Offset())
	query := fmt.Sprintf(`SELECT %s FROM invitation_codes WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		codeColumns, cond, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list invitation codes: %w", err)
	}
	defer rows.Close()

	items := []model.InvitationCode{}
	for rows.Next() {
		var c model.InvitationCode
		if err := scanCode(rows, &c); err != nil {
			return nil, 0, fmt.Errorf("scan invitation code: %w", err)
		}
		items = append(items, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate invitation code rows: %w", err)
	}

	return items, total, nil
}

// CountByStatus returns the code counters of the stats endpoint, optionally
// scoped to a single creator. A disabled code that is also past its expiry
// counts as disabled and expired, matching the listing filters.
func (r *CodeRepository) CountByStatus(ctx context.Context, createdBy *uuid.UUID) (total, active, disabled, expired int, err error) {
	query := `SELECT
			count(*),
			count(*) FILTER (WHERE status = 'active'),
			count(*) FILTER (WHERE status = 'disabled'),
			count(*) FILTER (WHERE expires_at IS NOT NULL AND expires_at < now())
		FROM invitation_codes
		WHERE ($1::uuid IS NULL OR created_by = $1)`

	err = r.pool.QueryRow(ctx, query, createdBy).Scan(&total, &active, &disabled, &expired)
	if err != nil {
		return 0, 0, 0, 0, fmt.Errorf("count codes by status: %w", err)
	}
	return total, active, disabled, expired, nil
}

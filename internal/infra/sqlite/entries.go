package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tallyhq/tally/internal/domain"
)

const (
	dayFormat = "2006-01-02"
	// Fixed-width fractional seconds: ORDER BY compares these as strings,
	// so the encoding must sort lexicographically in chronological order.
	timeFormat = "2006-01-02T15:04:05.000000000Z07:00"
)

const entryColumns = `id, occurred_on, occurred_at, amount, direction, account,
	description, user_description, external_ref, source_channel, source_signature,
	is_shared, split_json, group_id, is_group_rep, is_split_member,
	is_deleted, deleted_at, created_at, updated_at`

// ─── Writes ─────────────────────────────────────────────────────────────────

// InsertEntries persists one chunk inside a single transaction. On any row
// failure the whole chunk rolls back; the caller decides how to proceed
// with the remaining chunks.
func (db *DB) InsertEntries(ctx context.Context, entries []domain.Entry) error {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO entries (`+entryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		args, err := insertArgs(e)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert %s: %w", e.ID, err)
		}
	}
	return tx.Commit()
}

// UpdateEntry overwrites the mutable fields of an existing row.
func (db *DB) UpdateEntry(ctx context.Context, e domain.Entry) error {
	splitJSON, err := marshalSplit(e.Split)
	if err != nil {
		return err
	}
	res, err := db.db.ExecContext(ctx, `
		UPDATE entries SET
			occurred_on      = ?,
			occurred_at      = ?,
			amount           = ?,
			direction        = ?,
			description      = ?,
			user_description = ?,
			is_shared        = ?,
			split_json       = ?,
			source_signature = ?,
			updated_at       = ?
		WHERE id = ?`,
		e.OccurredOn.Format(dayFormat), nullTime(e.OccurredAt),
		e.Amount.String(), string(e.Direction),
		e.Description, e.UserDescription,
		boolInt(e.IsShared), splitJSON, e.SourceSignature,
		e.UpdatedAt.Format(timeFormat), e.ID)
	if err != nil {
		return fmt.Errorf("update %s: %w", e.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SoftDelete flags a row deleted; rows are never physically removed.
func (db *DB) SoftDelete(ctx context.Context, id string, at time.Time) error {
	res, err := db.db.ExecContext(ctx, `
		UPDATE entries SET is_deleted = 1, deleted_at = ?, updated_at = ?
		WHERE id = ? AND is_deleted = 0`,
		at.Format(timeFormat), at.Format(timeFormat), id)
	if err != nil {
		return fmt.Errorf("soft delete %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Restore clears the soft-delete flag.
func (db *DB) Restore(ctx context.Context, id string) error {
	res, err := db.db.ExecContext(ctx, `
		UPDATE entries SET is_deleted = 0, deleted_at = NULL, updated_at = ?
		WHERE id = ?`,
		time.Now().UTC().Format(timeFormat), id)
	if err != nil {
		return fmt.Errorf("restore %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ─── Reads ──────────────────────────────────────────────────────────────────

// GetEntry loads one row by id, deleted or not.
func (db *DB) GetEntry(ctx context.Context, id string) (*domain.Entry, error) {
	row := db.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM entries WHERE id = ?`, id)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// ListEntries applies the typed filter and returns rows in chronological
// order. Collapsing is a read-view concern and happens above this layer.
func (db *DB) ListEntries(ctx context.Context, f domain.ListFilter) ([]domain.Entry, error) {
	where, args := filterClauses(f)

	q := `SELECT ` + entryColumns + ` FROM entries`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, ` AND `)
	}
	q += ` ORDER BY occurred_on, COALESCE(occurred_at, ''), id`
	if f.Limit > 0 {
		q += ` LIMIT ? OFFSET ?`
		args = append(args, f.Limit, f.Offset)
	}

	return db.queryEntries(ctx, q, args...)
}

// filterClauses turns a ListFilter into WHERE fragments and bind args.
// This is the single place the list/settlement read patterns assemble SQL.
func filterClauses(f domain.ListFilter) (clauses []string, args []any) {
	if !f.IncludeDeleted {
		clauses = append(clauses, `is_deleted = 0`)
	}
	if f.From != nil {
		clauses = append(clauses, `occurred_on >= ?`)
		args = append(args, f.From.Format(dayFormat))
	}
	if f.To != nil {
		clauses = append(clauses, `occurred_on <= ?`)
		args = append(args, f.To.Format(dayFormat))
	}
	if f.Account != "" {
		clauses = append(clauses, `account = ?`)
		args = append(args, f.Account)
	}
	if f.ExcludeAccount != "" {
		clauses = append(clauses, `account != ?`)
		args = append(args, f.ExcludeAccount)
	}
	if f.SharedOnly {
		clauses = append(clauses, `is_shared = 1`)
	}
	if f.MinAmount != nil {
		clauses = append(clauses, `CAST(amount AS REAL) >= ?`)
		args = append(args, f.MinAmount.InexactFloat64())
	}
	return clauses, args
}

// FindByExternalRef returns non-deleted rows of one account matching the
// upstream reference.
func (db *DB) FindByExternalRef(ctx context.Context, account, ref string) ([]domain.Entry, error) {
	return db.queryEntries(ctx, `
		SELECT `+entryColumns+` FROM entries
		WHERE is_deleted = 0 AND account = ? AND external_ref = ?
		ORDER BY id`, account, ref)
}

// ListGroup returns all non-deleted members of a group.
func (db *DB) ListGroup(ctx context.Context, groupID string) ([]domain.Entry, error) {
	return db.queryEntries(ctx, `
		SELECT `+entryColumns+` FROM entries
		WHERE is_deleted = 0 AND group_id = ?
		ORDER BY id`, groupID)
}

func (db *DB) queryEntries(ctx context.Context, q string, args ...any) ([]domain.Entry, error) {
	rows, err := db.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var out []domain.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// ─── Row Mapping ────────────────────────────────────────────────────────────

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (*domain.Entry, error) {
	var (
		e                      domain.Entry
		occurredOn, amount     string
		direction              string
		occurredAt, deletedAt  sql.NullString
		splitJSON              sql.NullString
		isShared, isRep        int
		isSplitMember, deleted int
		createdAt, updatedAt   string
	)
	err := s.Scan(&e.ID, &occurredOn, &occurredAt, &amount, &direction,
		&e.Account, &e.Description, &e.UserDescription, &e.ExternalRef,
		&e.SourceChannel, &e.SourceSignature, &isShared, &splitJSON,
		&e.GroupID, &isRep, &isSplitMember, &deleted, &deletedAt,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if e.OccurredOn, err = time.Parse(dayFormat, occurredOn); err != nil {
		return nil, fmt.Errorf("row %s: bad occurred_on %q", e.ID, occurredOn)
	}
	if e.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("row %s: bad amount %q", e.ID, amount)
	}
	e.Direction = domain.Direction(direction)
	e.IsShared = isShared == 1
	e.IsGroupRep = isRep == 1
	e.IsSplitMember = isSplitMember == 1
	e.Deleted = deleted == 1

	if occurredAt.Valid && occurredAt.String != "" {
		t, err := time.Parse(timeFormat, occurredAt.String)
		if err != nil {
			return nil, fmt.Errorf("row %s: bad occurred_at %q", e.ID, occurredAt.String)
		}
		e.OccurredAt = &t
	}
	if deletedAt.Valid && deletedAt.String != "" {
		t, err := time.Parse(timeFormat, deletedAt.String)
		if err != nil {
			return nil, fmt.Errorf("row %s: bad deleted_at %q", e.ID, deletedAt.String)
		}
		e.DeletedAt = &t
	}
	if splitJSON.Valid && splitJSON.String != "" {
		var b domain.SplitBreakdown
		if err := json.Unmarshal([]byte(splitJSON.String), &b); err != nil {
			return nil, fmt.Errorf("row %s: bad split_json: %w", e.ID, err)
		}
		e.Split = &b
	}
	if e.CreatedAt, err = time.Parse(timeFormat, createdAt); err != nil {
		return nil, fmt.Errorf("row %s: bad created_at %q", e.ID, createdAt)
	}
	if e.UpdatedAt, err = time.Parse(timeFormat, updatedAt); err != nil {
		return nil, fmt.Errorf("row %s: bad updated_at %q", e.ID, updatedAt)
	}
	return &e, nil
}

func insertArgs(e domain.Entry) ([]any, error) {
	splitJSON, err := marshalSplit(e.Split)
	if err != nil {
		return nil, err
	}
	return []any{
		e.ID,
		e.OccurredOn.Format(dayFormat),
		nullTime(e.OccurredAt),
		e.Amount.String(),
		string(e.Direction),
		e.Account,
		e.Description,
		e.UserDescription,
		e.ExternalRef,
		e.SourceChannel,
		e.SourceSignature,
		boolInt(e.IsShared),
		splitJSON,
		e.GroupID,
		boolInt(e.IsGroupRep),
		boolInt(e.IsSplitMember),
		boolInt(e.Deleted),
		nullTime(e.DeletedAt),
		e.CreatedAt.Format(timeFormat),
		e.UpdatedAt.Format(timeFormat),
	}, nil
}

func marshalSplit(b *domain.SplitBreakdown) (any, error) {
	if b == nil {
		return nil, nil
	}
	data, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("marshal split: %w", err)
	}
	return string(data), nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(timeFormat)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Compile-time check: DB implements the domain storage interface.
var _ domain.EntryStore = (*DB)(nil)

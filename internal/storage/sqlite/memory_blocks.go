package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/sandevgo/tuskrelay/internal/core"
)

const memoryColumns = `id, type, key, value, metadata, created_at, updated_at`

type MemoryBlocksRepo struct {
	db  *sql.DB
	now func() time.Time
}

func NewMemoryBlocksRepo(db *sql.DB) *MemoryBlocksRepo {
	return &MemoryBlocksRepo{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (r *MemoryBlocksRepo) Create(ctx context.Context, block core.MemoryBlock) (*core.MemoryBlock, error) {
	if err := block.Validate(); err != nil {
		return nil, err
	}
	meta, err := encodeMetadata(block.Metadata)
	if err != nil {
		return nil, err
	}

	now := r.now()
	id := uuid.NewString()
	query := `INSERT INTO memory_blocks (` + memoryColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, query, id, block.Type, block.Key, block.Value, meta, now, now)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("memory %s/%s: %w", block.Type, block.Key, core.ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to insert memory block: %w", err)
	}
	return r.Get(ctx, id)
}

func (r *MemoryBlocksRepo) Get(ctx context.Context, id string) (*core.MemoryBlock, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+memoryColumns+` FROM memory_blocks WHERE id = ?`, id)
	b, err := scanMemory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("memory %s: %w", id, core.ErrNotFound)
	}
	return b, err
}

func (r *MemoryBlocksRepo) getByKey(ctx context.Context, q querier, t core.MemoryType, key string) (*core.MemoryBlock, error) {
	row := q.QueryRowContext(ctx, `SELECT `+memoryColumns+` FROM memory_blocks WHERE type = ? AND key = ?`, t, key)
	return scanMemory(row)
}

func (r *MemoryBlocksRepo) Update(ctx context.Context, id string, patch core.MemoryPatch) (*core.MemoryBlock, error) {
	sets := []string{"updated_at = ?"}
	args := []any{r.now()}
	if patch.Value != nil {
		sets = append(sets, "value = ?")
		args = append(args, *patch.Value)
	}
	if patch.Metadata != nil {
		meta, err := encodeMetadata(patch.Metadata)
		if err != nil {
			return nil, err
		}
		sets = append(sets, "metadata = ?")
		args = append(args, meta)
	}
	args = append(args, id)

	res, err := r.db.ExecContext(ctx, `UPDATE memory_blocks SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update memory block: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("memory %s: %w", id, core.ErrNotFound)
	}
	return r.Get(ctx, id)
}

// Upsert inserts or replaces the value and metadata of the (type, key) block.
func (r *MemoryBlocksRepo) Upsert(ctx context.Context, block core.MemoryBlock) (*core.MemoryBlock, error) {
	out, err := r.BulkUpsert(ctx, []core.MemoryBlock{block})
	if err != nil {
		return nil, err
	}
	return &out[0], nil
}

// BulkUpsert upserts all blocks in one transaction; on error nothing is written.
func (r *MemoryBlocksRepo) BulkUpsert(ctx context.Context, blocks []core.MemoryBlock) ([]core.MemoryBlock, error) {
	for _, b := range blocks {
		if err := b.Validate(); err != nil {
			return nil, err
		}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	out := make([]core.MemoryBlock, 0, len(blocks))
	for _, b := range blocks {
		saved, err := r.upsert(ctx, tx, b)
		if err != nil {
			return nil, err
		}
		out = append(out, *saved)
	}
	return out, tx.Commit()
}

func (r *MemoryBlocksRepo) upsert(ctx context.Context, tx *sql.Tx, block core.MemoryBlock) (*core.MemoryBlock, error) {
	meta, err := encodeMetadata(block.Metadata)
	if err != nil {
		return nil, err
	}

	now := r.now()
	query := `
		INSERT INTO memory_blocks (` + memoryColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(type, key) DO UPDATE SET
			value      = excluded.value,
			metadata   = excluded.metadata,
			updated_at = excluded.updated_at`
	if _, err := tx.ExecContext(ctx, query, uuid.NewString(), block.Type, block.Key, block.Value, meta, now, now); err != nil {
		return nil, fmt.Errorf("failed to upsert memory block: %w", err)
	}
	return r.getByKey(ctx, tx, block.Type, block.Key)
}

func (r *MemoryBlocksRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM memory_blocks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete memory block: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("memory %s: %w", id, core.ErrNotFound)
	}
	return nil
}

func (r *MemoryBlocksRepo) List(ctx context.Context, filter core.MemoryFilter) ([]core.MemoryBlock, error) {
	query := `SELECT ` + memoryColumns + ` FROM memory_blocks`
	var args []any
	if filter.Type != "" {
		query += ` WHERE type = ?`
		args = append(args, filter.Type)
	}
	query += ` ORDER BY updated_at DESC, id LIMIT ? OFFSET ?`
	args = append(args, limitOrAll(filter.Limit), filter.Offset)

	return r.query(ctx, query, args...)
}

// Search does a case-insensitive substring match on key and value.
func (r *MemoryBlocksRepo) Search(ctx context.Context, q string, filter core.MemoryFilter) ([]core.MemoryBlock, error) {
	pattern := "%" + escapeLike(q) + "%"
	query := `SELECT ` + memoryColumns + ` FROM memory_blocks
		WHERE (key LIKE ? ESCAPE '\' OR value LIKE ? ESCAPE '\')`
	args := []any{pattern, pattern}
	if filter.Type != "" {
		query += ` AND type = ?`
		args = append(args, filter.Type)
	}
	query += ` ORDER BY updated_at DESC, id LIMIT ? OFFSET ?`
	args = append(args, limitOrAll(filter.Limit), filter.Offset)
	return r.query(ctx, query, args...)
}

func (r *MemoryBlocksRepo) query(ctx context.Context, query string, args ...any) ([]core.MemoryBlock, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query memory blocks: %w", err)
	}
	defer rows.Close()

	out := []core.MemoryBlock{}
	for rows.Next() {
		b, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMemory(s scanner) (*core.MemoryBlock, error) {
	var (
		b    core.MemoryBlock
		meta sql.NullString
	)
	if err := s.Scan(&b.ID, &b.Type, &b.Key, &b.Value, &meta, &b.CreatedAt, &b.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan memory block: %w", err)
	}
	if meta.Valid && meta.String != "" {
		if err := json.Unmarshal([]byte(meta.String), &b.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata of %s: %w", b.ID, err)
		}
	}
	return &b, nil
}

func encodeMetadata(m map[string]any) (sql.NullString, error) {
	if len(m) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode metadata: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// limitOrAll maps a non-positive limit to sqlite's "no limit".
func limitOrAll(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}

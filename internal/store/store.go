// Package store serves table pages straight from Postgres. Each entity is
// described by a Source; Fetcher turns a Source into a datatable.FetchFunc.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/votedesk/internal/datatable"
)

// Querier is the part of pgxpool.Pool the store uses.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// ColumnMap binds a row field to its database column.
type ColumnMap struct {
	Field    string
	DBColumn string
}

// FilterColumn binds a filter key to an equality check on Column. The
// Sentinel value means "no filter".
type FilterColumn struct {
	Key      string
	Column   string
	Sentinel string
}

// Source describes where an entity's rows live. IDColumn is the unique
// column appended to every ORDER BY so that rows tied on the sort column
// keep one order across pages; it defaults to the first column.
type Source struct {
	Table         string
	IDColumn      string
	Columns       []ColumnMap
	SearchColumns []string
	DateColumn    string
	Filters       []FilterColumn
}

// Validate checks that the source can produce a query.
func (s Source) Validate() error {
	if s.Table == "" {
		return fmt.Errorf("%w: source has no table", datatable.ErrInvalidConfig)
	}
	if len(s.Columns) == 0 {
		return fmt.Errorf("%w: source %s has no columns", datatable.ErrInvalidConfig, s.Table)
	}
	return nil
}

func (s Source) idColumn() string {
	if s.IDColumn != "" {
		return s.IDColumn
	}
	return s.Columns[0].DBColumn
}

func (s Source) dbColumn(field string) (string, bool) {
	for _, c := range s.Columns {
		if c.Field == field {
			return c.DBColumn, true
		}
	}
	return "", false
}

// Query is the pair of statements that serves one page.
type Query struct {
	Count      string
	CountArgs  []any
	Select     string
	SelectArgs []any
}

const dateLayout = "2006-01-02"

// BuildQuery renders req against s. Unknown sort fields fall back to the
// first column ascending. Filters at their sentinel are skipped and
// malformed dates leave that bound open.
func (s Source) BuildQuery(req datatable.PageRequest) (Query, error) {
	if err := s.Validate(); err != nil {
		return Query{}, err
	}
	req = normalizeRequest(req)

	wb := NewWhereBuilder()
	wb.AddSearch(req.Search, s.SearchColumns)
	for _, f := range s.Filters {
		v := req.Filters[f.Key]
		if v == f.Sentinel {
			continue
		}
		wb.Add(f.Column, v)
	}
	if dr := req.DateRange; !dr.IsZero() && s.DateColumn != "" {
		from, _ := time.Parse(dateLayout, dr.From)
		to, _ := time.Parse(dateLayout, dr.To)
		wb.AddDateRange(s.DateColumn, from, to)
	}
	where, args := wb.Build()

	sortCol, ok := s.dbColumn(req.SortBy)
	dir := "ASC"
	if !ok {
		sortCol = s.Columns[0].DBColumn
	} else if req.SortOrder == datatable.SortDesc {
		dir = "DESC"
	}

	order := quoteIdentifier(sortCol) + " " + dir
	if id := s.idColumn(); id != sortCol {
		order += ", " + quoteIdentifier(id) + " " + dir
	}

	cols := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		cols[i] = quoteIdentifier(c.DBColumn)
	}

	table := quoteIdentifier(s.Table)
	n := wb.NextArgIndex()
	q := Query{
		Count:     fmt.Sprintf("SELECT COUNT(*) FROM %s%s", table, where),
		CountArgs: args,
		Select: fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s LIMIT $%d OFFSET $%d",
			strings.Join(cols, ", "), table, where, order, n, n+1),
	}
	q.SelectArgs = append(append([]any{}, args...), req.PageSize, req.Offset())
	return q, nil
}

// Store runs page queries.
type Store struct {
	db  Querier
	log *slog.Logger
}

// New creates a store over db.
func New(db Querier, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, log: logger}
}

// Fetcher binds src to the store.
func (s *Store) Fetcher(src Source) datatable.FetchFunc {
	return func(ctx context.Context, req datatable.PageRequest) (datatable.PageResult, error) {
		return s.Fetch(ctx, src, req)
	}
}

// Fetch returns one page. A page past the end yields no rows rather than
// being clamped, so the pagination always describes the page asked for.
func (s *Store) Fetch(ctx context.Context, src Source, req datatable.PageRequest) (datatable.PageResult, error) {
	q, err := src.BuildQuery(req)
	if err != nil {
		return datatable.PageResult{}, err
	}

	var total int64
	if err := s.db.QueryRow(ctx, q.Count, q.CountArgs...).Scan(&total); err != nil {
		return datatable.PageResult{}, fmt.Errorf("count %s: %w", src.Table, err)
	}

	req = normalizeRequest(req)
	page, limit := req.Page, req.PageSize
	result := datatable.PageResult{
		Data:       []datatable.Row{},
		Pagination: datatable.NewPaginationInfo(page, limit, total),
	}
	if total == 0 || int64(req.Offset()) >= total {
		return result, nil
	}

	rows, err := s.db.Query(ctx, q.Select, q.SelectArgs...)
	if err != nil {
		return datatable.PageResult{}, fmt.Errorf("query %s: %w", src.Table, err)
	}
	defer rows.Close()

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return datatable.PageResult{}, fmt.Errorf("read row values: %w", err)
		}
		row := make(datatable.Row, len(src.Columns))
		for i, c := range src.Columns {
			if i < len(values) {
				row[c.Field] = normalizeValue(values[i])
			}
		}
		result.Data = append(result.Data, row)
	}
	if err := rows.Err(); err != nil {
		return datatable.PageResult{}, fmt.Errorf("rows error: %w", err)
	}

	s.log.Debug("page served",
		"table", src.Table,
		"page", page,
		"rows", len(result.Data),
		"total", total,
	)
	return result, nil
}

func normalizeRequest(req datatable.PageRequest) datatable.PageRequest {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize < 1 {
		req.PageSize = datatable.DefaultPageSize
	}
	return req
}

// normalizeValue turns pgx driver values into types the views and export
// writers understand.
func normalizeValue(v any) any {
	switch val := v.(type) {
	case pgtype.Numeric:
		if !val.Valid {
			return nil
		}
		f, err := val.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	case [16]byte:
		return uuid.UUID(val).String()
	case pgtype.Text:
		if !val.Valid {
			return nil
		}
		return val.String
	case pgtype.Timestamptz:
		if !val.Valid {
			return nil
		}
		return val.Time
	case pgtype.Date:
		if !val.Valid {
			return nil
		}
		return val.Time
	case int32:
		return int64(val)
	case int16:
		return int64(val)
	}
	return v
}

// PoolConfig carries the pool tunables.
type PoolConfig struct {
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Open connects a pool and pings it.
func Open(ctx context.Context, dsn string, pc PoolConfig) (*pgxpool.Pool, error) {
	if dsn == "" {
		return nil, errors.New("database url is empty")
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if pc.MaxConns > 0 {
		cfg.MaxConns = int32(pc.MaxConns)
	}
	if pc.MinConns > 0 {
		cfg.MinConns = int32(pc.MinConns)
	}
	if pc.MaxConnLifetime > 0 {
		cfg.MaxConnLifetime = pc.MaxConnLifetime
	}
	if pc.MaxConnIdleTime > 0 {
		cfg.MaxConnIdleTime = pc.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}

// Package sink persists structured log events into a Postgres table. It owns
// lazy schema/table provisioning, two interchangeable bulk-write strategies
// (per-row parameterized INSERT and binary COPY), and optional retention
// pruning. Batching and flush policy live upstream (see package batch); each
// call to Emit is one unit of work.
package sink

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"pgsink/columns"
)

// Conn is the subset of a pgx connection the sink drives. *pgxpool.Conn
// satisfies it; tests substitute a fake.
type Conn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// SchemaHook replaces the built-in CREATE SCHEMA when set on Options. The
// sink trusts the hook to have done the work: it marks the schema created as
// long as the hook returns nil.
type SchemaHook func(ctx context.Context, conn Conn, schemaName string) error

// TableHook replaces the built-in CREATE TABLE when set on Options. Columns
// arrive already sorted by explicit order when every column declares one.
type TableHook func(ctx context.Context, conn Conn, schemaName, tableName string, cols []Column) error

// Column binds one destination column to its value writer.
type Column struct {
	// Name is the destination column name. It is double-quoted (with quote
	// doubling) wherever it appears in generated SQL.
	Name string

	// Writer extracts this column's value per event and names its DDL type.
	Writer columns.Writer

	// SkipOnInsert excludes the column from INSERT/COPY column lists while
	// keeping it in CREATE TABLE. Used for server-generated columns such as
	// an identity id.
	SkipOnInsert bool

	// Order, when set, is the explicit ordinal for DDL column ordering.
	// Ordering applies only when every column declares one.
	Order *int
}

// ColumnOptions is the ordered column registry. Iteration order is
// registration order; it drives DDL, INSERT and COPY column lists alike.
type ColumnOptions []Column

// Names returns all column names in iteration order.
func (c ColumnOptions) Names() []string {
	out := make([]string, len(c))
	for i, col := range c {
		out[i] = col.Name
	}
	return out
}

// WithoutSkipped returns the ordered subset written on insert/copy.
func (c ColumnOptions) WithoutSkipped() ColumnOptions {
	out := make(ColumnOptions, 0, len(c))
	for _, col := range c {
		if !col.SkipOnInsert {
			out = append(out, col)
		}
	}
	return out
}

// fullyOrdered reports whether every column declares an explicit order.
func (c ColumnOptions) fullyOrdered() bool {
	if len(c) == 0 {
		return false
	}
	for _, col := range c {
		if col.Order == nil {
			return false
		}
	}
	return true
}

// ddlOrder returns the columns in DDL order: ascending explicit order when
// every column declares one, registration order otherwise.
func (c ColumnOptions) ddlOrder() ColumnOptions {
	if !c.fullyOrdered() {
		return c
	}
	out := make(ColumnOptions, len(c))
	copy(out, c)
	sort.SliceStable(out, func(i, j int) bool { return *out[i].Order < *out[j].Order })
	return out
}

// timestampColumn returns the name of the first column backed by the
// timestamp writer. The retention pruner keys off it.
func (c ColumnOptions) timestampColumn() (string, bool) {
	for _, col := range c {
		if _, ok := col.Writer.(columns.TimestampWriter); ok {
			return col.Name, true
		}
		if _, ok := col.Writer.(*columns.TimestampWriter); ok {
			return col.Name, true
		}
	}
	return "", false
}

// Options configures one Sink instance. It is read-only after New; the
// provisioning state lives on the Sink itself.
type Options struct {
	// ConnectionString is the pgx/pgxpool DSN, e.g. "postgres://...".
	ConnectionString string

	// SchemaName is the destination schema; blank means the default schema
	// (no qualification, no schema provisioning).
	SchemaName string

	// TableName is the destination table. Required.
	TableName string

	// Columns is the ordered column registry. Required, non-empty.
	Columns ColumnOptions

	// NeedAutoCreateSchema enables one-time CREATE SCHEMA IF NOT EXISTS.
	NeedAutoCreateSchema bool

	// NeedAutoCreateTable enables one-time CREATE TABLE IF NOT EXISTS.
	NeedAutoCreateTable bool

	// UseCopy selects the binary COPY write path instead of per-row INSERT.
	// The choice is static for the sink's lifetime.
	UseCopy bool

	// RetentionTime enables pruning of rows older than the window after each
	// write. Zero or negative disables pruning.
	RetentionTime time.Duration

	// OnCreateSchema, when set, replaces the built-in schema provisioning.
	OnCreateSchema SchemaHook

	// OnCreateTable, when set, replaces the built-in table provisioning.
	OnCreateTable TableHook

	// Format controls locale and timestamp rendering for extracted values.
	// nil means columns.DefaultFormat().
	Format *columns.Format

	// Logger is the diagnostic side channel (pruning reports, provisioning
	// notices). nil means no diagnostics.
	Logger *zap.Logger
}

func (o *Options) validate() error {
	if o.TableName == "" {
		return fmt.Errorf("sink: table name required")
	}
	if len(o.Columns) == 0 {
		return fmt.Errorf("sink: at least one column required")
	}
	seen := make(map[string]struct{}, len(o.Columns))
	for _, col := range o.Columns {
		if col.Name == "" {
			return fmt.Errorf("sink: column name required")
		}
		if col.Writer == nil {
			return fmt.Errorf("sink: column %q has no writer", col.Name)
		}
		if _, dup := seen[col.Name]; dup {
			return fmt.Errorf("sink: duplicate column %q", col.Name)
		}
		seen[col.Name] = struct{}{}
	}
	if insertable := o.Columns.WithoutSkipped(); len(insertable) == 0 {
		return fmt.Errorf("sink: every column is skip-on-insert; nothing to write")
	}
	return nil
}

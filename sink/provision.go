package sink

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// buildCreateSchemaSQL returns the idempotent schema DDL.
func buildCreateSchemaSQL(schema string) string {
	return "CREATE SCHEMA IF NOT EXISTS " + pgIdent(schema)
}

// buildCreateTableSQL returns the idempotent table DDL with columns in the
// given order. The caller resolves explicit ordering before calling.
func buildCreateTableSQL(schema, table string, cols ColumnOptions) (string, error) {
	if len(cols) == 0 {
		return "", fmt.Errorf("at least one column required")
	}
	defs := make([]string, len(cols))
	for i, c := range cols {
		typ := c.Writer.SQLType()
		if typ == "" {
			return "", fmt.Errorf("column %q: writer has no SQL type", c.Name)
		}
		defs[i] = pgIdent(c.Name) + " " + typ
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)",
		tableRef(schema, table), strings.Join(defs, ", ")), nil
}

// provision ensures the destination schema and table exist, at most once per
// sink lifetime. The mutex serializes concurrent first emits; the DDL is
// idempotent at the database as well, so a lost race is still harmless.
// Flags flip only after the relevant call returns without error, so a failed
// attempt is retried by the next emit.
func (s *Sink) provision(ctx context.Context, conn Conn) error {
	s.provMu.Lock()
	defer s.provMu.Unlock()

	if s.opts.NeedAutoCreateSchema && !s.schemaCreated && strings.TrimSpace(s.opts.SchemaName) != "" {
		if err := s.createSchema(ctx, conn); err != nil {
			return fmt.Errorf("create schema %q: %w", s.opts.SchemaName, err)
		}
		s.schemaCreated = true
	}

	if s.opts.NeedAutoCreateTable && !s.tableCreated && strings.TrimSpace(s.opts.TableName) != "" {
		if err := s.createTable(ctx, conn); err != nil {
			return fmt.Errorf("create table %q: %w", s.opts.TableName, err)
		}
		s.tableCreated = true
	}
	return nil
}

// createSchema runs the user hook when configured, the built-in DDL
// otherwise. The hook fully replaces the default; its work is not verified.
func (s *Sink) createSchema(ctx context.Context, conn Conn) error {
	if s.opts.OnCreateSchema != nil {
		return s.opts.OnCreateSchema(ctx, conn, s.opts.SchemaName)
	}
	sql := buildCreateSchemaSQL(s.opts.SchemaName)
	if _, err := conn.Exec(ctx, sql); err != nil {
		return err
	}
	s.log.Debug("ensured schema", zap.String("schema", s.opts.SchemaName))
	return nil
}

func (s *Sink) createTable(ctx context.Context, conn Conn) error {
	cols := s.opts.Columns.ddlOrder()
	if s.opts.OnCreateTable != nil {
		return s.opts.OnCreateTable(ctx, conn, s.opts.SchemaName, s.opts.TableName, cols)
	}
	sql, err := buildCreateTableSQL(s.opts.SchemaName, s.opts.TableName, cols)
	if err != nil {
		return err
	}
	if _, err := conn.Exec(ctx, sql); err != nil {
		return err
	}
	s.log.Debug("ensured table",
		zap.String("table", s.opts.TableName),
		zap.Int("columns", len(cols)))
	return nil
}

package sink

import (
	"context"
	"fmt"
	"strings"

	"pgsink/pkg/event"
)

// buildInsertSQL returns one parameterized statement covering the non-skipped
// columns, with positional placeholders in column order.
func buildInsertSQL(schema, table string, names []string) string {
	ph := make([]string, len(names))
	for i := range names {
		ph[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		tableRef(schema, table),
		strings.Join(mapIdent(names), ", "),
		strings.Join(ph, ", "))
}

// insertEvents writes the batch row by row: one Exec per event, in batch
// order, rebinding every column's extracted value each time. Deliberately not
// collapsed into a multi-row statement; the batch succeeds or fails as a
// whole at the caller, and per-row statements keep failure positions exact.
func (s *Sink) insertEvents(ctx context.Context, conn Conn, events []*event.LogEvent) error {
	cols := s.opts.Columns.WithoutSkipped()
	sql := buildInsertSQL(s.opts.SchemaName, s.opts.TableName, cols.Names())

	for i, e := range events {
		args := make([]any, len(cols))
		for j, c := range cols {
			args[j] = c.Writer.Value(e, s.format)
		}
		if _, err := conn.Exec(ctx, sql, args...); err != nil {
			return fmt.Errorf("insert event %d of %d: %w", i+1, len(events), err)
		}
	}
	return nil
}

package sink

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"pgsink/pkg/event"
)

// copyIdentifier converts the schema/table pair into a pgx.Identifier.
func copyIdentifier(schema, table string) pgx.Identifier {
	if strings.TrimSpace(schema) == "" {
		return pgx.Identifier{table}
	}
	return pgx.Identifier{schema, table}
}

// copyEvents streams the whole batch through one binary COPY. Rows are
// produced lazily in batch order, each value extracted with the same column
// registry and in the same column order as the COPY column list.
func (s *Sink) copyEvents(ctx context.Context, conn Conn, events []*event.LogEvent) error {
	cols := s.opts.Columns.WithoutSkipped()

	src := pgx.CopyFromSlice(len(events), func(i int) ([]any, error) {
		row := make([]any, len(cols))
		for j, c := range cols {
			row[j] = c.Writer.Value(events[i], s.format)
		}
		return row, nil
	})

	n, err := conn.CopyFrom(ctx, copyIdentifier(s.opts.SchemaName, s.opts.TableName), cols.Names(), src)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Detail != "" {
			return fmt.Errorf("copy: %s (%s)", pgErr.Detail, pgErr.SQLState())
		}
		return fmt.Errorf("copy: %w", err)
	}
	if n != int64(len(events)) {
		return fmt.Errorf("copy: wrote %d rows, expected %d", n, len(events))
	}
	return nil
}

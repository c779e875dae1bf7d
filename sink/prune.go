package sink

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"pgsink/internal/metrics"
)

// prune deletes rows older than the retention window, keyed off the first
// timestamp-writer column. A missing timestamp column is a configuration
// error, not a silent no-op.
func (s *Sink) prune(ctx context.Context, conn Conn) error {
	col, ok := s.opts.Columns.timestampColumn()
	if !ok {
		return fmt.Errorf("retention pruning configured but no timestamp column registered")
	}

	cutoff := s.now().UTC().Add(-s.opts.RetentionTime)
	sql := fmt.Sprintf("DELETE FROM %s WHERE %s < $1",
		tableRef(s.opts.SchemaName, s.opts.TableName), pgIdent(col))

	tag, err := conn.Exec(ctx, sql, cutoff)
	if err != nil {
		return fmt.Errorf("prune: %w", err)
	}

	deleted := tag.RowsAffected()
	s.log.Info("pruned aged rows",
		zap.Int64("rows_deleted", deleted),
		zap.Time("cutoff", cutoff),
		zap.String("table", s.opts.TableName))
	metrics.RecordPrune(s.opts.TableName, deleted)
	return nil
}

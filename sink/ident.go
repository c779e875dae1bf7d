package sink

import "strings"

// pgIdent safely quotes a single identifier segment for Postgres.
func pgIdent(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

// mapIdent maps a list of column names to their quoted forms.
func mapIdent(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = pgIdent(c)
	}
	return out
}

// tableRef renders the quoted, optionally schema-qualified table reference,
// e.g. `"logs"."app_events"` or just `"app_events"` when the schema is blank.
func tableRef(schema, table string) string {
	if strings.TrimSpace(schema) == "" {
		return pgIdent(table)
	}
	return pgIdent(schema) + "." + pgIdent(table)
}

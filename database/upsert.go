package database

import (
	"fmt"
	"sort"
	"strings"

	"github.com/taskhub/taskhub/database/types"
)

// BuildUpsert creates an insert-or-update statement for the given table.
// PostgreSQL uses INSERT ... ON CONFLICT DO UPDATE; Oracle uses MERGE INTO.
// Column maps are rendered in sorted key order so the generated SQL is
// deterministic regardless of map iteration.
func (qb *QueryBuilder) BuildUpsert(table string, conflictColumns []string, insertColumns, updateColumns map[string]any) (query string, args []any, err error) {
	switch qb.vendor {
	case types.PostgreSQL:
		return qb.buildPostgreSQLUpsert(table, conflictColumns, insertColumns, updateColumns)
	case types.Oracle:
		return qb.buildOracleMerge(table, conflictColumns, insertColumns, updateColumns)
	default:
		return "", nil, fmt.Errorf("upsert not supported for database vendor: %s", qb.vendor)
	}
}

// buildPostgreSQLUpsert appends an ON CONFLICT (columns) DO UPDATE SET clause
// to a plain INSERT. Updated columns reference the EXCLUDED pseudo-row.
func (qb *QueryBuilder) buildPostgreSQLUpsert(table string, conflictColumns []string, insertColumns, updateColumns map[string]any) (query string, args []any, err error) {
	orderedConflicts := append([]string(nil), conflictColumns...)
	sort.Strings(orderedConflicts)

	if len(orderedConflicts) == 0 || len(updateColumns) == 0 {
		return "", nil, fmt.Errorf("conflict columns and update keys required for PostgreSQL upsert")
	}

	orderedCols := sortedKeys(insertColumns)
	vals := valuesByKeyOrder(insertColumns, orderedCols)

	insertQuery := qb.Insert(table).
		Columns(qb.escapeIdentifiers(orderedCols)...).
		Values(vals...)

	escapedConflicts := qb.escapeIdentifiers(orderedConflicts)
	conflictClause := "ON CONFLICT (" + strings.Join(escapedConflicts, ", ") + ") DO UPDATE SET "

	updateCols := sortedKeys(updateColumns)
	setParts := make([]string, 0, len(updateCols))
	for _, col := range updateCols {
		escapedCol := qb.EscapeIdentifier(col)
		setParts = append(setParts, escapedCol+" = EXCLUDED."+escapedCol)
	}
	conflictClause += strings.Join(setParts, ", ")

	sql, args, err := insertQuery.ToSql()
	if err != nil {
		return "", nil, err
	}

	return sql + " " + conflictClause, args, nil
}

// buildOracleMerge constructs MERGE INTO ... USING (SELECT ... FROM dual)
// with WHEN MATCHED and WHEN NOT MATCHED branches. The source row carries the
// insert values; update placeholders are numbered after the insert ones.
func (qb *QueryBuilder) buildOracleMerge(table string, conflictColumns []string, insertColumns, updateColumns map[string]any) (query string, args []any, err error) {
	if len(conflictColumns) == 0 {
		return "", nil, fmt.Errorf("conflict columns required for Oracle MERGE")
	}

	insertKeys := sortedKeys(insertColumns)
	escapedInsertCols := qb.escapeIdentifiers(insertKeys)
	usingValues := make([]string, len(insertKeys))
	for i, col := range escapedInsertCols {
		usingValues[i] = fmt.Sprintf(":%d AS %s", i+1, col)
	}
	usingArgs := valuesByKeyOrder(insertColumns, insertKeys)

	orderedConflicts := append([]string(nil), conflictColumns...)
	sort.Strings(orderedConflicts)
	escapedConflicts := qb.escapeIdentifiers(orderedConflicts)
	onConditions := make([]string, len(escapedConflicts))
	for i, col := range escapedConflicts {
		onConditions[i] = fmt.Sprintf("target.%s = source.%s", col, col)
	}

	updateKeys := sortedKeys(updateColumns)
	escapedUpdateCols := qb.escapeIdentifiers(updateKeys)
	updateSets := make([]string, len(updateKeys))
	baseIndex := len(insertKeys) + 1
	for i, col := range escapedUpdateCols {
		updateSets[i] = fmt.Sprintf("%s = :%d", col, baseIndex+i)
	}
	updateArgs := valuesByKeyOrder(updateColumns, updateKeys)

	insertVals := make([]string, len(escapedInsertCols))
	for i, col := range escapedInsertCols {
		insertVals[i] = "source." + col
	}

	query = fmt.Sprintf(`MERGE INTO %s target USING (SELECT %s FROM dual) source ON (%s)`,
		table,
		strings.Join(usingValues, ", "),
		strings.Join(onConditions, " AND "))

	if len(updateSets) > 0 {
		query += fmt.Sprintf(" WHEN MATCHED THEN UPDATE SET %s", strings.Join(updateSets, ", "))
	}

	query += fmt.Sprintf(" WHEN NOT MATCHED THEN INSERT (%s) VALUES (%s)",
		strings.Join(escapedInsertCols, ", "),
		strings.Join(insertVals, ", "))

	args = make([]any, 0, len(usingArgs)+len(updateArgs))
	args = append(args, usingArgs...)
	args = append(args, updateArgs...)

	return query, args, nil
}

// sortedKeys returns the map keys in ascending order.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// valuesByKeyOrder returns the map values following the given key order.
func valuesByKeyOrder(m map[string]any, keys []string) []any {
	vals := make([]any, 0, len(keys))
	for _, k := range keys {
		vals = append(vals, m[k])
	}
	return vals
}

// escapeIdentifiers escapes each identifier with EscapeIdentifier.
func (qb *QueryBuilder) escapeIdentifiers(columns []string) []string {
	escaped := make([]string, len(columns))
	for i, col := range columns {
		escaped[i] = qb.EscapeIdentifier(col)
	}
	return escaped
}

package database

import (
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"

	"github.com/taskhub/taskhub/database/types"
)

// QueryBuilder produces vendor-aware SQL on top of squirrel. It configures the
// placeholder format for the active vendor and quotes Oracle reserved words so
// repositories can share one query-building path for both backends.
type QueryBuilder struct {
	vendor           types.Vendor
	statementBuilder squirrel.StatementBuilderType
}

// NewQueryBuilder creates a query builder for the given database vendor.
func NewQueryBuilder(vendor types.Vendor) *QueryBuilder {
	var sb squirrel.StatementBuilderType

	switch vendor {
	case types.PostgreSQL:
		// PostgreSQL uses $1, $2, ... placeholders
		sb = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	case types.Oracle:
		// Oracle uses :1, :2, ... placeholders
		sb = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Colon)
	default:
		sb = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question)
	}

	return &QueryBuilder{
		vendor:           vendor,
		statementBuilder: sb,
	}
}

// Vendor returns the database vendor this builder targets.
func (qb *QueryBuilder) Vendor() types.Vendor {
	return qb.vendor
}

// Select creates a SELECT builder with vendor-specific column quoting applied.
// Plain identifiers that collide with Oracle reserved words are quoted;
// expressions such as COUNT(*) pass through untouched.
func (qb *QueryBuilder) Select(columns ...string) squirrel.SelectBuilder {
	return qb.statementBuilder.Select(qb.quoteColumns(columns...)...)
}

// Insert creates an INSERT builder for the given table.
func (qb *QueryBuilder) Insert(table string) squirrel.InsertBuilder {
	return qb.statementBuilder.Insert(table)
}

// InsertWithColumns creates an INSERT builder with the column list already
// applied, quoting reserved words for Oracle.
func (qb *QueryBuilder) InsertWithColumns(table string, columns ...string) squirrel.InsertBuilder {
	return qb.statementBuilder.Insert(table).Columns(qb.quoteColumns(columns...)...)
}

// Update creates an UPDATE builder for the given table.
func (qb *QueryBuilder) Update(table string) squirrel.UpdateBuilder {
	return qb.statementBuilder.Update(table)
}

// Delete creates a DELETE builder for the given table.
func (qb *QueryBuilder) Delete(table string) squirrel.DeleteBuilder {
	return qb.statementBuilder.Delete(table)
}

// BuildCaseInsensitiveLike creates a case-insensitive LIKE condition wrapping
// the value in wildcards. PostgreSQL uses ILIKE; Oracle upper-cases both sides.
func (qb *QueryBuilder) BuildCaseInsensitiveLike(column, value string) squirrel.Sqlizer {
	likeValue := "%" + value + "%"

	switch qb.vendor {
	case types.PostgreSQL:
		return squirrel.ILike{column: likeValue}
	case types.Oracle:
		quotedColumn := qb.quoteColumn(column)
		return squirrel.Like{"UPPER(" + quotedColumn + ")": strings.ToUpper(likeValue)}
	default:
		return squirrel.Like{column: likeValue}
	}
}

// BuildLimitOffset applies pagination to a SELECT using vendor syntax.
// Oracle gets an OFFSET ... ROWS FETCH NEXT ... ROWS ONLY suffix (12c+);
// everything else uses LIMIT/OFFSET. Non-positive values are skipped.
func (qb *QueryBuilder) BuildLimitOffset(query squirrel.SelectBuilder, limit, offset int) squirrel.SelectBuilder {
	switch qb.vendor {
	case types.Oracle:
		if suffix := buildOraclePaginationClause(limit, offset); suffix != "" {
			query = query.Suffix(suffix)
		}
		return query
	default:
		if limit > 0 {
			query = query.Limit(uint64(limit))
		}
		if offset > 0 {
			query = query.Offset(uint64(offset))
		}
		return query
	}
}

// BuildCurrentTimestamp returns the current-timestamp expression for the vendor.
func (qb *QueryBuilder) BuildCurrentTimestamp() string {
	switch qb.vendor {
	case types.Oracle:
		return "SYSDATE"
	default:
		return "NOW()"
	}
}

// BuildUUIDGeneration returns the UUID generation expression for the vendor.
func (qb *QueryBuilder) BuildUUIDGeneration() string {
	switch qb.vendor {
	case types.PostgreSQL:
		return "gen_random_uuid()"
	case types.Oracle:
		return "SYS_GUID()"
	default:
		return "UUID()"
	}
}

// BuildBooleanValue converts a Go boolean to the vendor representation.
// Oracle stores booleans in NUMBER(1) columns as 0 or 1.
func (qb *QueryBuilder) BuildBooleanValue(value bool) any {
	if qb.vendor == types.Oracle {
		if value {
			return 1
		}
		return 0
	}
	return value
}

// EscapeIdentifier double-quotes an identifier, handling schema-qualified
// names part by part. Already quoted parts are left alone.
func (qb *QueryBuilder) EscapeIdentifier(identifier string) string {
	parts := strings.Split(identifier, ".")
	for i, part := range parts {
		if len(part) >= 2 && part[0] == '"' && part[len(part)-1] == '"' {
			continue
		}
		parts[i] = `"` + part + `"`
	}

	return strings.Join(parts, ".")
}

// Eq creates an equality condition with vendor-aware column quoting.
func (qb *QueryBuilder) Eq(column string, value any) squirrel.Eq {
	return squirrel.Eq{qb.quoteColumn(column): value}
}

// NotEq creates a not-equal condition with vendor-aware column quoting.
func (qb *QueryBuilder) NotEq(column string, value any) squirrel.NotEq {
	return squirrel.NotEq{qb.quoteColumn(column): value}
}

// Lt creates a less-than condition with vendor-aware column quoting.
func (qb *QueryBuilder) Lt(column string, value any) squirrel.Lt {
	return squirrel.Lt{qb.quoteColumn(column): value}
}

// LtOrEq creates a less-than-or-equal condition with vendor-aware column quoting.
func (qb *QueryBuilder) LtOrEq(column string, value any) squirrel.LtOrEq {
	return squirrel.LtOrEq{qb.quoteColumn(column): value}
}

// Gt creates a greater-than condition with vendor-aware column quoting.
func (qb *QueryBuilder) Gt(column string, value any) squirrel.Gt {
	return squirrel.Gt{qb.quoteColumn(column): value}
}

// GtOrEq creates a greater-than-or-equal condition with vendor-aware column quoting.
func (qb *QueryBuilder) GtOrEq(column string, value any) squirrel.GtOrEq {
	return squirrel.GtOrEq{qb.quoteColumn(column): value}
}

// quoteColumn applies Oracle identifier quoting to a single column reference.
func (qb *QueryBuilder) quoteColumn(column string) string {
	if qb.vendor != types.Oracle {
		return column
	}
	return oracleQuoteIdentifier(column)
}

// quoteColumns applies Oracle identifier quoting to each column reference.
func (qb *QueryBuilder) quoteColumns(columns ...string) []string {
	if qb.vendor != types.Oracle {
		return columns
	}

	quoted := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = oracleQuoteIdentifier(col)
	}
	return quoted
}

// Oracle reserved words that must be quoted when used as identifiers.
var oracleReservedWords = map[string]struct{}{
	"ACCESS": {}, "ADD": {}, "ALL": {}, "ALTER": {}, "AND": {}, "ANY": {}, "AS": {}, "ASC": {},
	"BEGIN": {}, "BETWEEN": {}, "BY": {}, "CASE": {}, "CHECK": {}, "COLUMN": {}, "COMMENT": {},
	"CONNECT": {}, "CREATE": {}, "CURRENT": {}, "DELETE": {}, "DESC": {}, "DISTINCT": {},
	"DROP": {}, "ELSE": {}, "EXCLUDE": {}, "EXISTS": {}, "FOR": {}, "FROM": {}, "GRANT": {},
	"GROUP": {}, "HAVING": {}, "IN": {}, "INDEX": {}, "INSERT": {}, "INTERSECT": {}, "INTO": {},
	"IS": {}, "LEVEL": {}, "LIKE": {}, "LOCK": {}, "MINUS": {}, "MODE": {}, "NOCOMPRESS": {},
	"NOT": {}, "NULL": {}, "NUMBER": {}, "OF": {}, "ON": {}, "OPTION": {}, "OR": {}, "ORDER": {},
	"ROW": {}, "ROWNUM": {}, "SELECT": {}, "SET": {}, "SHARE": {}, "SIZE": {}, "START": {},
	"TABLE": {}, "THEN": {}, "TO": {}, "TRIGGER": {}, "UNION": {}, "UNIQUE": {}, "UPDATE": {},
	"VALUES": {}, "VIEW": {}, "WHEN": {}, "WHERE": {}, "WITH": {},
}

func isOracleReservedWord(identifier string) bool {
	if identifier == "" {
		return false
	}
	_, ok := oracleReservedWords[strings.ToUpper(identifier)]
	return ok
}

func oracleNeedsQuoting(identifier string) bool {
	if identifier == "" {
		return false
	}

	first := identifier[0]
	if first >= '0' && first <= '9' {
		return true
	}

	for _, r := range identifier {
		if (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '$' || r == '#' {
			continue
		}
		return true
	}

	return false
}

// oracleQuoteIdentifier quotes a column reference when Oracle requires it.
// Expressions (function calls, star selects, aliased columns) pass through
// untouched; dotted references are quoted part by part.
func oracleQuoteIdentifier(column string) string {
	trimmed := strings.TrimSpace(column)
	if trimmed == "" {
		return trimmed
	}

	if strings.ContainsAny(trimmed, "(* ") {
		return trimmed
	}

	if strings.Contains(trimmed, ".") {
		parts := strings.Split(trimmed, ".")
		for i, part := range parts {
			parts[i] = oracleQuoteIdentifier(part)
		}
		return strings.Join(parts, ".")
	}

	if len(trimmed) >= 2 && trimmed[0] == '"' && trimmed[len(trimmed)-1] == '"' {
		return trimmed
	}

	if isOracleReservedWord(trimmed) {
		return `"` + strings.ToUpper(trimmed) + `"`
	}

	if oracleNeedsQuoting(trimmed) {
		return `"` + trimmed + `"`
	}

	return trimmed
}

// buildOraclePaginationClause constructs the OFFSET/FETCH NEXT clause for
// Oracle 12c+. Returns an empty string when neither limit nor offset applies.
func buildOraclePaginationClause(limit, offset int) string {
	if limit <= 0 && offset <= 0 {
		return ""
	}

	parts := make([]string, 0, 2)
	if offset > 0 {
		parts = append(parts, fmt.Sprintf("OFFSET %d ROWS", offset))
	}
	if limit > 0 {
		parts = append(parts, fmt.Sprintf("FETCH NEXT %d ROWS ONLY", limit))
	}

	return strings.Join(parts, " ")
}

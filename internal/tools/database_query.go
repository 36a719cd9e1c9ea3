package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
	"gorm.io/gorm"

	"github.com/corlin/hicrm-core/internal/common"
	"github.com/corlin/hicrm-core/internal/logger"
	"github.com/corlin/hicrm-core/internal/types"
)

// DatabaseQueryInput is the database_query tool's parameter schema,
// adapted from the teacher's agent/tools/database_query.go.
type DatabaseQueryInput struct {
	SQL string `json:"sql" jsonschema:"The SELECT SQL query to execute against the CRM schema."`
}

const databaseQueryDescription = `Execute read-only SQL queries against the CRM schema to retrieve customer information.

## Security Features
- Read-only queries: only SELECT statements are allowed
- Safe tables: only the tables listed below may be queried
- No subqueries, CTEs, UNIONs, or schema-qualified identifiers

## Available Tables and Columns

### customers
- id (VARCHAR): Customer ID
- name (VARCHAR): Customer name
- industry (VARCHAR): Industry
- size (VARCHAR): Company size
- score (DOUBLE PRECISION): Qualification score
- budget (DOUBLE PRECISION): Estimated budget
- created_at, updated_at (TIMESTAMP)

### contact_strategies
- customer_id (VARCHAR): Owning customer
- primary_method (VARCHAR): Preferred contact method
- backup_method (VARCHAR): Fallback contact method
- value_proposition (TEXT)
- call_to_action (TEXT)
- created_at, updated_at (TIMESTAMP)

### visit_plans
- customer_id (VARCHAR): Owning customer
- plan_index (INTEGER): Position among the customer's plans
- created_at, updated_at (TIMESTAMP)

### discovery_tasks
- task_id (VARCHAR): Task ID
- customer_id (VARCHAR): Owning customer
- stage (VARCHAR): Discovery stage
- priority (INTEGER)
- status (VARCHAR)
- progress (DOUBLE PRECISION)
- due_at, created_at, updated_at (TIMESTAMP)

## Usage Examples

{
  "sql": "SELECT id, name, score FROM customers ORDER BY score DESC LIMIT 10"
}

{
  "sql": "SELECT stage, COUNT(*) as count FROM discovery_tasks GROUP BY stage"
}

## Important Notes
- Only SELECT queries are allowed
- Limit results with a LIMIT clause for better performance
- All timestamps are in UTC with time zone`

var databaseQuerySchema = common.GenerateSchema[DatabaseQueryInput]()

// sqlSecurityValidator validates a single SELECT statement against the
// CRM table/function whitelist using PostgreSQL's own parser, adapted
// from the teacher's SQLSecurityValidator (its tenant_id injection has
// no analogue here — the CRM schema carries no tenant concept).
type sqlSecurityValidator struct {
	allowedTables    map[string]bool
	allowedFunctions map[string]bool
}

func newSQLSecurityValidator() *sqlSecurityValidator {
	return &sqlSecurityValidator{
		allowedTables: map[string]bool{
			"customers":          true,
			"contact_strategies": true,
			"visit_plans":        true,
			"discovery_tasks":    true,
		},
		allowedFunctions: map[string]bool{
			"count": true, "sum": true, "avg": true, "min": true, "max": true,
			"array_agg": true, "string_agg": true, "json_agg": true, "jsonb_agg": true,
			"coalesce": true, "nullif": true, "greatest": true, "least": true,
			"abs": true, "ceil": true, "floor": true, "round": true, "length": true,
			"lower": true, "upper": true, "trim": true, "substring": true, "concat": true,
			"now": true, "current_date": true, "current_timestamp": true,
			"date_trunc": true, "extract": true, "to_char": true, "date_part": true,
		},
	}
}

// validateAndSecure parses sqlQuery, rejects anything but a single
// simple SELECT over whitelisted tables/functions, and returns its
// normalized (deparsed) form.
func (v *sqlSecurityValidator) validateAndSecure(sqlQuery string) (string, error) {
	if strings.Contains(sqlQuery, "\x00") {
		return "", fmt.Errorf("invalid character in SQL query")
	}
	if len(sqlQuery) < 6 {
		return "", fmt.Errorf("SQL query too short")
	}
	if len(sqlQuery) > 4096 {
		return "", fmt.Errorf("SQL query too long (max 4096 characters)")
	}

	result, err := pg_query.Parse(sqlQuery)
	if err != nil {
		return "", fmt.Errorf("SQL parse error: %w", err)
	}
	if len(result.Stmts) == 0 {
		return "", fmt.Errorf("empty query")
	}
	if len(result.Stmts) > 1 {
		return "", fmt.Errorf("multiple statements are not allowed")
	}

	selectStmt := result.Stmts[0].Stmt.GetSelectStmt()
	if selectStmt == nil {
		return "", fmt.Errorf("only SELECT queries are allowed")
	}
	if err := v.validateSelectStmt(selectStmt); err != nil {
		return "", err
	}

	normalized, err := pg_query.Deparse(result)
	if err != nil {
		return "", fmt.Errorf("failed to normalize SQL: %w", err)
	}
	return normalized, nil
}

func (v *sqlSecurityValidator) validateSelectStmt(stmt *pg_query.SelectStmt) error {
	if stmt.Op != pg_query.SetOperation_SETOP_NONE {
		return fmt.Errorf("compound queries (UNION/INTERSECT/EXCEPT) are not allowed")
	}
	if stmt.WithClause != nil {
		return fmt.Errorf("WITH clause (CTEs) is not allowed")
	}
	if stmt.IntoClause != nil {
		return fmt.Errorf("SELECT INTO is not allowed")
	}
	if len(stmt.LockingClause) > 0 {
		return fmt.Errorf("locking clauses (FOR UPDATE, etc.) are not allowed")
	}

	tables := make(map[string]bool)
	for _, fromItem := range stmt.FromClause {
		if err := v.validateFromItem(fromItem, tables); err != nil {
			return err
		}
	}
	for _, target := range stmt.TargetList {
		if err := v.validateNode(target); err != nil {
			return err
		}
	}
	if stmt.WhereClause != nil {
		if err := v.validateNode(stmt.WhereClause); err != nil {
			return err
		}
	}
	for _, groupBy := range stmt.GroupClause {
		if err := v.validateNode(groupBy); err != nil {
			return err
		}
	}
	if stmt.HavingClause != nil {
		if err := v.validateNode(stmt.HavingClause); err != nil {
			return err
		}
	}
	for _, sortBy := range stmt.SortClause {
		if err := v.validateNode(sortBy); err != nil {
			return err
		}
	}
	if len(tables) == 0 {
		return fmt.Errorf("no valid table found in query")
	}
	return nil
}

func (v *sqlSecurityValidator) validateFromItem(node *pg_query.Node, tables map[string]bool) error {
	if node == nil {
		return nil
	}
	if rv := node.GetRangeVar(); rv != nil {
		tableName := strings.ToLower(rv.Relname)
		if rv.Schemaname != "" && strings.ToLower(rv.Schemaname) != "public" {
			return fmt.Errorf("access to schema '%s' is not allowed", rv.Schemaname)
		}
		if !v.allowedTables[tableName] {
			return fmt.Errorf("table not allowed: %s", rv.Relname)
		}
		tables[tableName] = true
		return nil
	}
	if je := node.GetJoinExpr(); je != nil {
		if err := v.validateFromItem(je.Larg, tables); err != nil {
			return err
		}
		if err := v.validateFromItem(je.Rarg, tables); err != nil {
			return err
		}
		if je.Quals != nil {
			return v.validateNode(je.Quals)
		}
		return nil
	}
	if node.GetRangeSubselect() != nil {
		return fmt.Errorf("subqueries in FROM clause are not allowed")
	}
	if node.GetRangeFunction() != nil {
		return fmt.Errorf("functions in FROM clause are not allowed")
	}
	return nil
}

func (v *sqlSecurityValidator) validateNode(node *pg_query.Node) error {
	if node == nil {
		return nil
	}
	if node.GetSubLink() != nil {
		return fmt.Errorf("subqueries are not allowed")
	}
	if fc := node.GetFuncCall(); fc != nil {
		return v.validateFuncCall(fc)
	}
	if cr := node.GetColumnRef(); cr != nil {
		return v.validateColumnRef(cr)
	}
	if tc := node.GetTypeCast(); tc != nil {
		if err := v.validateNode(tc.Arg); err != nil {
			return err
		}
		if tc.TypeName != nil && strings.HasPrefix(strings.ToLower(v.typeName(tc.TypeName)), "pg_") {
			return fmt.Errorf("casting to system type '%s' is not allowed", v.typeName(tc.TypeName))
		}
	}
	if ae := node.GetAExpr(); ae != nil {
		if err := v.validateNode(ae.Lexpr); err != nil {
			return err
		}
		if err := v.validateNode(ae.Rexpr); err != nil {
			return err
		}
	}
	if be := node.GetBoolExpr(); be != nil {
		for _, arg := range be.Args {
			if err := v.validateNode(arg); err != nil {
				return err
			}
		}
	}
	if nt := node.GetNullTest(); nt != nil {
		if err := v.validateNode(nt.Arg); err != nil {
			return err
		}
	}
	if ce := node.GetCoalesceExpr(); ce != nil {
		for _, arg := range ce.Args {
			if err := v.validateNode(arg); err != nil {
				return err
			}
		}
	}
	if caseExpr := node.GetCaseExpr(); caseExpr != nil {
		if err := v.validateNode(caseExpr.Arg); err != nil {
			return err
		}
		for _, when := range caseExpr.Args {
			if err := v.validateNode(when); err != nil {
				return err
			}
		}
		if err := v.validateNode(caseExpr.Defresult); err != nil {
			return err
		}
	}
	if cw := node.GetCaseWhen(); cw != nil {
		if err := v.validateNode(cw.Expr); err != nil {
			return err
		}
		if err := v.validateNode(cw.Result); err != nil {
			return err
		}
	}
	if rt := node.GetResTarget(); rt != nil {
		if err := v.validateNode(rt.Val); err != nil {
			return err
		}
	}
	if sb := node.GetSortBy(); sb != nil {
		if err := v.validateNode(sb.Node); err != nil {
			return err
		}
	}
	if list := node.GetList(); list != nil {
		for _, item := range list.Items {
			if err := v.validateNode(item); err != nil {
				return err
			}
		}
	}
	return nil
}

func (v *sqlSecurityValidator) validateFuncCall(fc *pg_query.FuncCall) error {
	funcName := ""
	for _, namePart := range fc.Funcname {
		if s := namePart.GetString_(); s != nil {
			funcName = strings.ToLower(s.Sval)
		}
	}
	if len(fc.Funcname) > 1 {
		schemaName := ""
		if s := fc.Funcname[0].GetString_(); s != nil {
			schemaName = strings.ToLower(s.Sval)
		}
		if schemaName != "" && schemaName != "pg_catalog" {
			return fmt.Errorf("schema-qualified function calls are not allowed: %s", schemaName)
		}
	}
	for _, prefix := range []string{"pg_", "lo_", "dblink", "file_", "copy_"} {
		if strings.HasPrefix(funcName, prefix) {
			return fmt.Errorf("function '%s' is not allowed (dangerous prefix)", funcName)
		}
	}
	if !v.allowedFunctions[funcName] {
		return fmt.Errorf("function not allowed: %s", funcName)
	}
	for _, arg := range fc.Args {
		if err := v.validateNode(arg); err != nil {
			return err
		}
	}
	return nil
}

func (v *sqlSecurityValidator) validateColumnRef(cr *pg_query.ColumnRef) error {
	systemColumns := map[string]bool{
		"xmin": true, "xmax": true, "cmin": true, "cmax": true, "ctid": true, "tableoid": true,
	}
	for _, field := range cr.Fields {
		if s := field.GetString_(); s != nil {
			colName := strings.ToLower(s.Sval)
			if systemColumns[colName] {
				return fmt.Errorf("access to system column '%s' is not allowed", colName)
			}
			if strings.HasPrefix(colName, "pg_") {
				return fmt.Errorf("access to '%s' is not allowed", colName)
			}
		}
	}
	return nil
}

func (v *sqlSecurityValidator) typeName(tn *pg_query.TypeName) string {
	var parts []string
	for _, name := range tn.Names {
		if s := name.GetString_(); s != nil {
			parts = append(parts, s.Sval)
		}
	}
	return strings.Join(parts, ".")
}

var limitClausePattern = regexp.MustCompile(`(?i)\b(GROUP BY|ORDER BY|LIMIT|OFFSET|HAVING|FETCH)\b`)

// NewDatabaseQueryTool builds the database_query tool bound to db,
// scoped to the CustomerStore schema (customers/contact_strategies/
// visit_plans/discovery_tasks), adapted from the teacher's
// agent/tools/database_query.go NewDatabaseQueryTool/Execute.
func NewDatabaseQueryTool(db *gorm.DB) types.Tool {
	return types.Tool{
		Name:         "database_query",
		Description:  databaseQueryDescription,
		ParamsSchema: databaseQuerySchema,
		Enabled:      true,
		Handler: func(ctx context.Context, args json.RawMessage) (*types.ToolResult, error) {
			var input DatabaseQueryInput
			if err := json.Unmarshal(args, &input); err != nil {
				return &types.ToolResult{Success: false, Error: fmt.Sprintf("failed to parse args: %v", err)}, err
			}
			if input.SQL == "" {
				return &types.ToolResult{Success: false, Error: "missing 'sql' parameter"}, fmt.Errorf("missing sql parameter")
			}

			securedSQL, err := newSQLSecurityValidator().validateAndSecure(input.SQL)
			if err != nil {
				logger.GetLogger(ctx).WithError(err).Warn("database_query validation failed")
				return &types.ToolResult{Success: false, Error: fmt.Sprintf("SQL validation failed: %v", err)}, err
			}

			rows, err := db.WithContext(ctx).Raw(securedSQL).Rows()
			if err != nil {
				return &types.ToolResult{Success: false, Error: fmt.Sprintf("query execution failed: %v", err)}, err
			}
			defer rows.Close()

			columns, err := rows.Columns()
			if err != nil {
				return &types.ToolResult{Success: false, Error: fmt.Sprintf("failed to get columns: %v", err)}, err
			}

			results := make([]map[string]interface{}, 0)
			for rows.Next() {
				values := make([]interface{}, len(columns))
				pointers := make([]interface{}, len(columns))
				for i := range values {
					pointers[i] = &values[i]
				}
				if err := rows.Scan(pointers...); err != nil {
					return &types.ToolResult{Success: false, Error: fmt.Sprintf("failed to scan row: %v", err)}, err
				}
				row := make(map[string]interface{}, len(columns))
				for i, col := range columns {
					if b, ok := values[i].([]byte); ok {
						row[col] = string(b)
					} else {
						row[col] = values[i]
					}
				}
				results = append(results, row)
			}
			if err := rows.Err(); err != nil {
				return &types.ToolResult{Success: false, Error: fmt.Sprintf("error iterating rows: %v", err)}, err
			}

			return &types.ToolResult{
				Success: true,
				Output:  formatQueryResults(columns, results, securedSQL),
				Data: map[string]interface{}{
					"columns":   columns,
					"rows":      results,
					"row_count": len(results),
					"query":     securedSQL,
				},
			}, nil
		},
	}
}

func formatQueryResults(columns []string, results []map[string]interface{}, query string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "query: %s\n", query)
	fmt.Fprintf(&b, "%d row(s) returned\n\n", len(results))
	if len(results) == 0 {
		b.WriteString("no matching records found.\n")
		return b.String()
	}
	for i, row := range results {
		fmt.Fprintf(&b, "--- row %d ---\n", i+1)
		for _, col := range columns {
			value := row[col]
			var formatted string
			switch v := value.(type) {
			case nil:
				formatted = "<NULL>"
			case string:
				formatted = v
			default:
				if jsonData, err := json.Marshal(v); err == nil {
					formatted = string(jsonData)
				} else {
					formatted = fmt.Sprintf("%v", v)
				}
			}
			fmt.Fprintf(&b, "  %s: %s\n", col, formatted)
		}
		b.WriteString("\n")
	}
	if len(results) > 10 {
		fmt.Fprintf(&b, "note: consider a LIMIT clause to narrow results (%d rows shown).\n", len(results))
	}
	return b.String()
}

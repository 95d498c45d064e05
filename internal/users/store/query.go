package store

import (
	"fmt"
	"strings"

	"github.com/lib/pq"

	"rolegate/internal/params"
	id "rolegate/pkg/domain"
)

type listQuery struct {
	page      string
	pageArgs  []any
	count     string
	countArgs []any
}

// buildListQuery renders the page and count statements for p. p must already
// pass ValidateParams; columns come from the allowlist and literals are bound,
// coerced to their column type.
func buildListQuery(p params.Params, roles []id.Role) listQuery {
	var (
		conds []string
		args  []any
	)
	bind := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	for _, f := range p.Where() {
		col := pq.QuoteIdentifier(fields[f.Field].column)
		switch pattern, isPattern := f.Pattern(); {
		case f.IsNull():
			conds = append(conds, col+" IS NULL")
		case isPattern:
			conds = append(conds, col+"::text ~* "+bind(pattern))
		default:
			v, _ := literal(f)
			conds = append(conds, col+" = "+bind(v))
		}
	}
	if len(roles) > 0 {
		names := make([]string, len(roles))
		for i, r := range roles {
			names[i] = string(r)
		}
		conds = append(conds, `"role"::text = ANY(`+bind(pq.Array(names))+`)`)
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	orderBy := make([]string, 0, len(p.Order())+1)
	hasID := false
	for _, term := range p.Order() {
		dir := "ASC"
		if term.Direction == params.Desc {
			dir = "DESC"
		}
		orderBy = append(orderBy, pq.QuoteIdentifier(fields[term.Field].column)+" "+dir)
		hasID = hasID || term.Field == "id"
	}
	if !hasID {
		orderBy = append(orderBy, `"id" ASC`)
	}

	countArgs := append([]any(nil), args...)
	count := `SELECT count(*) FROM "user"` + where

	limit := bind(p.Take())
	offset := bind(p.Skip())
	page := `SELECT ` + userColumns + ` FROM "user"` + where +
		` ORDER BY ` + strings.Join(orderBy, ", ") +
		` LIMIT ` + limit + ` OFFSET ` + offset

	return listQuery{page: page, pageArgs: args, count: count, countArgs: countArgs}
}

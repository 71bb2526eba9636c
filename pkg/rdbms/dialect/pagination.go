package dialect

import (
	"fmt"
	"regexp"

	"github.com/thetechidea/beepdatasources/internal/sqltext"
	"github.com/thetechidea/beepdatasources/pkg/errors"
)

var orderByKeyword = regexp.MustCompile(`(?i)\bORDER\s+BY\b`)

// Paginate appends the dialect's paging syntax to query. Page numbers start
// at 1; numbers below 1 are treated as 1.
func Paginate(query string, d Dialect, pageNumber, pageSize int) (string, error) {
	if pageSize < 1 {
		return "", errors.Newf(errors.ErrorTypeValidation, "page size must be at least 1, got %d", pageSize)
	}
	if pageNumber < 1 {
		pageNumber = 1
	}
	q := sqltext.TrimStatement(query)
	if q == "" {
		return "", errors.New(errors.ErrorTypeValidation, "query is empty")
	}
	offset := (pageNumber - 1) * pageSize

	switch d {
	case SQLServer:
		// OFFSET/FETCH is only valid after ORDER BY
		if !sqltext.HasTopLevel(q, orderByKeyword) {
			q += " ORDER BY (SELECT NULL)"
		}
		return fmt.Sprintf("%s OFFSET %d ROWS FETCH NEXT %d ROWS ONLY", q, offset, pageSize), nil
	case Oracle, DB2:
		return fmt.Sprintf("%s OFFSET %d ROWS FETCH NEXT %d ROWS ONLY", q, offset, pageSize), nil
	case Firebird:
		return fmt.Sprintf("%s ROWS %d TO %d", q, offset+1, offset+pageSize), nil
	default:
		return fmt.Sprintf("%s LIMIT %d OFFSET %d", q, pageSize, offset), nil
	}
}

// Paginator is the signature of Paginate, so callers can substitute their own.
type Paginator func(query string, d Dialect, pageNumber, pageSize int) (string, error)

package echoapi

import (
	"fmt"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/escola/core"
)

var (
	orderingParam = "ordering"

	errUnknownOrdering = errors.New("unknown ordering field")
)

// Ordering binds `?ordering=-final_average,student_id`; a leading "-" sorts descending.
type Ordering struct {
	Orderings []core.DBOrdering
}

// Bind parses the ordering param, rejecting fields that are not in allowed.
func (ord *Ordering) Bind(ctx echo.Context, allowed []string) error {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return nil
	}

	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		if !contains(allowed, field) {
			return core.NewValidationError(
				errors.Wrap(errUnknownOrdering, field),
				core.FieldError{Field: orderingParam, Error: fmt.Sprintf("cannot order by %q", field)},
			)
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
	return nil
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

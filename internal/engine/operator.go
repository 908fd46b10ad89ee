package engine

import (
	"fmt"
	"strconv"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/tablegate/tablegate/internal/schema"
)

// Operator is the closed set of filter operators. Adding one means updating
// every switch below; the compiler enforces exhaustiveness by erroring on
// anything outside the set.
type Operator string

const (
	OpEq        Operator = "eq"
	OpNeq       Operator = "neq"
	OpGt        Operator = "gt"
	OpGte       Operator = "gte"
	OpLt        Operator = "lt"
	OpLte       Operator = "lte"
	OpLike      Operator = "like"
	OpILike     Operator = "ilike"
	OpIn        Operator = "in"
	OpNotIn     Operator = "notIn"
	OpBetween   Operator = "between"
	OpIsNull    Operator = "isNull"
	OpIsNotNull Operator = "isNotNull"
)

var validOperators = map[Operator]bool{
	OpEq: true, OpNeq: true, OpGt: true, OpGte: true, OpLt: true, OpLte: true,
	OpLike: true, OpILike: true, OpIn: true, OpNotIn: true, OpBetween: true,
	OpIsNull: true, OpIsNotNull: true,
}

// ParseOperator validates a symbolic operator name.
func ParseOperator(raw string) (Operator, error) {
	op := Operator(raw)
	if !validOperators[op] {
		return "", validationErrf("unknown operator %q", raw)
	}
	return op, nil
}

// comparison maps a simple operator to its SQL form.
func comparison(op Operator) string {
	switch op {
	case OpEq:
		return "="
	case OpNeq:
		return "!="
	case OpGt:
		return ">"
	case OpGte:
		return ">="
	case OpLt:
		return "<"
	case OpLte:
		return "<="
	case OpLike:
		return "LIKE"
	case OpILike:
		return "ILIKE"
	}
	return "="
}

// condition builds the predicate fragment for expr <op> value on the given
// dialect. Values are always parameterized, never interpolated.
func condition(expr string, op Operator, value any, d Dialect) (sq.Sqlizer, error) {
	switch op {
	case OpIsNull:
		return sq.Expr(expr + " IS NULL"), nil
	case OpIsNotNull:
		return sq.Expr(expr + " IS NOT NULL"), nil
	case OpIn, OpNotIn:
		vals, err := arrayValue(op, value, 0)
		if err != nil {
			return nil, err
		}
		if op == OpIn {
			return sq.Eq{expr: vals}, nil
		}
		return sq.NotEq{expr: vals}, nil
	case OpBetween:
		vals, err := arrayValue(op, value, 2)
		if err != nil {
			return nil, err
		}
		return sq.Expr(fmt.Sprintf("%s BETWEEN ? AND ?", expr), vals[0], vals[1]), nil
	case OpILike:
		if !Supports(d, FeatureILike) {
			// Portable rewrite for dialects without native ILIKE.
			return sq.Expr(fmt.Sprintf("lower(%s) LIKE lower(?)", expr), value), nil
		}
		return sq.Expr(fmt.Sprintf("%s ILIKE ?", expr), value), nil
	case OpEq, OpNeq, OpGt, OpGte, OpLt, OpLte, OpLike:
		return sq.Expr(fmt.Sprintf("%s %s ?", expr, comparison(op)), value), nil
	}
	return nil, validationErrf("unknown operator %q", op)
}

// arrayValue checks array-shaped operator values; arity 0 means any non-empty.
func arrayValue(op Operator, value any, arity int) ([]any, error) {
	vals, ok := value.([]any)
	if !ok {
		return nil, validationErrf("operator %q requires an array value", op)
	}
	if arity > 0 && len(vals) != arity {
		return nil, validationErrf("operator %q requires exactly %d values, got %d", op, arity, len(vals))
	}
	if len(vals) == 0 {
		return nil, validationErrf("operator %q requires a non-empty array", op)
	}
	return vals, nil
}

// validateValue checks a filter value's shape against the column's declared
// type before any condition is built.
func validateValue(f *Field, op Operator, value any) error {
	switch op {
	case OpIsNull, OpIsNotNull:
		return nil
	case OpIn, OpNotIn, OpBetween:
		vals, ok := value.([]any)
		if !ok {
			return validationErrf("operator %q on %q requires an array value", op, f.Name)
		}
		for _, v := range vals {
			if err := validateScalar(f, v); err != nil {
				return err
			}
		}
		return nil
	}
	return validateScalar(f, value)
}

func validateScalar(f *Field, value any) error {
	switch f.Type() {
	case schema.TypeNumber:
		switch v := value.(type) {
		case float64, int, int64:
			return nil
		case string:
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				return validationErrf("field %q expects a numeric value", f.Name)
			}
			return nil
		default:
			return validationErrf("field %q expects a numeric value", f.Name)
		}
	case schema.TypeBoolean:
		switch v := value.(type) {
		case bool:
			return nil
		case string:
			if _, err := strconv.ParseBool(v); err != nil {
				return validationErrf("field %q expects a boolean value", f.Name)
			}
			return nil
		default:
			return validationErrf("field %q expects a boolean value", f.Name)
		}
	case schema.TypeUUID:
		s, ok := value.(string)
		if !ok {
			return validationErrf("field %q expects a uuid value", f.Name)
		}
		if _, err := uuid.Parse(s); err != nil {
			return validationErrf("field %q expects a uuid value", f.Name)
		}
		return nil
	case schema.TypeDate:
		s, ok := value.(string)
		if !ok {
			if _, isTime := value.(time.Time); isTime {
				return nil
			}
			return validationErrf("field %q expects a date value", f.Name)
		}
		if IsDatePreset(s) {
			return nil
		}
		if _, err := parseDate(s); err != nil {
			return validationErrf("field %q expects a date value, got %q", f.Name, s)
		}
		return nil
	}
	return nil
}

// parseDate accepts RFC 3339 timestamps and plain dates.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

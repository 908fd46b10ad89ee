package schema

import "strings"

// QuoteIdent quotes a SQL identifier, escaping embedded double quotes.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// RawExpr is a developer-authored SQL fragment from a table config file.
// It is a distinct type so request input can never be used where a raw
// fragment is accepted: only config decoding produces values of this type.
type RawExpr string

type ValueType string

const (
	TypeString  ValueType = "string"
	TypeNumber  ValueType = "number"
	TypeBoolean ValueType = "boolean"
	TypeDate    ValueType = "date"
	TypeJSON    ValueType = "json"
	TypeUUID    ValueType = "uuid"
)

// ColumnConfig describes one output field of a table API.
type ColumnConfig struct {
	// Name is the output key clients see and reference in filters/sorts.
	Name string `json:"name"`
	// Source is the underlying column, optionally dot-qualified as
	// "table.column" for a joined source. Defaults to Name.
	Source string    `json:"source,omitempty"`
	Type   ValueType `json:"type"`
	Hidden bool      `json:"hidden,omitempty"`
	// Sortable and Filterable default to true when omitted.
	Sortable   *bool `json:"sortable,omitempty"`
	Filterable *bool `json:"filterable,omitempty"`
	// Computed columns are backed by Expression instead of a stored column.
	Computed   bool    `json:"computed,omitempty"`
	Expression RawExpr `json:"expression,omitempty"`
	// Roles restricts visibility to callers holding at least one role.
	Roles []string `json:"roles,omitempty"`
	// Options carries enum metadata for choice-like columns.
	Options []Option `json:"options,omitempty"`
	// Transform names a value transform applied by the response shaper
	// (upper, lower, trim, maskEmail).
	Transform string `json:"transform,omitempty"`
}

type Option struct {
	Value string `json:"value"`
	Label string `json:"label,omitempty"`
}

// IsSortable reports whether the column may be used in ORDER BY.
func (c *ColumnConfig) IsSortable() bool {
	return c.Sortable == nil || *c.Sortable
}

// IsFilterable reports whether the column may be used in WHERE.
func (c *ColumnConfig) IsFilterable() bool {
	return c.Filterable == nil || *c.Filterable
}

// IsNumeric reports whether values need numeric comparison semantics.
func (c *ColumnConfig) IsNumeric() bool { return c.Type == TypeNumber }

type JoinKind string

const (
	JoinLeft  JoinKind = "left"
	JoinRight JoinKind = "right"
	JoinInner JoinKind = "inner"
	JoinFull  JoinKind = "full"
)

// JoinOn is the ON predicate of a join: either a structured column pair
// (preferred) or a raw developer-authored expression.
type JoinOn struct {
	// Local is a column of the parent source, Foreign of the joined table.
	Local   string  `json:"local,omitempty"`
	Foreign string  `json:"foreign,omitempty"`
	Raw     RawExpr `json:"raw,omitempty"`
}

// JoinConfig is a node in a recursively nestable join tree.
type JoinConfig struct {
	Table   string         `json:"table"`
	Alias   string         `json:"alias,omitempty"`
	Kind    JoinKind       `json:"kind,omitempty"`
	On      JoinOn         `json:"on"`
	Columns []ColumnConfig `json:"columns,omitempty"`
	Joins   []JoinConfig   `json:"joins,omitempty"`
}

// AliasOrTable returns the effective SQL alias for the join node.
func (j *JoinConfig) AliasOrTable() string {
	if j.Alias != "" {
		return j.Alias
	}
	return j.Table
}

// FilterExpression is a recursive condition tree: either a leaf
// {Field, Operator, Value} or a boolean group {Op, Children}.
type FilterExpression struct {
	// Op is "and" or "or" for groups; empty for leaves.
	Op       string             `json:"op,omitempty"`
	Children []FilterExpression `json:"children,omitempty"`

	Field    string `json:"field,omitempty"`
	Operator string `json:"operator,omitempty"`
	Value    any    `json:"value,omitempty"`
}

// IsGroup reports whether the node is a boolean group rather than a leaf.
func (e *FilterExpression) IsGroup() bool { return e.Op != "" }

// FilterConfig is a flat config-declared filter. Static filters are always
// applied and invisible to clients; non-static ones act as overridable
// request defaults.
type FilterConfig struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    any    `json:"value"`
	Static   bool   `json:"static,omitempty"`
}

type SearchConfig struct {
	Fields []string `json:"fields"`
	// MinLength drops search terms shorter than this (default 1).
	MinLength int `json:"minLength,omitempty"`
}

type SortConfig struct {
	Field     string `json:"field"`
	Direction string `json:"direction,omitempty"` // asc (default) or desc
}

// Desc reports whether the sort is descending.
func (s SortConfig) Desc() bool { return strings.EqualFold(s.Direction, "desc") }

type PaginationConfig struct {
	DefaultPageSize int  `json:"defaultPageSize,omitempty"`
	MaxPageSize     int  `json:"maxPageSize,omitempty"`
	Disabled        bool `json:"disabled,omitempty"`
}

type AggregationType string

const (
	AggCount AggregationType = "count"
	AggSum   AggregationType = "sum"
	AggAvg   AggregationType = "avg"
	AggMin   AggregationType = "min"
	AggMax   AggregationType = "max"
)

type AggregationConfig struct {
	Alias string          `json:"alias"`
	Type  AggregationType `json:"type"`
	// Field is the aggregated column; empty means count(*).
	Field string `json:"field,omitempty"`
}

type SubqueryMode string

const (
	SubCount  SubqueryMode = "count"
	SubExists SubqueryMode = "exists"
	SubFirst  SubqueryMode = "first"
)

// SubqueryCondition correlates a subquery column with either an outer-query
// column or a literal value. Exactly one of OuterColumn/Value is set.
type SubqueryCondition struct {
	Column      string `json:"column"`
	Operator    string `json:"operator,omitempty"` // default eq
	OuterColumn string `json:"outerColumn,omitempty"`
	Value       any    `json:"value,omitempty"`
}

type SubqueryConfig struct {
	Alias string       `json:"alias"`
	Table string       `json:"table"`
	Mode  SubqueryMode `json:"mode"`
	// Columns limits the projection of first-mode subqueries.
	Columns []string `json:"columns,omitempty"`
	// Correlation predicate, in priority order: Expression, Conditions, Raw.
	Expression *FilterExpression   `json:"expression,omitempty"`
	Conditions []SubqueryCondition `json:"conditions,omitempty"`
	// Raw is the deprecated developer-authored escape hatch.
	Raw RawExpr `json:"raw,omitempty"`
	// OrderBy fixes which row is "first" in first mode.
	OrderBy []SortConfig `json:"orderBy,omitempty"`
	// Sortable and Filterable apply to scalar modes only; first-mode
	// subqueries are never sortable or filterable.
	Sortable   *bool `json:"sortable,omitempty"`
	Filterable *bool `json:"filterable,omitempty"`
}

type HavingCondition struct {
	// Alias references an AggregationConfig alias; the compiler resolves it
	// back to the aggregate expression.
	Alias    string `json:"alias"`
	Operator string `json:"operator"`
	Value    any    `json:"value"`
}

type GroupByConfig struct {
	Fields []string          `json:"fields"`
	Having []HavingCondition `json:"having,omitempty"`
}

type RecursiveConfig struct {
	ParentKey string `json:"parentKey"`
	ChildKey  string `json:"childKey"`
	// MaxDepth is a hard traversal ceiling and is required.
	MaxDepth int `json:"maxDepth"`
	// StartWith selects root rows; default is "parent key IS NULL".
	StartWith  *FilterExpression `json:"startWith,omitempty"`
	DepthAlias string            `json:"depthAlias,omitempty"` // default "depth"
	PathAlias  string            `json:"pathAlias,omitempty"`
}

type SoftDeleteConfig struct {
	Column string `json:"column"`
}

type TenantConfig struct {
	Column string `json:"column"`
}

type AccessConfig struct {
	// Roles the caller must hold at least one of to query the table at all.
	Roles []string `json:"roles"`
}

// TableConfig is the immutable per-table definition. It is validated once at
// startup and shared read-only across requests.
type TableConfig struct {
	Name       string `json:"name"`
	Table      string `json:"table"`
	PrimaryKey string `json:"primaryKey,omitempty"` // default "id"

	Columns []ColumnConfig `json:"columns"`
	Joins   []JoinConfig   `json:"joins,omitempty"`

	Filters      []FilterConfig     `json:"filters,omitempty"`
	FilterGroups []FilterExpression `json:"filterGroups,omitempty"`
	Search       *SearchConfig      `json:"search,omitempty"`
	DefaultSort  []SortConfig       `json:"defaultSort,omitempty"`
	Pagination   PaginationConfig   `json:"pagination,omitempty"`

	Aggregations []AggregationConfig `json:"aggregations,omitempty"`
	Subqueries   []SubqueryConfig    `json:"subqueries,omitempty"`
	GroupBy      *GroupByConfig      `json:"groupBy,omitempty"`
	Recursive    *RecursiveConfig    `json:"recursive,omitempty"`

	SoftDelete *SoftDeleteConfig `json:"softDelete,omitempty"`
	Tenant     *TenantConfig     `json:"tenant,omitempty"`
	Access     *AccessConfig     `json:"access,omitempty"`

	// DateRangeColumn is the column date-range shortcuts apply to.
	DateRangeColumn string `json:"dateRangeColumn,omitempty"`
}

// PK returns the configured primary key column, defaulting to "id".
func (t *TableConfig) PK() string {
	if t.PrimaryKey != "" {
		return t.PrimaryKey
	}
	return "id"
}

// TableName returns the quoted, possibly schema-qualified base table.
func (t *TableConfig) TableName() string {
	return QualifiedTable(t.Table)
}

// QualifiedTable quotes a table reference that may be "schema.table".
func QualifiedTable(ref string) string {
	if s, tbl, ok := strings.Cut(ref, "."); ok {
		return QuoteIdent(s) + "." + QuoteIdent(tbl)
	}
	return QuoteIdent(ref)
}

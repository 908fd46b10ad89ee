package engine

import sq "github.com/Masterminds/squirrel"

// Dialect identifies the relational engine a plan is compiled for. The
// executor reports it; the engine only consults the feature table below.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
	DialectMySQL    Dialect = "mysql"
	DialectUnknown  Dialect = ""
)

// Feature names a dialect-gated SQL capability.
type Feature string

const (
	// FeatureILike is native case-insensitive pattern match.
	FeatureILike Feature = "ilike"
	// FeatureFullText is engine-native full-text search.
	FeatureFullText Feature = "fullTextSearch"
	// FeatureRecursive is WITH RECURSIVE support.
	FeatureRecursive Feature = "recursiveQuery"
	// FeatureRowPack packs a single row into a structured scalar, used by
	// first-mode subqueries.
	FeatureRowPack Feature = "rowPack"
	// FeatureReturning is a result-returning DML clause.
	FeatureReturning Feature = "returning"
	// FeatureEstimatedCount is planner-estimate row counting.
	FeatureEstimatedCount Feature = "estimatedCount"
)

// featureDialects maps each gated feature to the dialects that support it.
var featureDialects = map[Feature]map[Dialect]bool{
	FeatureILike:          {DialectPostgres: true},
	FeatureFullText:       {DialectPostgres: true, DialectMySQL: true},
	FeatureRecursive:      {DialectPostgres: true, DialectSQLite: true, DialectMySQL: true},
	FeatureRowPack:        {DialectPostgres: true, DialectSQLite: true},
	FeatureReturning:      {DialectPostgres: true, DialectSQLite: true},
	FeatureEstimatedCount: {DialectPostgres: true},
}

// Supports reports whether dialect d offers feature f. Unknown dialects are
// permitted: feature gating fails open, unlike field whitelisting which
// always fails closed.
func Supports(d Dialect, f Feature) bool {
	supported, gated := featureDialects[f]
	if !gated {
		return true
	}
	if _, known := knownDialects[d]; !known {
		return true
	}
	return supported[d]
}

var knownDialects = map[Dialect]bool{
	DialectPostgres: true,
	DialectSQLite:   true,
	DialectMySQL:    true,
}

// Require returns a typed dialect error when d lacks feature f.
func Require(d Dialect, f Feature) error {
	if Supports(d, f) {
		return nil
	}
	return dialectErrf("feature %q is not supported on dialect %q", f, d)
}

// Placeholders returns the placeholder format the dialect expects.
func Placeholders(d Dialect) sq.PlaceholderFormat {
	if d == DialectPostgres {
		return sq.Dollar
	}
	return sq.Question
}

package repository

import "regexp"

// defaultDependentTables lists the tables whose rows are owned by a rider.
var defaultDependentTables = []string{"results", "race_entries", "series_points"} //nolint:gochecknoglobals // read-only default

var tableNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Option applies a configuration option to the SQLStore.
type Option func(*SQLStore)

// WithDependentTables replaces the tables repointed by ReassignOwnership. Every
// table needs a rider_id column. Names that are not plain identifiers are ignored.
func WithDependentTables(tables ...string) Option {
	return func(s *SQLStore) {
		valid := make([]string, 0, len(tables))
		for _, t := range tables {
			if tableNamePattern.MatchString(t) {
				valid = append(valid, t)
			}
		}
		if len(valid) > 0 {
			s.dependentTables = valid
		}
	}
}

// WithMaxOpenConns overrides the dialect's connection pool bound.
func WithMaxOpenConns(n int) Option {
	return func(s *SQLStore) {
		if n > 0 {
			s.dialect.maxOpenConns = n
		}
	}
}

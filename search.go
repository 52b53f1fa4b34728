package queryengine

import (
	"gorm.io/gorm/clause"
)

// SearchStrategy renders the "search" filter operator for a full-text backend.
type SearchStrategy interface {
	Condition(column clause.Column, query string) clause.Expression
}

// PostgresFullText matches a tsvector column against to_tsquery(Config, query).
type PostgresFullText struct {
	// Config is the text search configuration. Defaults to "english".
	Config string
}

func (s PostgresFullText) Condition(column clause.Column, query string) clause.Expression {
	config := s.Config
	if config == "" {
		config = "english"
	}

	return clause.Expr{
		SQL:  "? @@ to_tsquery(?, ?)",
		Vars: []any{column, config, query},
	}
}

// MySQLFullText uses MATCH ... AGAINST on a FULLTEXT indexed column.
type MySQLFullText struct{}

func (MySQLFullText) Condition(column clause.Column, query string) clause.Expression {
	return clause.Expr{
		SQL:  "MATCH (?) AGAINST (? IN NATURAL LANGUAGE MODE)",
		Vars: []any{column, query},
	}
}

// LikeSearch is a portable case-insensitive substring match.
type LikeSearch struct{}

func (LikeSearch) Condition(column clause.Column, query string) clause.Expression {
	return clause.Expr{
		SQL:  "LOWER(?) LIKE LOWER(?)",
		Vars: []any{column, "%" + query + "%"},
	}
}

// SearchStrategyFor picks the strategy matching a gorm dialector name.
func SearchStrategyFor(dialect string) SearchStrategy {
	switch dialect {
	case "postgres":
		return PostgresFullText{}
	case "mysql":
		return MySQLFullText{}
	default:
		return LikeSearch{}
	}
}

var (
	_ SearchStrategy = PostgresFullText{}
	_ SearchStrategy = MySQLFullText{}
	_ SearchStrategy = LikeSearch{}
)

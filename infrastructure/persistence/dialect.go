package persistence

import (
	"fmt"
	"strings"
)

// Dialect covers the SQL differences between the supported servers.
type Dialect struct {
	Name string
	// Placeholder renders the n-th (1-based) bind parameter.
	Placeholder func(n int) string
	// InsertReturningID builds an INSERT that yields the new row id.
	InsertReturningID func(table string, columns []string, placeholders []string) string
}

var Postgres = Dialect{
	Name:        "postgres",
	Placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
	InsertReturningID: func(table string, columns, placeholders []string) string {
		return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING id",
			table, strings.Join(columns, ", "), strings.Join(placeholders, ", "))
	},
}

var MSSQL = Dialect{
	Name:        "sqlserver",
	Placeholder: func(n int) string { return fmt.Sprintf("@p%d", n) },
	InsertReturningID: func(table string, columns, placeholders []string) string {
		return fmt.Sprintf("INSERT INTO %s (%s) OUTPUT INSERTED.id VALUES (%s)",
			table, strings.Join(columns, ", "), strings.Join(placeholders, ", "))
	},
}

func (d Dialect) placeholders(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = d.Placeholder(i + 1)
	}
	return out
}

func (d Dialect) insert(table string, columns []string) string {
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(columns, ", "), strings.Join(d.placeholders(len(columns)), ", "))
}

func (d Dialect) insertReturningID(table string, columns []string) string {
	return d.InsertReturningID(table, columns, d.placeholders(len(columns)))
}

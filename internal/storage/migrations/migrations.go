// Package migrations creates and seeds a sample trading warehouse shaped like
// the tables the warehouse templates read. The connector integration tests
// apply it to throwaway Postgres and ClickHouse containers.
package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"black-heatmap/internal/config"
	"black-heatmap/internal/storage"
)

// Execer is implemented by connectors that can run statements without
// reading a result set.
type Execer interface {
	Exec(ctx context.Context, query string) error
}

// Files returns the embedded files and their directory for a warehouse driver.
func Files(driver string) (fs.FS, string, error) {
	switch driver {
	case config.DriverRedshift:
		return PostgresFS, "postgres", nil
	case config.DriverClickHouse:
		return ClickhouseFS, "clickhouse", nil
	default:
		return nil, "", fmt.Errorf("no migrations for driver %q", driver)
	}
}

// Apply runs every embedded SQL file for driver in lexical order on an open
// session. Statements are executed one at a time.
func Apply(ctx context.Context, c storage.Connector, driver string) error {
	fsys, dir, err := Files(driver)
	if err != nil {
		return err
	}

	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return fmt.Errorf("read embedded %s migrations: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	for _, file := range files {
		data, err := fs.ReadFile(fsys, dir+"/"+file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		if err := validateNoSemicolonInStrings(string(data)); err != nil {
			return fmt.Errorf("validate migration %s: %w", file, err)
		}
		for _, stmt := range splitStatements(string(data)) {
			if err := exec(ctx, c, stmt); err != nil {
				return fmt.Errorf("apply migration %s: %w", file, err)
			}
		}
	}
	return nil
}

func exec(ctx context.Context, c storage.Connector, stmt string) error {
	if e, ok := c.(Execer); ok {
		return e.Exec(ctx, stmt)
	}
	_, err := c.ExecuteQuery(ctx, stmt)
	return err
}

// splitStatements drops comment lines and splits on semicolons. Semicolons
// inside string literals are not supported; see validateNoSemicolonInStrings.
func splitStatements(input string) []string {
	var filtered []string
	for _, line := range strings.Split(input, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		filtered = append(filtered, line)
	}
	joined := strings.Join(filtered, "\n")

	var stmts []string
	for _, part := range strings.Split(joined, ";") {
		stmt := strings.TrimSpace(part)
		if stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}

// validateNoSemicolonInStrings rejects SQL with a semicolon inside a
// single-quoted literal.
func validateNoSemicolonInStrings(sql string) error {
	inString := false
	for i := 0; i < len(sql); i++ {
		ch := sql[i]
		if ch == '\'' {
			if i+1 < len(sql) && sql[i+1] == '\'' {
				i++
				continue
			}
			inString = !inString
		} else if ch == ';' && inString {
			return fmt.Errorf("semicolon inside string literal at offset %d", i)
		}
	}
	return nil
}

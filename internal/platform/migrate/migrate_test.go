package migrate

import (
	"bytes"
	"io/fs"
	"log/slog"
	"strings"
	"testing"

	"collabit/migrations"
)

func TestSplitTableName(t *testing.T) {
	cases := map[string][2]string{
		"login_events":       {"", "login_events"},
		"audit.login_events": {"audit", "login_events"},
	}
	for input, want := range cases {
		schema, table := splitTableName(input)
		if schema != want[0] || table != want[1] {
			t.Fatalf("splitTableName(%q) = %q, %q", input, schema, table)
		}
	}
}

func TestMigrationsCreateRequiredTables(t *testing.T) {
	entries, err := fs.ReadDir(migrations.Files, ".")
	if err != nil {
		t.Fatalf("read migrations: %v", err)
	}

	var all strings.Builder
	for _, entry := range entries {
		data, err := fs.ReadFile(migrations.Files, entry.Name())
		if err != nil {
			t.Fatalf("read %s: %v", entry.Name(), err)
		}
		all.Write(data)
	}

	for _, table := range requiredTables {
		if !strings.Contains(all.String(), "CREATE TABLE IF NOT EXISTS "+table) {
			t.Fatalf("no migration creates %s", table)
		}
	}
}

func TestGooseLoggerWritesThroughSlog(t *testing.T) {
	var buf bytes.Buffer
	logger := gooseSlogLogger{logger: slog.New(slog.NewTextHandler(&buf, nil))}

	logger.Printf("OK   %s\n", "00001_login_events.sql")

	if !strings.Contains(buf.String(), "00001_login_events.sql") || !strings.Contains(buf.String(), "component=goose") {
		t.Fatalf("unexpected log output: %q", buf.String())
	}
}

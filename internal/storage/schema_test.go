package storage

import (
	"strings"
	"testing"
)

func TestLoadSchema(t *testing.T) {
	ddl, err := LoadSchema(PostgresSchemaName)
	if err != nil {
		t.Fatalf("load schema: %v", err)
	}
	for _, table := range []string{"planner_sessions", "planner_turns", "planner_artifacts"} {
		if !strings.Contains(ddl, table) {
			t.Fatalf("schema missing table %s", table)
		}
	}
	if _, err := LoadSchema("schema/missing.sql"); err == nil {
		t.Fatalf("expected error for unknown schema")
	}
}

// Package testutil opens throwaway postgres schemas for integration tests.
package testutil

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"zcoin/internal/config"
	"zcoin/internal/store"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var testSchemaNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// OpenTestStore creates a fresh schema, applies the migration and returns a
// store bound to it. Tests skip when TEST_POSTGRES_DSN is unset.
func OpenTestStore(t *testing.T) *store.Store {
	t.Helper()
	cfg, err := config.LoadTest()
	if err != nil {
		t.Skipf("skip test db: %v", err)
	}
	dsn := cfg.PostgresDSN
	schema := fmt.Sprintf("%s_%d", cfg.SchemaPrefix, time.Now().UnixNano())
	createSchemaSQL, err := schemaDDL("CREATE SCHEMA %s", schema)
	if err != nil {
		t.Fatalf("invalid schema name: %v", err)
	}
	if err := execBase(dsn, createSchemaSQL); err != nil {
		t.Fatalf("create schema: %v", err)
	}

	st, err := store.New(withSearchPath(dsn, schema))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := st.InitSchema(context.Background()); err != nil {
		st.Close()
		t.Fatalf("apply schema: %v", err)
	}

	t.Cleanup(func() {
		st.Close()
		if cfg.KeepSchema {
			t.Logf("kept test schema %s", schema)
			return
		}
		if dropSchemaSQL, ddlErr := schemaDDL("DROP SCHEMA %s CASCADE", schema); ddlErr == nil {
			_ = execBase(dsn, dropSchemaSQL)
		}
	})
	return st
}

func execBase(dsn, sql string) error {
	base, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		return err
	}
	defer base.Close()
	_, err = base.Exec(context.Background(), sql)
	return err
}

func withSearchPath(dsn, schema string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "search_path=" + url.QueryEscape(schema)
}

func schemaDDL(format, schema string) (string, error) {
	if !testSchemaNamePattern.MatchString(schema) {
		return "", fmt.Errorf("schema %q does not match required pattern", schema)
	}
	return fmt.Sprintf(format, pgx.Identifier{schema}.Sanitize()), nil
}

package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/flakex/marketplace-billing/pkg/config"
	"github.com/flakex/marketplace-billing/pkg/logger"
)

func TestRunWithoutDatabase(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "test", Output: &strings.Builder{}})
	cfg := &config.Config{}
	ctx := context.Background()

	if err := run(ctx, cfg, logg, options{cmd: "validate", embedded: true}); err != nil {
		t.Fatalf("embedded billing migrations should validate: %v", err)
	}
	if err := run(ctx, cfg, logg, options{cmd: "validate", dir: filepath.Join("..", "..", "pkg", "migrate", "migrations")}); err != nil {
		t.Fatalf("on-disk billing migrations should validate: %v", err)
	}

	dir := t.TempDir()
	if err := run(ctx, cfg, logg, options{cmd: "create", dir: dir, name: "add payout audit"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) != 1 || !strings.HasSuffix(entries[0].Name(), ".sql") {
		t.Fatalf("expected one sql migration, got %v (%v)", entries, err)
	}

	for name, opts := range map[string]options{
		"create embedded": {cmd: "create", embedded: true, name: "x"},
		"create no name":  {cmd: "create", dir: dir},
		"unknown":         {cmd: "redo"},
		"version no arg":  {cmd: "version", dir: dir},
	} {
		if err := run(ctx, cfg, logg, opts); err == nil {
			t.Fatalf("%s: expected an error before touching the database", name)
		}
	}
}

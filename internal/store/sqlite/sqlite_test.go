package sqlite_test

import (
	"context"
	"testing"

	"github.com/darmiel/lastword/internal/store"
	_ "github.com/darmiel/lastword/internal/store/sqlite"
	"github.com/darmiel/lastword/internal/store/storetest"
)

func TestSQLiteDriver(t *testing.T) {
	d, err := store.Open(context.Background(), &store.DriverConfig{
		Driver:  "sqlite",
		DataDir: t.TempDir(),
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	storetest.Run(t, d)
}

func TestSQLiteDriver_RequiresDataDir(t *testing.T) {
	if _, err := store.New(&store.DriverConfig{Driver: "sqlite"}); err == nil {
		t.Fatal("expected error without data_dir")
	}
}

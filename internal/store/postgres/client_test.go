package postgres

import (
	"strings"
	"testing"
	"time"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

func TestDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  ClientConfig
		want string
	}{
		{
			name: "explicit dsn wins",
			cfg:  ClientConfig{DSN: "postgres://x@y/z", Host: "ignored"},
			want: "postgres://x@y/z",
		},
		{
			name: "defaults",
			cfg:  ClientConfig{User: "arb", Password: "pw", Host: "db", Database: "arbwatch"},
			want: "postgres://arb:pw@db:5432/arbwatch?sslmode=disable",
		},
		{
			name: "ipv6 host and ssl",
			cfg:  ClientConfig{User: "arb", Password: "pw", Host: "::1", Port: 6543, Database: "a", SSLMode: "require"},
			want: "postgres://arb:pw@[::1]:6543/a?sslmode=require",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DSN(tt.cfg); got != tt.want {
				t.Errorf("DSN = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMigrationsAreEmbeddedInOrder(t *testing.T) {
	names, err := migrationNames()
	if err != nil {
		t.Fatalf("migrationNames failed: %v", err)
	}
	if len(names) < 2 {
		t.Fatalf("migrations = %v, want at least 2", names)
	}
	if !strings.HasPrefix(names[0], "001_") {
		t.Errorf("first migration = %q", names[0])
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Errorf("migrations out of order: %v", names)
		}
	}
}

func TestAppendListOpts(t *testing.T) {
	since := time.Unix(100, 0)
	query, args := appendListOpts("SELECT 1 FROM t WHERE symbol = $1", []any{"BTC_USDT"}, "observed_at",
		domain.ListOpts{Since: &since, Limit: 10, Offset: 20})

	want := "SELECT 1 FROM t WHERE symbol = $1 AND observed_at >= $2 ORDER BY observed_at DESC LIMIT $3 OFFSET $4"
	if query != want {
		t.Errorf("query = %q, want %q", query, want)
	}
	if len(args) != 4 || args[2] != 10 || args[3] != 20 {
		t.Errorf("args = %v", args)
	}
}

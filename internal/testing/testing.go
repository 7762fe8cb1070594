// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/moodring/backend/internal/shared"
)

// NewTestDB creates a migrated sqlite database in a temporary directory.
//
// A file-backed database is used so that pooled connections share one store.
func NewTestDB(t *testing.T) *shared.DB {
	t.Helper()

	cfg := shared.DatabaseConfig{
		Driver:       shared.DriverSQLite,
		URL:          filepath.Join(t.TempDir(), "moodring_test.db"),
		MaxOpenConns: 8,
	}
	if err := shared.RunMigrations(cfg); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	db, err := shared.OpenDatabase(context.Background(), cfg)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}

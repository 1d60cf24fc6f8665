package credstore

import (
	"context"
	"errors"
	"os"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := s.Get(ctx, KeyAccessCredential); err != nil || ok {
		t.Fatalf("expected absent key, ok=%v err=%v", ok, err)
	}
	if err := s.Set(ctx, KeyAccessCredential, "a.b.c"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.Set(ctx, KeyAccessCredential, "d.e.f"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	v, ok, err := s.Get(ctx, KeyAccessCredential)
	if err != nil || !ok || v != "d.e.f" {
		t.Fatalf("unexpected get: %q ok=%v err=%v", v, ok, err)
	}
	if err := s.Remove(ctx, KeyAccessCredential); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, ok, _ := s.Get(ctx, KeyAccessCredential); ok {
		t.Fatalf("expected key removed")
	}
	if err := s.Remove(ctx, KeyAccessCredential); err != nil {
		t.Fatalf("removing a missing key should not fail: %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestGetStringAbsent(t *testing.T) {
	v, err := GetString(context.Background(), NewMemory(), KeyRefreshCredential)
	if err != nil || v != "" {
		t.Fatalf("expected empty value, got %q err=%v", v, err)
	}
}

func TestSQLStore(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error creating sqlmock: %v", err)
	}
	defer db.Close()

	s := NewSQL(db, "pgx")
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS credentials")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	if err := s.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}

	mock.ExpectQuery(regexp.QuoteMeta("SELECT value FROM credentials WHERE key = $1")).
		WithArgs(KeyRefreshCredential).
		WillReturnRows(sqlmock.NewRows([]string{"value"}))
	if _, ok, err := s.Get(ctx, KeyRefreshCredential); err != nil || ok {
		t.Fatalf("expected absent key, ok=%v err=%v", ok, err)
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO credentials (key, value, updated_at)")).
		WithArgs(KeyRefreshCredential, "login-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := s.Set(ctx, KeyRefreshCredential, "login-1"); err != nil {
		t.Fatalf("set: %v", err)
	}

	mock.ExpectQuery(regexp.QuoteMeta("SELECT value FROM credentials WHERE key = $1")).
		WithArgs(KeyRefreshCredential).
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow("login-1"))
	v, ok, err := s.Get(ctx, KeyRefreshCredential)
	if err != nil || !ok || v != "login-1" {
		t.Fatalf("unexpected get: %q ok=%v err=%v", v, ok, err)
	}

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM credentials WHERE key = $1")).
		WithArgs(KeyRefreshCredential).
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := s.Remove(ctx, KeyRefreshCredential); err != nil {
		t.Fatalf("remove: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sqlmock expectations: %v", err)
	}
}

func TestSQLStoreWrapsErrors(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error creating sqlmock: %v", err)
	}
	defer db.Close()

	boom := errors.New("connection reset")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT value FROM credentials")).WillReturnError(boom)

	_, _, err = NewSQL(db, "pgx").Get(context.Background(), KeyAccessCredential)
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped driver error, got %v", err)
	}
}

func TestRedisStore(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	client, err := OpenRedis(context.Background(), url)
	if err != nil {
		t.Fatalf("open redis: %v", err)
	}
	defer client.Close()
	exerciseStore(t, NewRedis(client, "credstore-test:"+uuid.NewString()+":"))
}

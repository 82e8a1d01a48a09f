package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
)

func TestGetHit(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewRedisCacheWithClient(db, "sale-service")

	mock.ExpectGet("sale-service:good:Laptop").SetVal(`{"name":"Laptop"}`)

	value, err := c.Get(context.Background(), c.GenerateKey("good", "Laptop"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if value != `{"name":"Laptop"}` {
		t.Errorf("value = %q", value)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestGetMissIsNotAnError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewRedisCacheWithClient(db, "sale-service")

	mock.ExpectGet("sale-service:good:Laptop").RedisNil()

	value, err := c.Get(context.Background(), "sale-service:good:Laptop")
	if err != nil {
		t.Fatalf("Get on miss: %v", err)
	}
	if value != "" {
		t.Errorf("value = %q, want empty", value)
	}
}

func TestGetPropagatesFailure(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewRedisCacheWithClient(db, "sale-service")

	mock.ExpectGet("k").SetErr(errors.New("connection refused"))

	if _, err := c.Get(context.Background(), "k"); err == nil {
		t.Error("expected error, got nil")
	}
}

func TestSet(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewRedisCacheWithClient(db, "sale-service")

	mock.ExpectSet("sale-service:good:Laptop", "v", time.Minute).SetVal("OK")

	if err := c.Set(context.Background(), "sale-service:good:Laptop", "v", time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestGenerateKey(t *testing.T) {
	c := NewRedisCacheWithClient(nil, "inventory-service")
	if got := c.GenerateKey("good", "42"); got != "inventory-service:good:42" {
		t.Errorf("GenerateKey = %q", got)
	}
}

package otp

import (
	"context"
	"testing"
	"time"
)

func TestGenerateCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		code, err := GenerateCode()
		if err != nil {
			t.Fatal(err)
		}
		if len(code) != 6 {
			t.Fatalf("code %q is not six digits", code)
		}
		for _, r := range code {
			if r < '0' || r > '9' {
				t.Fatalf("code %q contains non-digit", code)
			}
		}
		seen[code] = true
	}
	if len(seen) < 2 {
		t.Fatal("codes are not random")
	}
}

func TestMemoryStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	if _, ok, err := store.Get(ctx, "09123456789"); err != nil || ok {
		t.Fatalf("empty store: ok=%v err=%v", ok, err)
	}

	ch := Challenge{Code: "123456", DeviceID: "dev-1", SentAt: time.Now()}
	if err := store.Put(ctx, "09123456789", ch, time.Minute); err != nil {
		t.Fatal(err)
	}

	got, ok, err := store.Get(ctx, "09123456789")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if got.Code != "123456" || got.DeviceID != "dev-1" {
		t.Fatalf("Get = %+v", got)
	}

	if err := store.Delete(ctx, "09123456789"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := store.Get(ctx, "09123456789"); ok {
		t.Fatal("challenge survived delete")
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	ch := Challenge{Code: "654321", DeviceID: "dev-1", SentAt: time.Now()}
	if err := store.Put(ctx, "09120000000", ch, -time.Second); err != nil {
		t.Fatal(err)
	}

	if _, ok, _ := store.Get(ctx, "09120000000"); ok {
		t.Fatal("expired challenge should be absent")
	}
}

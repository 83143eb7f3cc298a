package prefs

import (
	"context"
	"testing"

	"github.com/imgrelay/imgrelay/internal/kv"
)

func TestGetLazyDefaults(t *testing.T) {
	t.Parallel()

	svc := NewService(nil, kv.NewMemoryStore())
	prefs, err := svc.Get(context.Background(), 42)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if prefs.UploadChannel != "telegram" {
		t.Fatalf("unexpected channel: %s", prefs.UploadChannel)
	}
	if len(prefs.Formats) != 2 || prefs.Formats[0] != "html" || prefs.Formats[1] != "markdown" {
		t.Fatalf("unexpected formats: %v", prefs.Formats)
	}
}

func TestSetMergesWithExisting(t *testing.T) {
	t.Parallel()

	svc := NewService(nil, kv.NewMemoryStore())

	if _, err := svc.Set(context.Background(), 42, Update{UploadChannel: "s3"}); err != nil {
		t.Fatalf("set channel: %v", err)
	}
	prefs, err := svc.Set(context.Background(), 42, Update{Formats: []string{"plain"}})
	if err != nil {
		t.Fatalf("set formats: %v", err)
	}
	if prefs.UploadChannel != "s3" {
		t.Fatalf("channel lost on format update: %s", prefs.UploadChannel)
	}
	if len(prefs.Formats) != 1 || prefs.Formats[0] != "plain" {
		t.Fatalf("unexpected formats: %v", prefs.Formats)
	}

	prefs, err = svc.Get(context.Background(), 42)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if prefs.UploadChannel != "s3" || prefs.Formats[0] != "plain" {
		t.Fatalf("persisted preferences differ: %+v", prefs)
	}
}

func TestGetCorruptBlobFallsBack(t *testing.T) {
	t.Parallel()

	store := kv.NewMemoryStore()
	if err := store.Put(context.Background(), storeKey(7), "][ nope"); err != nil {
		t.Fatalf("put: %v", err)
	}
	svc := NewService(nil, store)
	prefs, err := svc.Get(context.Background(), 7)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if prefs.UploadChannel != "telegram" {
		t.Fatalf("corrupt blob must yield defaults: %+v", prefs)
	}
}

func TestPreferencesIsolatedPerChat(t *testing.T) {
	t.Parallel()

	svc := NewService(nil, kv.NewMemoryStore())
	if _, err := svc.Set(context.Background(), 1, Update{UploadChannel: "cfr2"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	prefs, err := svc.Get(context.Background(), 2)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if prefs.UploadChannel != "telegram" {
		t.Fatalf("chat 2 must keep defaults: %+v", prefs)
	}
}

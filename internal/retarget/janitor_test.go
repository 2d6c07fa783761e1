package retarget

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/motionlab/backend/internal/models"
	"github.com/motionlab/backend/internal/storage"
)

type sessionPurgerStub struct{ purged int64 }

func (s *sessionPurgerStub) DeleteExpired(context.Context, time.Time) (int64, error) {
	return s.purged, nil
}

func TestJanitorSweep(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store := storage.NewMemoryStorage("")
	results := newRetargetStoreStub()

	for _, ra := range []models.RetargetedAvatar{
		{ID: "old", StorageKey: "retargeted/p1/old.glb", ExpiresAt: now.Add(-time.Minute)},
		{ID: "new", StorageKey: "retargeted/p1/new.glb", ExpiresAt: now.Add(time.Minute)},
	} {
		if _, err := store.Save(ctx, ra.StorageKey, strings.NewReader("glb")); err != nil {
			t.Fatalf("seed: %v", err)
		}
		_ = results.Create(ctx, ra)
	}

	j := &Janitor{
		Retargeted: results,
		Sessions:   &sessionPurgerStub{purged: 2},
		Storage:    store,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:        func() time.Time { return now },
	}

	res, err := j.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if res.Avatars != 1 || res.Sessions != 2 {
		t.Fatalf("unexpected sweep result %+v", res)
	}
	if keys := store.Keys(); len(keys) != 1 || keys[0] != "retargeted/p1/new.glb" {
		t.Fatalf("unexpected remaining keys %v", keys)
	}
	if _, ok := results.items["new"]; !ok {
		t.Fatalf("expected unexpired avatar kept")
	}
}

func TestJanitorSchedule(t *testing.T) {
	j := &Janitor{Retargeted: newRetargetStoreStub(), Storage: storage.NewMemoryStorage("")}
	c := cron.New()

	if _, err := j.Schedule(c, "@every 1m"); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if len(c.Entries()) != 1 {
		t.Fatalf("expected one cron entry got %d", len(c.Entries()))
	}
	if _, err := j.Schedule(c, "not a spec"); err == nil {
		t.Fatalf("expected invalid spec error")
	}
}

func TestRunnerInvokesProgram(t *testing.T) {
	var got []string
	r := NewRunner("blender", []string{"--background", "--python", "retarget.py"}, time.Second)
	r.Run = func(_ context.Context, binary string, args ...string) ([]byte, error) {
		got = append([]string{binary}, args...)
		out := args[len(args)-1]
		return nil, os.WriteFile(out, []byte("glb"), 0o644)
	}

	out := filepath.Join(t.TempDir(), "out.glb")
	if err := r.Retarget(context.Background(), "in.bvh", "avatar.glb", out); err != nil {
		t.Fatalf("retarget: %v", err)
	}
	want := "blender --background --python retarget.py -- in.bvh avatar.glb " + out
	if strings.Join(got, " ") != want {
		t.Fatalf("unexpected command %q", strings.Join(got, " "))
	}

	r.Run = func(context.Context, string, ...string) ([]byte, error) { return nil, nil }
	if err := r.Retarget(context.Background(), "in.bvh", "avatar.glb", filepath.Join(t.TempDir(), "missing.glb")); err == nil {
		t.Fatalf("expected missing output error")
	}

	if err := (&Runner{}).Retarget(context.Background(), "a", "b", "c"); !errors.Is(err, ErrRetargeterUnavailable) {
		t.Fatalf("expected ErrRetargeterUnavailable got %v", err)
	}
}

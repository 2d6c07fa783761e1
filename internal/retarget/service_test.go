package retarget

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/motionlab/backend/internal/models"
	"github.com/motionlab/backend/internal/repositories"
	"github.com/motionlab/backend/internal/storage"
)

type projectFinderStub map[string]models.Project

func (s projectFinderStub) FindForUser(_ context.Context, id, userID string) (models.Project, error) {
	p, ok := s[id]
	if !ok || p.UserID != userID {
		return models.Project{}, repositories.ErrNotFound
	}
	return p, nil
}

type avatarFinderStub map[string]models.Avatar

func (s avatarFinderStub) FindForUser(_ context.Context, id, userID string) (models.Avatar, error) {
	a, ok := s[id]
	if !ok || a.UserID != userID {
		return models.Avatar{}, repositories.ErrNotFound
	}
	return a, nil
}

type bvhFinderStub map[string]models.BVHFile

func (s bvhFinderStub) FindByFilename(_ context.Context, projectID, filename string) (models.BVHFile, error) {
	f, ok := s[filename]
	if !ok || f.ProjectID != projectID {
		return models.BVHFile{}, repositories.ErrNotFound
	}
	return f, nil
}

type retargetStoreStub struct {
	mu    sync.Mutex
	items map[string]models.RetargetedAvatar
}

func newRetargetStoreStub() *retargetStoreStub {
	return &retargetStoreStub{items: map[string]models.RetargetedAvatar{}}
}

func (s *retargetStoreStub) Create(_ context.Context, ra models.RetargetedAvatar) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[ra.ID] = ra
	return nil
}

func (s *retargetStoreStub) FindByID(_ context.Context, id string) (models.RetargetedAvatar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ra, ok := s.items[id]
	if !ok {
		return models.RetargetedAvatar{}, repositories.ErrNotFound
	}
	return ra, nil
}

func (s *retargetStoreStub) ListByProject(_ context.Context, projectID string) ([]models.RetargetedAvatar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.RetargetedAvatar
	for _, ra := range s.items {
		if ra.ProjectID == projectID {
			out = append(out, ra)
		}
	}
	return out, nil
}

func (s *retargetStoreStub) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(s.items, id)
	return nil
}

func (s *retargetStoreStub) DeleteExpired(_ context.Context, now time.Time) ([]models.RetargetedAvatar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.RetargetedAvatar
	for id, ra := range s.items {
		if !ra.ExpiresAt.After(now) {
			out = append(out, ra)
			delete(s.items, id)
		}
	}
	return out, nil
}

type fakeRetargeter struct {
	err     error
	gotBVH  string
	gotGLB  string
	outPath string
}

func (f *fakeRetargeter) Retarget(_ context.Context, bvhPath, avatarPath, outPath string) error {
	if f.err != nil {
		return f.err
	}
	bvh, _ := os.ReadFile(bvhPath)
	glb, _ := os.ReadFile(avatarPath)
	f.gotBVH, f.gotGLB, f.outPath = string(bvh), string(glb), outPath
	return os.WriteFile(outPath, []byte("retargeted:"+string(glb)), 0o644)
}

type serviceFixture struct {
	svc     *Service
	store   *storage.MemoryStorage
	results *retargetStoreStub
	runner  *fakeRetargeter
	now     time.Time
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	ctx := context.Background()
	store := storage.NewMemoryStorage("https://cdn.example.com")
	if _, err := store.Save(ctx, "bvh/p1/walk.bvh", strings.NewReader("BVH")); err != nil {
		t.Fatalf("seed bvh: %v", err)
	}
	if _, err := store.Save(ctx, "avatars/u1/a1.glb", strings.NewReader("GLB")); err != nil {
		t.Fatalf("seed avatar: %v", err)
	}

	f := &serviceFixture{
		store:   store,
		results: newRetargetStoreStub(),
		runner:  &fakeRetargeter{},
		now:     time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	f.svc = &Service{
		Runner:     f.runner,
		Storage:    store,
		Projects:   projectFinderStub{"p1": {ID: "p1", UserID: "u1"}},
		Avatars:    avatarFinderStub{"a1": {ID: "a1", UserID: "u1", StorageKey: "avatars/u1/a1.glb"}},
		BVHFiles:   bvhFinderStub{"walk.bvh": {ProjectID: "p1", Filename: "walk.bvh", StorageKey: "bvh/p1/walk.bvh"}},
		Retargeted: f.results,
		TTL:        15 * time.Minute,
		Now:        func() time.Time { return f.now },
	}
	return f
}

func TestServiceCreateRetargetsAndStores(t *testing.T) {
	f := newServiceFixture(t)

	ra, err := f.svc.Create(context.Background(), Request{UserID: "u1", ProjectID: "p1", AvatarID: "a1", BVHFilename: "walk.bvh"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if f.runner.gotBVH != "BVH" || f.runner.gotGLB != "GLB" {
		t.Fatalf("runner received wrong inputs: %+v", f.runner)
	}
	if !strings.HasSuffix(ra.Filename, ".glb") || len(ra.Filename) != 26+4 {
		t.Fatalf("expected ulid filename got %q", ra.Filename)
	}
	if ra.StorageKey != "retargeted/p1/"+ra.Filename {
		t.Fatalf("unexpected storage key %q", ra.StorageKey)
	}
	if !ra.ExpiresAt.Equal(f.now.Add(15 * time.Minute)) {
		t.Fatalf("unexpected expiry %v", ra.ExpiresAt)
	}

	rc, err := f.store.Open(context.Background(), ra.StorageKey)
	if err != nil {
		t.Fatalf("open stored output: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "retargeted:GLB" {
		t.Fatalf("unexpected stored output %q", data)
	}
	if _, err := os.Stat(f.runner.outPath); !os.IsNotExist(err) {
		t.Fatalf("expected work dir cleaned up")
	}
}

func TestServiceCreateOwnershipErrors(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	cases := []struct {
		req  Request
		want error
	}{
		{Request{UserID: "u2", ProjectID: "p1", AvatarID: "a1", BVHFilename: "walk.bvh"}, ErrProjectNotFound},
		{Request{UserID: "u1", ProjectID: "p1", AvatarID: "missing", BVHFilename: "walk.bvh"}, ErrAvatarNotFound},
		{Request{UserID: "u1", ProjectID: "p1", AvatarID: "a1", BVHFilename: "run.bvh"}, ErrBVHNotFound},
	}
	for _, tc := range cases {
		if _, err := f.svc.Create(ctx, tc.req); !errors.Is(err, tc.want) {
			t.Fatalf("request %+v: expected %v got %v", tc.req, tc.want, err)
		}
	}

	f.runner.err = errors.New("blender crashed")
	if _, err := f.svc.Create(ctx, Request{UserID: "u1", ProjectID: "p1", AvatarID: "a1", BVHFilename: "walk.bvh"}); err == nil {
		t.Fatalf("expected runner failure")
	}
	if len(f.results.items) != 0 {
		t.Fatalf("expected nothing recorded after failure")
	}
}

func TestServiceListAndDelete(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	ra, err := f.svc.Create(ctx, Request{UserID: "u1", ProjectID: "p1", AvatarID: "a1", BVHFilename: "walk.bvh"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	list, err := f.svc.List(ctx, "u1", "p1")
	if err != nil || len(list) != 1 {
		t.Fatalf("expected one live avatar got %v (%v)", list, err)
	}

	f.now = f.now.Add(20 * time.Minute)
	list, err = f.svc.List(ctx, "u1", "p1")
	if err != nil || len(list) != 0 {
		t.Fatalf("expected expired avatar hidden got %v (%v)", list, err)
	}

	if err := f.svc.Delete(ctx, "u2", ra.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign user got %v", err)
	}
	if err := f.svc.Delete(ctx, "u1", ra.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := f.store.Open(ctx, ra.StorageKey); !errors.Is(err, storage.ErrObjectNotFound) {
		t.Fatalf("expected stored object removed got %v", err)
	}
}

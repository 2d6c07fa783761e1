package avatars

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/motionlab/backend/internal/models"
	"github.com/motionlab/backend/internal/repositories"
	"github.com/motionlab/backend/internal/storage"
)

const glbBody = "glTF\x02\x00\x00\x00binary-payload"

func newGLBServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/avatar.glb":
			_, _ = io.WriteString(w, glbBody)
		case "/big.glb":
			_, _ = io.WriteString(w, "glTF"+strings.Repeat("x", 200))
		case "/text":
			_, _ = io.WriteString(w, "<html>not a model</html>")
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestDownloaderChecks(t *testing.T) {
	server := newGLBServer(t)
	d := NewDownloader([]string{"127.0.0.1"}, 100, 0)
	ctx := context.Background()

	file, size, err := d.Download(ctx, server.URL+"/avatar.glb")
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	defer os.Remove(file.Name())
	defer file.Close()
	data, _ := io.ReadAll(file)
	if string(data) != glbBody || size != int64(len(glbBody)) {
		t.Fatalf("unexpected download %q (%d)", data, size)
	}

	cases := map[string]error{
		server.URL + "/big.glb":                  ErrTooLarge,
		server.URL + "/text":                     ErrNotGLB,
		server.URL + "/missing":                  ErrDownload,
		"ftp://127.0.0.1/a.glb":                  ErrInvalidURL,
		"not a url":                              ErrInvalidURL,
		"https://models.evil.example/avatar.glb": ErrHostNotAllowed,
	}
	for raw, want := range cases {
		if _, _, err := d.Download(ctx, raw); !errors.Is(err, want) {
			t.Fatalf("%s: expected %v got %v", raw, want, err)
		}
	}
}

func TestDownloaderAllowsSubdomains(t *testing.T) {
	d := NewDownloader([]string{"readyplayer.me"}, 0, 0)
	if _, err := d.CheckURL("https://models.readyplayer.me/abc.glb"); err != nil {
		t.Fatalf("expected subdomain allowed got %v", err)
	}
	if _, err := d.CheckURL("https://readyplayer.me.evil.com/abc.glb"); !errors.Is(err, ErrHostNotAllowed) {
		t.Fatalf("expected suffix trick rejected got %v", err)
	}
}

type avatarStoreStub struct {
	mu    sync.Mutex
	items []models.Avatar
}

func (s *avatarStoreStub) Create(_ context.Context, a models.Avatar) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.items {
		if existing.UserID == a.UserID && existing.Name == a.Name {
			return repositories.ErrConflict
		}
	}
	s.items = append(s.items, a)
	return nil
}

func (s *avatarStoreStub) FindForUser(_ context.Context, id, userID string) (models.Avatar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.items {
		if a.ID == id && a.UserID == userID {
			return a, nil
		}
	}
	return models.Avatar{}, repositories.ErrNotFound
}

func (s *avatarStoreStub) ListByUser(_ context.Context, userID string) ([]models.Avatar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Avatar
	for _, a := range s.items {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *avatarStoreStub) Delete(_ context.Context, id, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, a := range s.items {
		if a.ID == id && a.UserID == userID {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return nil
		}
	}
	return repositories.ErrNotFound
}

func TestServiceCreateListDelete(t *testing.T) {
	server := newGLBServer(t)
	store := storage.NewMemoryStorage("")
	svc := &Service{
		Fetcher: NewDownloader([]string{"127.0.0.1"}, 1<<20, 0),
		Storage: store,
		Avatars: &avatarStoreStub{},
	}
	ctx := context.Background()

	empty, err := svc.List(ctx, "u1")
	if err != nil || empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty non-nil list got %v (%v)", empty, err)
	}

	avatar, err := svc.Create(ctx, "u1", "  Hero ", server.URL+"/avatar.glb")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if avatar.Name != "Hero" || avatar.StorageKey != "avatars/u1/"+avatar.ID+".glb" {
		t.Fatalf("unexpected avatar %+v", avatar)
	}

	if _, err := svc.Create(ctx, "u1", "hero", server.URL+"/avatar.glb"); !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("expected ErrDuplicateName got %v", err)
	}
	if _, err := svc.Create(ctx, "u2", "Hero", server.URL+"/avatar.glb"); err != nil {
		t.Fatalf("expected other user to reuse name: %v", err)
	}

	if _, err := svc.Get(ctx, "u2", avatar.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for other user got %v", err)
	}

	if err := svc.Delete(ctx, "u1", avatar.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Open(ctx, avatar.StorageKey); !errors.Is(err, storage.ErrObjectNotFound) {
		t.Fatalf("expected object removed got %v", err)
	}
	if err := svc.Delete(ctx, "u1", avatar.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete got %v", err)
	}
}

func TestServiceCreateDownloadFailureStoresNothing(t *testing.T) {
	server := newGLBServer(t)
	store := storage.NewMemoryStorage("")
	repo := &avatarStoreStub{}
	svc := &Service{Fetcher: NewDownloader(nil, 1<<20, 0), Storage: store, Avatars: repo}

	if _, err := svc.Create(context.Background(), "u1", "Hero", server.URL+"/text"); !errors.Is(err, ErrNotGLB) {
		t.Fatalf("expected ErrNotGLB got %v", err)
	}
	if len(store.Keys()) != 0 || len(repo.items) != 0 {
		t.Fatalf("expected nothing persisted")
	}
}

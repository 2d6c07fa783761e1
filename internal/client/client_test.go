package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/motionlab/backend/internal/models"
	"github.com/motionlab/backend/internal/validate"
)

type failingDoer struct{ err error }

func (f failingDoer) Do(*http.Request) (*http.Response, error) { return nil, f.err }

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(Config{BaseURL: srv.URL, Tokens: StaticToken("access-token")})
	require.NoError(t, err)
	return c
}

func writeEnvelope(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestNewRejectsBadBaseURL(t *testing.T) {
	_, err := New(Config{BaseURL: "ftp://example.com"})
	assert.Error(t, err)

	c, err := New(Config{})
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, c.BaseURL())
}

func TestTransportErrorsBecomeFailedResponses(t *testing.T) {
	c, err := New(Config{BaseURL: "http://motionlab.test", HTTPClient: failingDoer{err: errors.New("connection refused")}})
	require.NoError(t, err)
	ctx := context.Background()

	login := c.Login(ctx, validate.Login{Email: "a@b.co", Password: "secret"})
	assert.False(t, login.Success)
	assert.Contains(t, login.Message, "connection refused")

	projects := c.GetProjects(ctx)
	assert.False(t, projects.Success)
	assert.NotEmpty(t, projects.Message)

	upload := c.UploadVideo(ctx, VideoUpload{Video: strings.NewReader("mp4"), Filename: "clip.mp4", Size: 3}, nil)
	assert.False(t, upload.Success)
	assert.NotEmpty(t, upload.Message)

	stats := c.DashboardStats(ctx)
	assert.False(t, stats.Success)
	assert.Equal(t, 0, stats.Status)
}

func TestCanceledContextReported(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, map[string]any{"success": true})
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	resp := c.Me(ctx)
	assert.False(t, resp.Success)
	assert.Equal(t, "request canceled", resp.Message)
}

func TestNonJSONResponse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, "<html>bad gateway</html>")
	})

	resp := c.GetAvatars(context.Background())
	assert.False(t, resp.Success)
	assert.Equal(t, http.StatusBadGateway, resp.Status)
	assert.Contains(t, resp.Message, "502")
}

func TestErrorEnvelopeKeepsFieldErrors(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusConflict, map[string]any{
			"success": false,
			"message": "Email already in use",
			"errors":  map[string]string{"email": "Email already in use"},
		})
	})

	resp := c.Signup(context.Background(), validate.Signup{Email: "taken@example.com"})
	assert.False(t, resp.Success)
	assert.Equal(t, http.StatusConflict, resp.Status)
	assert.Equal(t, "Email already in use", resp.Errors["email"])
}

func TestStatusTextUsedWhenMessageMissing(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusForbidden, map[string]any{"success": true})
	})

	resp := c.Users(context.Background())
	assert.False(t, resp.Success)
	assert.Equal(t, "Forbidden", resp.Message)
}

func TestLoginSendsCredentialsAndDecodesTokens(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/auth/login", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body validate.Login
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ada@example.com", body.Email)

		writeEnvelope(w, http.StatusOK, map[string]any{
			"success": true,
			"data": map[string]any{
				"user":          map[string]any{"id": "u1", "email": "ada@example.com", "is_admin": true},
				"token":         "jwt",
				"refresh_token": "refresh",
			},
		})
	})

	resp := c.Login(context.Background(), validate.Login{Email: "ada@example.com", Password: "password1"})
	require.True(t, resp.Success)
	assert.Equal(t, "u1", resp.Data.User.ID)
	assert.True(t, resp.Data.User.IsAdmin)
	assert.Equal(t, "jwt", resp.Data.AccessToken)
	assert.Equal(t, "refresh", resp.Data.RefreshToken)
}

func TestAuthenticatedCallsSendBearerAndQuery(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer access-token", r.Header.Get("Authorization"))
		assert.Equal(t, "/project/get-bvh-filenames", r.URL.Path)
		assert.Equal(t, "p 1", r.URL.Query().Get("projectId"))
		writeEnvelope(w, http.StatusOK, map[string]any{
			"success": true,
			"data":    []map[string]any{{"filename": "a.bvh", "url": "/files/bvh/p1/a.bvh", "frames": 10}},
		})
	})

	resp := c.GetBVHFilenames(context.Background(), "p 1")
	require.True(t, resp.Success)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "a.bvh", resp.Data[0].Filename)
	assert.Equal(t, c.BaseURL()+"/files/bvh/p1/a.bvh", c.AssetURL(resp.Data[0].URL))
}

func TestWithTokensDoesNotMutateOriginal(t *testing.T) {
	var seen []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get("Authorization"))
		writeEnvelope(w, http.StatusOK, map[string]any{"success": true})
	})

	c.WithTokens(StaticToken("other")).Me(context.Background())
	c.Me(context.Background())
	assert.Equal(t, []string{"Bearer other", "Bearer access-token"}, seen)
}

func TestAdminCalls(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/admin/users/u1":
			var update models.UserUpdate
			if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&update)) || !assert.NotNil(t, update.IsAdmin) {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			writeEnvelope(w, http.StatusOK, map[string]any{"success": true, "data": map[string]any{"id": "u1", "is_admin": *update.IsAdmin}})
		case r.URL.Path == "/admin/logs":
			q := r.URL.Query()
			assert.Equal(t, "auth", q.Get("logType"))
			assert.Equal(t, "error", q.Get("logLevel"))
			assert.Equal(t, "20", q.Get("limit"))
			writeEnvelope(w, http.StatusOK, map[string]any{"success": true, "data": []map[string]any{{"id": 1, "message": "boom"}}})
		case r.URL.Path == "/admin/system-metrics":
			assert.Equal(t, "week", r.URL.Query().Get("timeRange"))
			writeEnvelope(w, http.StatusOK, map[string]any{"success": true, "data": map[string]any{"timeRange": "week", "labels": []string{"Mon"}}})
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})
	ctx := context.Background()

	admin := true
	user := c.UpdateUser(ctx, "u1", models.UserUpdate{IsAdmin: &admin})
	require.True(t, user.Success)
	assert.True(t, user.Data.IsAdmin)

	logs := c.Logs(ctx, LogFilter{Type: "auth", Level: "error", Limit: 20})
	require.True(t, logs.Success)
	assert.Equal(t, "boom", logs.Data[0].Message)

	metrics := c.SystemMetrics(ctx, "week")
	require.True(t, metrics.Success)
	assert.Equal(t, []string{"Mon"}, metrics.Data.Labels)
}

func TestUploadVideoStreamsMultipart(t *testing.T) {
	video := strings.Repeat("x", 64<<10)

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/pose/process-video", r.URL.Path)
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		assert.Equal(t, "walk", r.FormValue("projectName"))
		assert.Equal(t, "u1", r.FormValue("userId"))
		assert.Equal(t, "0.5", r.FormValue("xSensitivity"))
		assert.Equal(t, "0.25", r.FormValue("ySensitivity"))
		assert.Equal(t, "true", r.FormValue("stationary"))

		file, header, err := r.FormFile("video")
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		assert.Equal(t, "clip.mp4", header.Filename)
		assert.Len(t, data, len(video))

		writeEnvelope(w, http.StatusOK, map[string]any{
			"success": true,
			"data":    map[string]any{"projectId": "42", "bvh_filenames": []string{"a.bvh"}},
		})
	})

	var mu sync.Mutex
	var reported []int
	resp := c.UploadVideo(context.Background(), VideoUpload{
		Video:        strings.NewReader(video),
		Filename:     "/home/ada/clip.mp4",
		Size:         int64(len(video)),
		ProjectName:  "walk",
		UserID:       "u1",
		XSensitivity: 0.5,
		YSensitivity: 0.25,
		Stationary:   true,
		OutputFormat: "bvh",
	}, func(p int) {
		mu.Lock()
		reported = append(reported, p)
		mu.Unlock()
	})

	require.True(t, resp.Success, resp.Message)
	assert.Equal(t, "42", resp.Data.ProjectID)
	assert.Equal(t, []string{"a.bvh"}, resp.Data.BVHFilenames)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, reported)
	assert.Equal(t, 100, reported[len(reported)-1])
	for i := 1; i < len(reported); i++ {
		assert.Greater(t, reported[i], reported[i-1])
	}
}

func TestUploadVideoRequiresVideo(t *testing.T) {
	c, err := New(Config{BaseURL: "http://motionlab.test", HTTPClient: failingDoer{err: errors.New("unused")}})
	require.NoError(t, err)

	resp := c.UploadVideo(context.Background(), VideoUpload{}, nil)
	assert.False(t, resp.Success)
	assert.Equal(t, "video is required", resp.Message)
}

func TestAssetURL(t *testing.T) {
	c, err := New(Config{BaseURL: "https://api.motionlab.test/v1/"})
	require.NoError(t, err)

	assert.Equal(t, "https://api.motionlab.test/v1/files/a.glb", c.AssetURL("/files/a.glb"))
	assert.Equal(t, "https://api.motionlab.test/v1/files/a.glb?x=1", c.AssetURL("files/a.glb?x=1"))
	assert.Equal(t, "https://bucket.s3.test/a.glb?sig=1", c.AssetURL("https://bucket.s3.test/a.glb?sig=1"))
	assert.Equal(t, "", c.AssetURL(""))
}

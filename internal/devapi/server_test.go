package devapi_test

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"blog-client/internal/api"
	"blog-client/internal/devapi"
	"blog-client/internal/post"
	"blog-client/internal/session"
	"blog-client/internal/testutil"
	"blog-client/internal/tokenstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type harness struct {
	baseURL string
	manager *session.Manager
	posts   *post.Store
}

func newHarness(t *testing.T, opts devapi.Options) *harness {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	opts.HashCost = bcrypt.MinCost
	srv, err := devapi.New(ctx, opts)
	require.NoError(t, err)
	server := testutil.NewServer(t, srv.Handler)

	client := api.NewClient(server.URL + devapi.BasePath)
	manager := session.NewManager(client, tokenstore.NewMemoryStore())
	manager.Init(ctx)

	return &harness{
		baseURL: server.URL,
		manager: manager,
		posts:   post.NewStore(client, manager),
	}
}

func TestEndToEnd_RegisterPostLifecycle(t *testing.T) {
	h := newHarness(t, devapi.Options{})
	ctx := context.Background()

	categories := h.posts.FetchCategories(ctx)
	require.True(t, categories.Success, categories.Error)
	assert.NotEmpty(t, categories.Data)

	reg := h.manager.Register(ctx, "alice@example.com", "alice", "password123")
	require.True(t, reg.Success, reg.Error)
	require.NotNil(t, reg.Data)
	assert.Equal(t, "alice", reg.Data.Username)
	assert.True(t, h.manager.IsAuthenticated())

	dup := h.manager.Register(ctx, "alice@example.com", "alice", "password123")
	assert.False(t, dup.Success)
	assert.Equal(t, "A user with that username already exists.", dup.Error)

	created := h.posts.CreatePost(ctx, api.NewForm().
		Set("title", "Hello World").
		Set("description", "first").
		Set("category", "1").
		AddFile("image", "cover.png", strings.NewReader("\x89PNG\r\n\x1a\n")))
	require.True(t, created.Success, created.Error)
	assert.Equal(t, "hello-world", created.Data.Slug)
	require.Len(t, h.posts.Posts(), 1)

	list := h.posts.FetchPosts(ctx)
	require.True(t, list.Success, list.Error)
	require.Len(t, list.Data, 1)

	detail := h.posts.FetchPostByID(ctx, "hello-world")
	require.True(t, detail.Success, detail.Error)
	assert.Equal(t, 1, detail.Data.Views)

	image, err := http.Get(h.baseURL + *detail.Data.Image)
	require.NoError(t, err)
	image.Body.Close()
	assert.Equal(t, http.StatusOK, image.StatusCode)

	updated := h.posts.UpdatePost(ctx, "hello-world", api.NewForm().Set("title", "Hello again"))
	require.True(t, updated.Success, updated.Error)
	assert.Equal(t, "Hello again", h.posts.Posts()[0].Title)

	missing := h.posts.FetchPostByID(ctx, "nope")
	assert.False(t, missing.Success)
	assert.Equal(t, "Not found.", missing.Error)

	deleted := h.posts.DeletePost(ctx, "hello-world")
	require.True(t, deleted.Success, deleted.Error)
	assert.Empty(t, h.posts.Posts())

	h.manager.Logout()
	assert.False(t, h.manager.IsAuthenticated())
	assert.False(t, h.posts.FetchPosts(ctx).Success)
}

func TestEndToEnd_ExpiredAccessTokenIsRefreshed(t *testing.T) {
	h := newHarness(t, devapi.Options{AccessTTL: 200 * time.Millisecond, RefreshTTL: time.Hour})
	ctx := context.Background()

	login := h.manager.Register(ctx, "bob@example.com", "bob", "password123")
	require.True(t, login.Success, login.Error)
	before := h.manager.AccessToken()

	time.Sleep(300 * time.Millisecond)

	list := h.posts.FetchPosts(ctx)
	require.True(t, list.Success, list.Error)
	assert.NotEqual(t, before, h.manager.AccessToken())
	assert.True(t, h.manager.IsAuthenticated())
}

func TestEndToEnd_ProfileAndPasswordReset(t *testing.T) {
	h := newHarness(t, devapi.Options{})
	ctx := context.Background()

	require.True(t, h.manager.Register(ctx, "carol@example.com", "carol", "password123").Success)

	profile := h.manager.UpdateProfile(ctx, api.NewForm().Set("first_name", "Carol").Set("bio", "hi"))
	require.True(t, profile.Success, profile.Error)
	assert.Equal(t, "Carol", h.manager.User().DisplayName())

	bad := h.manager.RequestPasswordReset(ctx, "ghost@example.com")
	assert.False(t, bad.Success)

	sent := h.manager.RequestPasswordReset(ctx, "carol@example.com")
	require.True(t, sent.Success, sent.Error)
	assert.NotEmpty(t, sent.Message)

	invalid := h.manager.ConfirmPasswordReset(ctx, "bogus", "newpassword1", "newpassword1")
	assert.False(t, invalid.Success)
	assert.Equal(t, "Invalid or expired token", invalid.Error)
}

func TestServer_Validation(t *testing.T) {
	h := newHarness(t, devapi.Options{OpenAPISpec: "../../artifacts/openapi.yaml"})

	resp, err := http.Post(h.baseURL+devapi.BasePath+"/token/", "application/json", strings.NewReader(`{"username":"x"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(h.baseURL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_InvalidSpec(t *testing.T) {
	_, err := devapi.New(context.Background(), devapi.Options{OpenAPISpec: "does-not-exist.yaml"})
	assert.Error(t, err)
}

func TestServer_RateLimit(t *testing.T) {
	h := newHarness(t, devapi.Options{RateLimit: 1, RateBurst: 2})

	var throttled bool
	for i := 0; i < 5; i++ {
		resp, err := http.Get(h.baseURL + devapi.BasePath + "/categories/")
		require.NoError(t, err)
		resp.Body.Close()
		if resp.StatusCode == http.StatusTooManyRequests {
			throttled = true
			assert.NotEmpty(t, resp.Header.Get("Retry-After"))
			break
		}
	}
	assert.True(t, throttled, "expected a 429 after the burst")
}

func TestServer_MetricsAndNotFound(t *testing.T) {
	h := newHarness(t, devapi.Options{})

	resp, err := http.Get(h.baseURL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(h.baseURL + "/nowhere")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

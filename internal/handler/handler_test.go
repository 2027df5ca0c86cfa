package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"blog-client/internal/middleware"
	"blog-client/internal/repository/memory"
	"blog-client/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type testAPI struct {
	router http.Handler
	auth   *service.AuthService
	blog   *service.BlogService
	media  *MediaStore
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	auth := service.NewAuthService(memory.NewAccountRepository(), service.AuthConfig{HashCost: bcrypt.MinCost})
	blog := service.NewBlogService(memory.NewPostRepository(), memory.NewCategoryRepository(memory.DefaultCategories))
	media := NewMediaStore("/media")

	authHandler := NewAuthHandler(auth, media)
	postHandler := NewPostHandler(blog, auth, media)

	r := chi.NewRouter()
	r.Handle("/media/*", media)
	r.Post("/token/", authHandler.ObtainToken)
	r.Post("/token/refresh/", authHandler.RefreshToken)
	r.Post("/register/", authHandler.Register)
	r.Post("/password-reset-request/", authHandler.RequestPasswordReset)
	r.Post("/password-reset-confirm/", authHandler.ConfirmPasswordReset)
	r.Get("/categories/", postHandler.Categories)
	r.Group(func(r chi.Router) {
		r.Use(middleware.BearerAuth(auth))
		r.Get("/profile/", authHandler.Profile)
		r.Put("/profile/", authHandler.UpdateProfile)
		r.Get("/post-list/", postHandler.List)
		r.Get("/post-detail/{slug}/", postHandler.Detail)
		r.Post("/post-create/", postHandler.Create)
		r.Put("/post-update/{slug}/", postHandler.Update)
		r.Delete("/post-delete/{slug}/", postHandler.Delete)
	})

	return &testAPI{router: r, auth: auth, blog: blog, media: media}
}

// login registers username and returns an access token for it
func (a *testAPI) login(t *testing.T, username string) string {
	t.Helper()
	ctx := context.Background()
	_, err := a.auth.Register(ctx, username, username+"@example.com", "password123")
	require.NoError(t, err)
	pair, err := a.auth.Login(ctx, username, "password123")
	require.NoError(t, err)
	return pair.Access
}

func (a *testAPI) do(req *http.Request, token string) *httptest.ResponseRecorder {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *testAPI) postJSON(path string, body any, token string) *httptest.ResponseRecorder {
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return a.do(req, token)
}

type upload struct {
	field, filename string
	content         []byte
}

func multipartRequest(t *testing.T, method, path string, fields map[string]string, files ...upload) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for _, f := range files {
		part, err := mw.CreateFormFile(f.field, f.filename)
		require.NoError(t, err)
		_, err = io.Copy(part, bytes.NewReader(f.content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func body(w *httptest.ResponseRecorder) string {
	return strings.TrimSpace(w.Body.String())
}

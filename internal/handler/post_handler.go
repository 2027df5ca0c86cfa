package handler

import (
	"net/http"
	"net/url"
	"strconv"

	"blog-client/internal/domain"
	"blog-client/internal/middleware"
	"blog-client/internal/service"

	"github.com/go-chi/chi/v5"
)

// PostHandler serves posts and categories
type PostHandler struct {
	blog     *service.BlogService
	accounts *service.AuthService
	media    *MediaStore
	pageSize int
}

func NewPostHandler(blog *service.BlogService, accounts *service.AuthService, media *MediaStore) *PostHandler {
	return &PostHandler{
		blog:     blog,
		accounts: accounts,
		media:    media,
		pageSize: service.DefaultPageSize,
	}
}

// List returns one page of posts, newest first
func (h *PostHandler) List(w http.ResponseWriter, r *http.Request) {
	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeDetail(w, http.StatusNotFound, "Invalid page.")
			return
		}
		page = n
	}

	posts, total, err := h.blog.ListPosts(r.Context(), page, h.pageSize)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if page > 1 && len(posts) == 0 {
		writeDetail(w, http.StatusNotFound, "Invalid page.")
		return
	}

	resp := domain.PostList{Count: total, Results: posts}
	if page*h.pageSize < total {
		resp.Next = pageURL(r, page+1)
	}
	if page > 1 {
		resp.Previous = pageURL(r, page-1)
	}
	writeJSON(w, http.StatusOK, resp)
}

func pageURL(r *http.Request, page int) *string {
	u := url.URL{Scheme: "http", Host: r.Host, Path: r.URL.Path}
	if r.TLS != nil {
		u.Scheme = "https"
	}
	q := r.URL.Query()
	if page == 1 {
		q.Del("page")
	} else {
		q.Set("page", strconv.Itoa(page))
	}
	u.RawQuery = q.Encode()
	s := u.String()
	return &s
}

// Detail returns a single post and counts the view
func (h *PostHandler) Detail(w http.ResponseWriter, r *http.Request) {
	post, err := h.blog.GetPost(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// Create stores a post authored by the caller from a multipart form
func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	if !parseMultipart(w, r) {
		return
	}
	username, _ := middleware.GetUsername(r.Context())
	author, err := h.accounts.Account(r.Context(), username)
	if err != nil {
		writeError(w, r, err)
		return
	}

	in := service.NewPost{}
	if v, ok := formValue(r, "title"); ok {
		in.Title = *v
	}
	if v, ok := formValue(r, "description"); ok {
		in.Description = *v
	}
	if v, ok := formValue(r, "category"); ok && *v != "" {
		id, err := strconv.Atoi(*v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, service.Fields("category", "Incorrect type. Expected pk value, received str."))
			return
		}
		in.CategoryID = id
	}
	if image, ok, err := h.media.SaveUpload(r, "image", "post_images"); err != nil {
		writeError(w, r, err)
		return
	} else if ok {
		in.Image = &image
	}

	post, err := h.blog.CreatePost(r.Context(), author, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

// Update applies a partial multipart update to the caller's own post
func (h *PostHandler) Update(w http.ResponseWriter, r *http.Request) {
	if !parseMultipart(w, r) {
		return
	}
	username, _ := middleware.GetUsername(r.Context())

	var u service.PostUpdate
	u.Title, _ = formValue(r, "title")
	u.Description, _ = formValue(r, "description")
	if v, ok := formValue(r, "category"); ok && *v != "" {
		id, err := strconv.Atoi(*v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, service.Fields("category", "Incorrect type. Expected pk value, received str."))
			return
		}
		u.CategoryID = &id
	}
	if image, ok, err := h.media.SaveUpload(r, "image", "post_images"); err != nil {
		writeError(w, r, err)
		return
	} else if ok {
		u.Image = &image
	}

	post, err := h.blog.UpdatePost(r.Context(), username, chi.URLParam(r, "slug"), u)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// Delete removes the caller's own post
func (h *PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	username, _ := middleware.GetUsername(r.Context())

	if err := h.blog.DeletePost(r.Context(), username, chi.URLParam(r, "slug")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Categories lists all categories; no authentication required
func (h *PostHandler) Categories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.blog.Categories(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

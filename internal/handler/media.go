package handler

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"strings"
	"sync"

	"github.com/google/uuid"
)

type mediaFile struct {
	contentType string
	data        []byte
}

// MediaStore keeps uploaded images in memory and serves them under Prefix
type MediaStore struct {
	Prefix string

	mu    sync.RWMutex
	files map[string]mediaFile
}

func NewMediaStore(prefix string) *MediaStore {
	return &MediaStore{
		Prefix: strings.TrimSuffix(prefix, "/") + "/",
		files:  make(map[string]mediaFile),
	}
}

// SaveUpload stores the uploaded file for field, if any, and returns its URL
// path. ok is false when the request carried no such file.
func (m *MediaStore) SaveUpload(r *http.Request, field, dir string) (url string, ok bool, err error) {
	if r.MultipartForm == nil || len(r.MultipartForm.File[field]) == 0 {
		return "", false, nil
	}
	header := r.MultipartForm.File[field][0]
	url, err = m.save(header, dir)
	if err != nil {
		return "", false, err
	}
	return url, true, nil
}

func (m *MediaStore) save(header *multipart.FileHeader, dir string) (string, error) {
	f, err := header.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open upload %s: %w", header.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return "", fmt.Errorf("failed to read upload %s: %w", header.Filename, err)
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}

	name := dir + "/" + uuid.NewString() + strings.ToLower(path.Ext(header.Filename))

	m.mu.Lock()
	m.files[name] = mediaFile{contentType: contentType, data: data}
	m.mu.Unlock()

	return m.Prefix + name, nil
}

func (m *MediaStore) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, m.Prefix)

	m.mu.RLock()
	f, ok := m.files[name]
	m.mu.RUnlock()

	if !ok {
		writeDetail(w, http.StatusNotFound, "Not found.")
		return
	}
	w.Header().Set("Content-Type", f.contentType)
	_, _ = w.Write(f.data)
}

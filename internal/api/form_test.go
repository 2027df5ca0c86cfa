package api

import (
	"bytes"
	"io"
	"mime"
	"mime/multipart"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForm_Encode(t *testing.T) {
	form := NewForm().
		Set("title", "Hello").
		Set("description", "").
		SetIf("category", "").
		SetIf("bio", "gopher").
		AddFile("image", "cover.png", strings.NewReader("PNGDATA"))

	body, contentType, err := form.Encode()
	require.NoError(t, err)

	mediaType, params, err := mime.ParseMediaType(contentType)
	require.NoError(t, err)
	assert.Equal(t, "multipart/form-data", mediaType)

	reader := multipart.NewReader(bytes.NewReader(body), params["boundary"])

	type part struct {
		name, filename, content string
	}
	var parts []part
	for {
		p, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		data, err := io.ReadAll(p)
		require.NoError(t, err)
		parts = append(parts, part{p.FormName(), p.FileName(), string(data)})
	}

	assert.Equal(t, []part{
		{"title", "", "Hello"},
		{"description", "", ""},
		{"bio", "", "gopher"},
		{"image", "cover.png", "PNGDATA"},
	}, parts)
}

func TestForm_Value(t *testing.T) {
	form := NewForm().Set("title", "first").Set("title", "second")

	v, ok := form.Value("title")
	assert.True(t, ok)
	assert.Equal(t, "first", v)

	_, ok = form.Value("missing")
	assert.False(t, ok)
}

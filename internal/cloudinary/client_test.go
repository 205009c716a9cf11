package cloudinary

import (
	"context"
	"crypto/sha1"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSign(t *testing.T) {
	c := New("demo", "key", "secret", "")
	got := c.sign(map[string]string{"timestamp": "1700000000", "public_id": "user-1", "api_key": "key", "file": "x"})
	want := fmt.Sprintf("%x", sha1.Sum([]byte("public_id=user-1&timestamp=1700000000secret")))
	assert.Equal(t, want, got)
}

func TestUploadAvatar(t *testing.T) {
	var form map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/demo/image/upload", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		form = r.MultipartForm.Value
		_, header, err := r.FormFile("file")
		require.NoError(t, err)
		assert.Equal(t, "me.png", header.Filename)
		fmt.Fprint(w, `{"public_id":"avatars/user-3","secure_url":"https://res.cloudinary.com/demo/avatars/user-3.png","width":64,"height":64}`)
	}))
	defer srv.Close()

	c := New("demo", "key", "secret", "avatars")
	c.APIBase = srv.URL
	c.now = func() time.Time { return time.Unix(1700000000, 0) }

	res, err := c.UploadAvatar(context.Background(), 3, []byte("\x89PNG"), "me.png")
	require.NoError(t, err)
	assert.Equal(t, "https://res.cloudinary.com/demo/avatars/user-3.png", res.SecureURL)
	assert.Equal(t, []string{"user-3"}, form["public_id"])
	assert.Equal(t, []string{"avatars"}, form["folder"])
	assert.Equal(t, []string{"1700000000"}, form["timestamp"])
	assert.NotEmpty(t, form["signature"])
}

func TestUploadFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"Invalid Signature"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New("demo", "key", "wrong", "")
	c.APIBase = srv.URL
	_, err := c.UploadDataURL(context.Background(), 1, "data:image/png;base64,AAAA")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

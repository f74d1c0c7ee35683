package segmind

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateVideo(t *testing.T) {
	mp4 := []byte("\x00\x00\x00\x18ftypmp42")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "seg-key", r.Header.Get("x-api-key"))

		var req videoRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "a drone shot of a coastline", req.Prompt)
		assert.Equal(t, "16:9", req.Dimension)

		w.Header().Set("Content-Type", "video/mp4")
		w.Write(mp4)
	}))
	defer srv.Close()

	client := NewClient(Options{BaseURL: srv.URL, APIKey: "seg-key"})
	stream, err := client.GenerateVideo(context.Background(), "a drone shot of a coastline", "16:9")
	require.NoError(t, err)
	defer stream.Close()

	data, err := io.ReadAll(stream)
	require.NoError(t, err)
	assert.Equal(t, mp4, data)
}

func TestGenerateVideo_MissingAPIKey(t *testing.T) {
	client := NewClient(Options{BaseURL: "http://localhost:1"})
	_, err := client.GenerateVideo(context.Background(), "anything", "")
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestGenerateVideo_VendorError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"prompt too long"}`))
	}))
	defer srv.Close()

	client := NewClient(Options{BaseURL: srv.URL, APIKey: "seg-key"})
	_, err := client.GenerateVideo(context.Background(), "anything", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prompt too long")
}

package generation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptforge-ai/promptforge/internal/auth"
	"github.com/promptforge-ai/promptforge/internal/config"
	"github.com/promptforge-ai/promptforge/internal/gate"
	"github.com/promptforge-ai/promptforge/internal/usage"
	"github.com/promptforge-ai/promptforge/internal/vendors/groq"
	"github.com/promptforge-ai/promptforge/internal/vendors/huggingface"
	"github.com/promptforge-ai/promptforge/internal/vendors/segmind"
)

type fakeUsageStore struct {
	mu     sync.Mutex
	counts map[uuid.UUID]int
}

func newFakeUsageStore() *fakeUsageStore {
	return &fakeUsageStore{counts: map[uuid.UUID]int{}}
}

func (f *fakeUsageStore) GetCount(_ context.Context, userID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[userID], nil
}

func (f *fakeUsageStore) Get(_ context.Context, userID uuid.UUID) (*usage.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count, ok := f.counts[userID]
	if !ok {
		return nil, nil
	}
	return &usage.Record{UserID: userID, Count: count}, nil
}

func (f *fakeUsageStore) Increment(_ context.Context, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[userID]++
	return nil
}

func (f *fakeUsageStore) ResetIfStale(context.Context, uuid.UUID, time.Time) (bool, error) {
	return false, nil
}

type fakeSubs struct {
	active map[uuid.UUID]bool
}

func (f *fakeSubs) IsActive(_ context.Context, userID uuid.UUID) bool {
	return f.active[userID]
}

// testEnv wires the full pipeline against stub vendor servers so tests can
// observe whether a request reached a vendor and what the counter ended at.
type testEnv struct {
	handler    *Handler
	store      *fakeUsageStore
	subs       *fakeSubs
	vendorHits *atomic.Int64
	vendorFail *atomic.Bool
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	hits := &atomic.Int64{}
	fail := &atomic.Bool{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		switch {
		case strings.HasPrefix(r.URL.Path, "/chat"):
			json.NewEncoder(w).Encode(map[string]any{
				"choices": []map[string]any{
					{"message": map[string]string{"role": "assistant", "content": "```py\nprint(1)\n```"}},
				},
			})
		case strings.HasPrefix(r.URL.Path, "/models"):
			w.Write([]byte{0x89, 'P', 'N', 'G'})
		default:
			w.Header().Set("Content-Type", "video/mp4")
			w.Write([]byte("mp4-bytes"))
		}
	}))
	t.Cleanup(srv.Close)

	store := newFakeUsageStore()
	subs := &fakeSubs{active: map[uuid.UUID]bool{}}
	gateSvc := gate.NewService(store, subs, config.GateConfig{
		FreeLimit:   5,
		UsagePeriod: 720 * time.Hour,
	})

	v := validator.New()
	code := NewCodeGenerator(groq.NewClient(groq.Options{BaseURL: srv.URL, APIKey: "k"}), v)
	image := NewImageGenerator(huggingface.NewClient(huggingface.Options{BaseURL: srv.URL, APIKey: "k"}), v)
	video := NewVideoGenerator(segmind.NewClient(segmind.Options{BaseURL: srv.URL + "/video", APIKey: "k"}), v)

	return &testEnv{
		handler:    NewHandler(gateSvc, nil, code, image, video),
		store:      store,
		subs:       subs,
		vendorHits: hits,
		vendorFail: fail,
	}
}

func authedRequest(t *testing.T, userID uuid.UUID, path, body string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	ctx := context.WithValue(req.Context(), auth.UserClaimsKey, &auth.Claims{
		UserID: userID.String(),
		Email:  "dev@example.com",
	})
	return req.WithContext(ctx)
}

const codeBody = `{"messages":[{"role":"user","content":"print 1 in python"}]}`

func TestGenerate_Unauthenticated(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/generate/code", strings.NewReader(codeBody))
	rec := httptest.NewRecorder()
	env.handler.Code(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, env.vendorHits.Load(), "unauthenticated requests must not reach a vendor")
}

func TestGenerate_InvalidUserID(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/generate/code", strings.NewReader(codeBody))
	ctx := context.WithValue(req.Context(), auth.UserClaimsKey, &auth.Claims{UserID: "not-a-uuid"})
	rec := httptest.NewRecorder()
	env.handler.Code(rec, req.WithContext(ctx))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, env.vendorHits.Load())
}

func TestGenerate_MissingPrompt(t *testing.T) {
	env := newTestEnv(t)
	userID := uuid.New()

	rec := httptest.NewRecorder()
	env.handler.Image(rec, authedRequest(t, userID, "/api/v1/generate/image", `{"amount":1}`))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, env.vendorHits.Load(), "invalid requests must not reach a vendor")
	assert.Zero(t, env.store.counts[userID], "invalid requests must not consume quota")
}

func TestGenerate_MalformedBody(t *testing.T) {
	env := newTestEnv(t)

	rec := httptest.NewRecorder()
	env.handler.Code(rec, authedRequest(t, uuid.New(), "/api/v1/generate/code", `{"messages": [`))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, env.vendorHits.Load())
}

func TestGenerate_CodeSuccess(t *testing.T) {
	env := newTestEnv(t)
	userID := uuid.New()

	rec := httptest.NewRecorder()
	env.handler.Code(rec, authedRequest(t, userID, "/api/v1/generate/code", codeBody))

	require.Equal(t, http.StatusOK, rec.Code)
	var reply Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reply))
	assert.Equal(t, "assistant", reply.Role)
	assert.Contains(t, reply.Content, "print(1)")
	assert.Equal(t, 1, env.store.counts[userID], "success consumes one unit of quota")
}

func TestGenerate_TrialExhaustion(t *testing.T) {
	env := newTestEnv(t)
	userID := uuid.New()

	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		env.handler.Code(rec, authedRequest(t, userID, "/api/v1/generate/code", codeBody))
		require.Equal(t, http.StatusOK, rec.Code, "generation %d should succeed", i+1)
	}
	require.Equal(t, int64(5), env.vendorHits.Load())

	rec := httptest.NewRecorder()
	env.handler.Code(rec, authedRequest(t, userID, "/api/v1/generate/code", codeBody))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "Free trial has expired. Please upgrade to pro.")
	assert.Equal(t, int64(5), env.vendorHits.Load(), "denied requests must not reach a vendor")
	assert.Equal(t, 5, env.store.counts[userID])
}

func TestGenerate_ProUserUnmetered(t *testing.T) {
	env := newTestEnv(t)
	userID := uuid.New()
	env.subs.active[userID] = true
	env.store.counts[userID] = 5

	rec := httptest.NewRecorder()
	env.handler.Code(rec, authedRequest(t, userID, "/api/v1/generate/code", codeBody))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, env.store.counts[userID], "subscribers never consume quota")
}

func TestGenerate_VendorFailureNoIncrement(t *testing.T) {
	env := newTestEnv(t)
	env.vendorFail.Store(true)
	userID := uuid.New()

	rec := httptest.NewRecorder()
	env.handler.Code(rec, authedRequest(t, userID, "/api/v1/generate/code", codeBody))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal server error")
	assert.Zero(t, env.store.counts[userID], "failed generations must not consume quota")
}

func TestGenerate_MissingAPIKey(t *testing.T) {
	env := newTestEnv(t)
	env.handler.code = NewCodeGenerator(groq.NewClient(groq.Options{BaseURL: "http://localhost:1"}), validator.New())
	userID := uuid.New()

	rec := httptest.NewRecorder()
	env.handler.Code(rec, authedRequest(t, userID, "/api/v1/generate/code", codeBody))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal server error")
	assert.NotContains(t, rec.Body.String(), "key", "credential detail must not leak")
	assert.Zero(t, env.store.counts[userID])
}

func TestGenerate_ImageAmount(t *testing.T) {
	env := newTestEnv(t)
	userID := uuid.New()

	rec := httptest.NewRecorder()
	env.handler.Image(rec, authedRequest(t, userID, "/api/v1/generate/image",
		`{"prompt":"a horse in space","amount":3}`))

	require.Equal(t, http.StatusOK, rec.Code)
	var images []ImageResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &images))
	require.Len(t, images, 3)
	for _, img := range images {
		assert.True(t, strings.HasPrefix(img.Image, "data:image/png;base64,"))
	}
	assert.Equal(t, int64(3), env.vendorHits.Load(), "one vendor call per requested image")
	assert.Equal(t, 1, env.store.counts[userID], "a batch consumes a single unit of quota")
}

func TestGenerate_ImageAmountOutOfRange(t *testing.T) {
	env := newTestEnv(t)

	rec := httptest.NewRecorder()
	env.handler.Image(rec, authedRequest(t, uuid.New(), "/api/v1/generate/image",
		`{"prompt":"a horse","amount":20}`))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, env.vendorHits.Load())
}

func TestGenerate_VideoStreamsMP4(t *testing.T) {
	env := newTestEnv(t)
	userID := uuid.New()

	rec := httptest.NewRecorder()
	env.handler.Video(rec, authedRequest(t, userID, "/api/v1/generate/video",
		`{"prompt":"a drone shot of a coastline"}`))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "video/mp4", rec.Header().Get("Content-Type"))
	assert.Equal(t, "mp4-bytes", rec.Body.String())
	assert.Equal(t, 1, env.store.counts[userID])
}

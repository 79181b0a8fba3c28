package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/3merillon/rmt-compose-poc-sub004/internal/expr/module"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore is an in-memory CompositionStore standing in for
// internal/store.Store, so handler behavior can be exercised without a
// database connection.
type fakeStore struct {
	docs map[string]*module.Module
}

func newFakeStore() *fakeStore {
	return &fakeStore{docs: map[string]*module.Module{}}
}

func (f *fakeStore) Create(id, ownerID string, m *module.Module) error {
	if _, exists := f.docs[id]; exists {
		return fmt.Errorf("fakeStore: %s already exists", id)
	}
	f.docs[id] = m
	return nil
}

func (f *fakeStore) Load(id string) (*module.Module, error) {
	m, ok := f.docs[id]
	if !ok {
		return nil, fmt.Errorf("fakeStore: %s not found", id)
	}
	return m, nil
}

func (f *fakeStore) Save(id string, m *module.Module) error {
	if _, ok := f.docs[id]; !ok {
		return fmt.Errorf("fakeStore: %s not found", id)
	}
	f.docs[id] = m
	return nil
}

func (f *fakeStore) Exists(id string) (bool, error) {
	_, ok := f.docs[id]
	return ok, nil
}

func (f *fakeStore) Delete(id string) error {
	delete(f.docs, id)
	return nil
}

func newTestRouter(t *testing.T, store CompositionStore) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewCompositionHandler(store, nil)

	compositions := r.Group("/api/v1/compositions")
	compositions.POST("", h.CreateComposition)
	compositions.GET("/:id", h.GetComposition)
	compositions.POST("/:id/evaluate", h.EvaluateComposition)
	compositions.POST("/:id/batch", h.BatchSetExpressions)

	notes := compositions.Group("/:id/notes")
	notes.POST("", h.AddNote)
	notes.GET("/:noteId", h.GetNote)
	notes.PATCH("/:noteId", h.SetNoteExpression)
	notes.DELETE("/:noteId", h.DeleteNote)
	notes.POST("/:noteId/liberate", h.LiberateNote)
	notes.GET("/:noteId/evaluate-to-base", h.EvaluateToBase)
	notes.GET("/:noteId/dependents", h.NoteDependents)

	return r
}

func newBaseModule(t *testing.T) *module.Module {
	t.Helper()
	m, err := module.New()
	require.NoError(t, err)
	return m
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateAndGetComposition(t *testing.T) {
	store := newFakeStore()
	r := newTestRouter(t, store)

	m := newBaseModule(t)
	doc, err := m.ToJSON()
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, "/api/v1/compositions", bytes.NewReader(doc))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)

	w = doJSON(t, r, http.MethodGet, "/api/v1/compositions/"+created.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAddNoteAndSetExpression(t *testing.T) {
	store := newFakeStore()
	id := "comp-1"
	require.NoError(t, store.Create(id, "owner-1", newBaseModule(t)))
	r := newTestRouter(t, store)

	w := doJSON(t, r, http.MethodPost, "/api/v1/compositions/"+id+"/notes", addNoteRequest{
		ID: 1, ParentID: nil,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, r, http.MethodPatch, "/api/v1/compositions/"+id+"/notes/1", setExpressionRequest{
		Property: "frequency",
		Source:   "base.frequency * (3/2)",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var snapshot struct {
		Properties map[string]struct {
			Value float64 `json:"value"`
		} `json:"properties"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snapshot))
	assert.InDelta(t, 440.0*1.5, snapshot.Properties["frequency"].Value, 1e-6)
}

func TestSetExpressionUnknownProperty(t *testing.T) {
	store := newFakeStore()
	id := "comp-1"
	require.NoError(t, store.Create(id, "owner-1", newBaseModule(t)))
	r := newTestRouter(t, store)

	w := doJSON(t, r, http.MethodPatch, "/api/v1/compositions/"+id+"/notes/0", setExpressionRequest{
		Property: "not-a-real-property",
		Source:   "1",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteNoteCascade(t *testing.T) {
	store := newFakeStore()
	id := "comp-1"
	base := newBaseModule(t)
	require.NoError(t, base.AddNote(1, intPtr(0), nil, "", ""))
	require.NoError(t, store.Create(id, "owner-1", base))
	r := newTestRouter(t, store)

	w := doJSON(t, r, http.MethodDelete, "/api/v1/compositions/"+id+"/notes/1", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/v1/compositions/"+id+"/notes/1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEvaluateToBaseEndpoint(t *testing.T) {
	store := newFakeStore()
	id := "comp-1"
	base := newBaseModule(t)
	require.NoError(t, base.AddNote(1, intPtr(0), nil, "", ""))
	require.NoError(t, base.Set(1, 2, "base.frequency * (3/2)"))
	require.NoError(t, base.Reevaluate())
	require.NoError(t, store.Create(id, "owner-1", base))
	r := newTestRouter(t, store)

	w := doJSON(t, r, http.MethodGet, "/api/v1/compositions/"+id+"/notes/1/evaluate-to-base?property=frequency", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Source string `json:"source"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Source, "base.frequency")
}

func intPtr(v int) *int { return &v }

package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	unimemory "github.com/shreyasgurav/UniMemory"
	"github.com/shreyasgurav/UniMemory/embedding"
)

func newHandler(t *testing.T) *MemoryHandler {
	t.Helper()

	engine, err := unimemory.New(
		unimemory.WithEmbedder(embedding.NewStaticProvider(64)),
		unimemory.WithLogger(zap.NewNop()),
	)
	require.NoError(t, err)
	return NewMemoryHandler(engine, zap.NewNop())
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func addMemory(t *testing.T, h *MemoryHandler, body string) Response {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/memories", strings.NewReader(body))
	h.HandleAdd(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decodeResponse(t, rec)
}

func TestHandleAdd(t *testing.T) {
	h := newHandler(t)

	resp := addMemory(t, h, `{"owner_id": "tenant", "user_id": "alice", "content": "User's name is Sam and he loves morning runs"}`)
	assert.True(t, resp.Success)

	data := resp.Data.(map[string]interface{})
	assert.Equal(t, true, data["WorthRemembering"])
	stored := data["Stored"].([]interface{})
	require.Len(t, stored, 1)
}

func TestHandleAdd_Batch(t *testing.T) {
	h := newHandler(t)

	resp := addMemory(t, h, `{"owner_id": "tenant", "user_id": "alice", "contents": ["User's name is Sam", "The weather in Tokyo is rainy during June"]}`)
	assert.True(t, resp.Success)
	assert.Len(t, resp.Data.([]interface{}), 2)
}

func TestHandleAdd_Errors(t *testing.T) {
	h := newHandler(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/memories", strings.NewReader(`{"owner_id": "tenant", "user_id": "alice", "content": "  "}`))
	h.HandleAdd(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	resp := decodeResponse(t, rec)
	assert.False(t, resp.Success)
	assert.Equal(t, "INVALID_INPUT", resp.Error.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/memories", nil)
	h.HandleAdd(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleSearch(t *testing.T) {
	h := newHandler(t)
	addMemory(t, h, `{"owner_id": "tenant", "user_id": "alice", "content": "The weather in Tokyo is rainy during June"}`)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/memories/search?owner_id=tenant&q=weather+in+tokyo&limit=5", nil)
	h.HandleSearch(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decodeResponse(t, rec)
	results := resp.Data.(map[string]interface{})["Results"].([]interface{})
	require.Len(t, results, 1)
}

func TestHandleSearch_BlankQuery(t *testing.T) {
	h := newHandler(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/memories/search?owner_id=tenant&q=", nil)
	h.HandleSearch(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleMemory_GetAndDelete(t *testing.T) {
	h := newHandler(t)
	resp := addMemory(t, h, `{"owner_id": "tenant", "user_id": "alice", "content": "The weather in Tokyo is rainy during June"}`)
	stored := resp.Data.(map[string]interface{})["Stored"].([]interface{})
	id := stored[0].(map[string]interface{})["ID"].(string)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/memories/"+id+"?owner_id=tenant&user_id=alice", nil)
	h.HandleMemory(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodDelete, "/api/v1/memories/"+id+"?owner_id=tenant&user_id=alice", nil)
	h.HandleMemory(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/memories/"+id+"?owner_id=tenant&user_id=alice", nil)
	h.HandleMemory(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleMemory_UnknownID(t *testing.T) {
	h := newHandler(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/memories/nope?owner_id=tenant&user_id=alice", nil)
	h.HandleMemory(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

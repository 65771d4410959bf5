// cmd/library/main_test.go
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libraryledger/internal/api"
	"libraryledger/internal/catalog"
	"libraryledger/internal/config"
	"libraryledger/internal/library"
)

type TestSuite struct {
	cfg    config.Config
	lib    *library.Library
	store  store
	server *httptest.Server
}

func setupTestSuite(t *testing.T) *TestSuite {
	t.Helper()
	t.Setenv("LIBRARY_DATA_DIR", filepath.Join(t.TempDir(), "data"))
	cfg, err := config.Load()
	require.NoError(t, err)

	st, empty, closeStore, err := openStore(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(closeStore)
	require.True(t, empty)

	lib := library.New()
	handler := api.NewHandler(lib, st, nil, nil)
	server := httptest.NewServer(handler.Routes())
	t.Cleanup(server.Close)

	return &TestSuite{cfg: cfg, lib: lib, store: st, server: server}
}

func (ts *TestSuite) post(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(ts.server.URL+path, "application/json", bytes.NewBuffer(b))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (ts *TestSuite) getItem(t *testing.T, id string) catalog.Item {
	t.Helper()
	resp, err := http.Get(ts.server.URL + "/items/" + id)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var it catalog.Item
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&it))
	return it
}

// reload reads the data files into a fresh library, as a restart would.
func (ts *TestSuite) reload(t *testing.T) *library.Library {
	t.Helper()
	st, empty, closeStore, err := openStore(context.Background(), ts.cfg, nil)
	require.NoError(t, err)
	defer closeStore()
	require.False(t, empty)

	lib := library.New()
	require.NoError(t, st.Load(context.Background(), lib))
	return lib
}

func TestCheckoutFlow(t *testing.T) {
	ts := setupTestSuite(t)

	resp := ts.post(t, "/members", map[string]string{"last_name": "Austen", "first_name": "Jane", "email": "jane@example.com"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = ts.post(t, "/items", map[string]any{"kind": "book", "title": "Pride and Prejudice", "author": "Jane Austen"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var item catalog.Item
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&item))

	loanReq := map[string]string{"last_name": "Austen", "first_name": "Jane", "item_id": item.ID.String()}
	resp = ts.post(t, "/loans", loanReq)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.False(t, ts.getItem(t, item.ID.String()).Available)

	// The loan survives a restart.
	reloaded := ts.reload(t)
	require.Len(t, reloaded.ActiveLoans(), 1)
	assert.Equal(t, "Pride and Prejudice", reloaded.ActiveLoans()[0].Book.Title)

	resp = ts.post(t, "/returns", loanReq)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, ts.getItem(t, item.ID.String()).Available)

	reloaded = ts.reload(t)
	assert.Empty(t, reloaded.ActiveLoans())
	assert.Len(t, reloaded.Loans(), 1)
	assert.Len(t, reloaded.AvailableBooks(), 1)
}

func TestConcurrentCheckoutPreventsDoubleBooking(t *testing.T) {
	ts := setupTestSuite(t)

	resp := ts.post(t, "/items", map[string]any{"kind": "book", "title": "The Great Gatsby", "author": "F. Scott Fitzgerald"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var item catalog.Item
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&item))

	var names []string
	for i := range 10 {
		name := fmt.Sprintf("Member%d", i)
		resp := ts.post(t, "/members", map[string]string{"last_name": name, "first_name": "Test"})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		names = append(names, name)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	successCount := 0

	for _, name := range names {
		wg.Add(1)
		go func(last string) {
			defer wg.Done()
			body, _ := json.Marshal(map[string]string{"last_name": last, "first_name": "Test", "item_id": item.ID.String()})
			resp, err := http.Post(ts.server.URL+"/loans", "application/json", bytes.NewBuffer(body))
			if err != nil {
				return
			}
			defer resp.Body.Close()
			if resp.StatusCode == http.StatusCreated {
				mu.Lock()
				successCount++
				mu.Unlock()
			}
		}(name)
	}
	wg.Wait()

	assert.Equal(t, 1, successCount, "Only one concurrent checkout should succeed")
	assert.False(t, ts.getItem(t, item.ID.String()).Available)
	assert.Len(t, ts.reload(t).ActiveLoans(), 1)
}

func TestOpenStore_SeedsOnce(t *testing.T) {
	t.Setenv("LIBRARY_DATA_DIR", filepath.Join(t.TempDir(), "data"))
	cfg, err := config.Load()
	require.NoError(t, err)
	ctx := context.Background()

	st, empty, closeStore, err := openStore(ctx, cfg, nil)
	require.NoError(t, err)
	defer closeStore()
	require.True(t, empty)

	lib := library.New()
	require.NoError(t, library.SeedDemo(ctx, lib))
	require.NoError(t, st.Save(ctx, lib))

	_, empty, closeAgain, err := openStore(ctx, cfg, nil)
	require.NoError(t, err)
	defer closeAgain()
	assert.False(t, empty)
}

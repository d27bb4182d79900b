package hypothesis_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/mkrol/marginalia"
	"github.com/mkrol/marginalia/hypothesis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_FetchSince(t *testing.T) {
	t.Parallel()

	t.Run("fetches and converts annotations", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/search", r.URL.Path)
			assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
			assert.Equal(t, "updated", r.URL.Query().Get("sort"))

			fmt.Fprint(w, `{
				"total": 1,
				"rows": [{
					"id": "a1",
					"created": "2024-03-01T10:00:00.000000+00:00",
					"updated": "2024-03-02T11:30:00.000000+00:00",
					"uri": "https://example.com/article",
					"text": "a note",
					"tags": ["research"],
					"group": "g1",
					"target": [{
						"selector": [
							{"type": "RangeSelector"},
							{"type": "TextQuoteSelector", "exact": "the quoted passage"}
						]
					}]
				}]
			}`)
		}))
		defer srv.Close()

		client := hypothesis.NewClient(srv.URL, "secret")
		anns, err := client.FetchSince(context.Background(), time.Time{})
		require.NoError(t, err)
		require.Len(t, anns, 1)

		a := anns[0]
		assert.Equal(t, "a1", a.ID)
		assert.Equal(t, "https://example.com/article", a.URI)
		assert.Equal(t, "a note", a.Text)
		assert.Equal(t, []string{"the quoted passage"}, a.Quotes)
		assert.Equal(t, []string{"research"}, a.Tags)
		assert.Equal(t, "g1", a.Group)
		assert.Equal(t, 2024, a.UpdatedAt.Year())
	})

	t.Run("pages with the updated cursor", func(t *testing.T) {
		t.Parallel()

		var mu sync.Mutex
		var cursors []string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			cursors = append(cursors, r.URL.Query().Get("search_after"))
			page := len(cursors)
			mu.Unlock()

			rows := make([]map[string]any, 0, 2)
			if page == 1 {
				// A full page signals that another fetch is needed.
				for i := 0; i < 2; i++ {
					rows = append(rows, map[string]any{
						"id":      fmt.Sprintf("a%d", i+1),
						"updated": fmt.Sprintf("2024-03-0%dT00:00:00+00:00", i+1),
						"uri":     "https://example.com",
					})
				}
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"total": 2, "rows": rows})
		}))
		defer srv.Close()

		client := hypothesis.NewClient(srv.URL, "", hypothesis.WithPageSize(2))
		anns, err := client.FetchSince(context.Background(), time.Time{})
		require.NoError(t, err)
		assert.Len(t, anns, 2)

		mu.Lock()
		defer mu.Unlock()
		require.Len(t, cursors, 2)
		assert.Empty(t, cursors[0])
		assert.Equal(t, "2024-03-02T00:00:00+00:00", cursors[1], "second page should resume after the last updated timestamp")
	})

	t.Run("fetches each configured group", func(t *testing.T) {
		t.Parallel()

		var mu sync.Mutex
		seen := map[string]bool{}
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			group := r.URL.Query().Get("group")
			mu.Lock()
			seen[group] = true
			mu.Unlock()
			fmt.Fprintf(w, `{"total": 1, "rows": [{"id": "a-%s", "updated": "2024-01-01T00:00:00+00:00", "uri": "https://example.com"}]}`, group)
		}))
		defer srv.Close()

		client := hypothesis.NewClient(srv.URL, "", hypothesis.WithGroups([]string{"g1", "g2"}))
		anns, err := client.FetchSince(context.Background(), time.Time{})
		require.NoError(t, err)
		assert.Len(t, anns, 2)

		mu.Lock()
		defer mu.Unlock()
		assert.True(t, seen["g1"])
		assert.True(t, seen["g2"])
	})

	t.Run("surfaces server errors", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		client := hypothesis.NewClient(srv.URL, "")
		_, err := client.FetchSince(context.Background(), time.Time{})
		require.Error(t, err)
		assert.Equal(t, marginalia.EINTERNAL, marginalia.ErrorCode(err))
	})
}

func TestClient_UpdateTags(t *testing.T) {
	t.Parallel()

	t.Run("patches the annotation", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPatch, r.Method)
			assert.Equal(t, "/annotations/a1", r.URL.Path)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

			var body struct {
				Tags []string `json:"tags"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, []string{"research", "golang"}, body.Tags)
			fmt.Fprint(w, `{}`)
		}))
		defer srv.Close()

		client := hypothesis.NewClient(srv.URL, "secret")
		err := client.UpdateTags(context.Background(), "a1", []string{"research", "golang"})
		require.NoError(t, err)
	})

	t.Run("empty tag list is sent as an empty array", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var body map[string]json.RawMessage
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.JSONEq(t, `[]`, string(body["tags"]))
			fmt.Fprint(w, `{}`)
		}))
		defer srv.Close()

		client := hypothesis.NewClient(srv.URL, "secret")
		require.NoError(t, client.UpdateTags(context.Background(), "a1", nil))
	})

	t.Run("returns ENOTFOUND for unknown annotation", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		client := hypothesis.NewClient(srv.URL, "secret")
		err := client.UpdateTags(context.Background(), "ghost", []string{"x"})
		require.Error(t, err)
		assert.Equal(t, marginalia.ENOTFOUND, marginalia.ErrorCode(err))
	})
}

func TestClient_DeleteAnnotation(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/annotations/a1", r.URL.Path)
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	client := hypothesis.NewClient(srv.URL, "secret")
	require.NoError(t, client.DeleteAnnotation(context.Background(), "a1"))
}

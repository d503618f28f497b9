package persistence_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediakit/internal/domain"
	"mediakit/internal/persistence"
)

func TestClient_SaveSendsForm(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		got = map[string]string{
			"action":         r.PostForm.Get("action"),
			"document_id":    r.PostForm.Get("document_id"),
			"security_token": r.PostForm.Get("security_token"),
			"state":          r.PostForm.Get("state"),
		}
		_, _ = w.Write([]byte(`{"success":true,"data":{"message":"ok","components_count":1,"timestamp":"2024-01-02T03:04:05Z"}}`))
	}))
	defer srv.Close()

	doc := domain.NewDocument()
	doc.Components["a"] = &domain.Component{ID: "a", Type: "hero"}
	doc.Layout = []string{"a"}

	c := persistence.NewClient(srv.URL, "kit-1", "secret", time.Second)
	res, err := c.Save(context.Background(), doc)
	require.NoError(t, err)

	assert.Equal(t, "save_document", got["action"])
	assert.Equal(t, "kit-1", got["document_id"])
	assert.Equal(t, "secret", got["security_token"])
	var sent domain.Document
	require.NoError(t, json.Unmarshal([]byte(got["state"]), &sent))
	assert.Equal(t, []string{"a"}, sent.Layout)

	assert.Equal(t, "ok", res.Message)
	assert.Equal(t, 1, res.ComponentsCount)
	assert.Equal(t, 2024, res.Timestamp.Year())
}

func TestClient_FailureMessages(t *testing.T) {
	cases := map[string]struct {
		status int
		body   string
		want   string
	}{
		"string data": {http.StatusOK, `{"success":false,"data":"Invalid security token"}`, "Invalid security token"},
		"object data": {http.StatusOK, `{"success":false,"data":{"message":"Document too large"}}`, "Document too large"},
		"no data":     {http.StatusForbidden, `{"success":false}`, "save endpoint reported failure (HTTP 403)"},
		"not json":    {http.StatusBadGateway, `<html>bad gateway</html>`, "save_document failed: HTTP 502"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := persistence.NewClient(srv.URL, "kit", "tok", time.Second).Save(context.Background(), domain.NewDocument())
			require.Error(t, err)
			assert.True(t, domain.IsCode(err, domain.ErrCodePersistence))
			assert.Equal(t, tc.want, domain.UserMessage(err))
		})
	}
}

func TestClient_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := persistence.NewClient(url, "kit", "tok", time.Second).Load(context.Background())
	assert.True(t, domain.IsCode(err, domain.ErrCodePersistence))
}

func TestClient_LoadEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"data":{"state":null,"revision":0}}`))
	}))
	defer srv.Close()

	res, err := persistence.NewClient(srv.URL, "kit", "tok", time.Second).Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, res.State)
}

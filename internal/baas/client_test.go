package baas

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.URL+"/", "anon", time.Second)
}

func TestClient_SelectSendsKeyAndOrder(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/rest/v1/products", r.URL.Path)
		assert.Equal(t, "*", r.URL.Query().Get("select"))
		assert.Equal(t, "created_at.desc", r.URL.Query().Get("order"))
		assert.Equal(t, "anon", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer anon", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`[{"id":2,"title":"b"},{"id":1,"title":"a"}]`))
	})

	var rows []map[string]interface{}
	require.NoError(t, client.Select(context.Background(), "products", "created_at.desc", &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "b", rows[0]["title"])
}

func TestClient_InsertAsksForRepresentation(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "return=representation", r.Header.Get("Prefer"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body []map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body, 1)
		body[0]["id"] = 7

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(body)
	})

	var rows []map[string]interface{}
	err := client.Insert(context.Background(), "products", []map[string]interface{}{{"title": "lamp"}}, &rows)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, float64(7), rows[0]["id"])
}

func TestClient_DeleteEq(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "eq.42", r.URL.Query().Get("id"))
		_, _ = w.Write([]byte(`[{"id":42}]`))
	})

	n, err := client.DeleteEq(context.Background(), "products", "id", "42")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestClient_PostgrestError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code":"PGRST205","details":null,"hint":"Perhaps you meant the table 'public.product'","message":"Could not find the table 'public.products' in the schema cache"}`))
	})

	err := client.Select(context.Background(), "products", "", nil)
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "PGRST205", apiErr.Code)
	assert.Contains(t, apiErr.Message, "Could not find the table")
	assert.Contains(t, apiErr.Hint, "Perhaps")
}

func TestClient_NumericCodeAndPlainBody(t *testing.T) {
	t.Run("numeric code", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"code":422,"msg":"User already registered"}`))
		})
		err := client.SignOut(context.Background(), "tok")
		var apiErr *Error
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "422", apiErr.Code)
		assert.Equal(t, "User already registered", apiErr.Message)
	})

	t.Run("plain body", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("upstream down"))
		})
		err := client.SignOut(context.Background(), "tok")
		var apiErr *Error
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "upstream down", apiErr.Message)
	})
}

func TestClient_TransportError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client := NewClient(url, "anon", time.Second)
	err := client.Select(context.Background(), "products", "", nil)

	var transportErr *TransportError
	assert.ErrorAs(t, err, &transportErr)
}

func TestClient_SignUpWithSession(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"access_token":"at","user":{"id":"u1","email":"a@b.co"}}`))
	})

	session, err := client.SignUp(context.Background(), "a@b.co", "secret1", map[string]interface{}{"username": "a"})
	require.NoError(t, err)
	assert.False(t, session.PendingConfirmation())
	require.NotNil(t, session.User)
	assert.Equal(t, "u1", session.User.ID)
}

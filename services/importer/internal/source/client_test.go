package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchDataset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/feed/ca.json":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`[{"id":"A1"}]`))
		case "/feed/slow.json":
			time.Sleep(200 * time.Millisecond)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client := NewClient(srv.Client(), srv.URL+"/feed")

	data, err := client.FetchDataset(context.Background(), "ca")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"A1"}]`, string(data))

	_, err = client.FetchDataset(context.Background(), "zz")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = client.FetchDataset(ctx, "slow")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestURL(t *testing.T) {
	assert.Equal(t, "https://example.com/markers/nv.json", NewClient(nil, "https://example.com/markers").URL("nv"))
}

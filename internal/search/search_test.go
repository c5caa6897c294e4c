package search

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redactyl/leaktrace/internal/web"
)

func TestHTMLEngine_Search(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		target := url.QueryEscape("https://jane.example.com/")
		fmt.Fprintf(w, `<html><body>
<a class="result__a" href="//duckduckgo.com/l/?uddg=%s&rut=abc">Jane</a>
<a class="result__snippet" href="https://ignored.example">snippet</a>
<a class="result__a" href="https://second.example/">Second</a>
</body></html>`, target)
	}))
	defer srv.Close()

	e := NewHTMLEngine(web.New(srv.Client(), nil, time.Second), srv.URL+"/html/")
	results, err := e.Search(context.Background(), `"Jane Doe" homepage`)
	require.NoError(t, err)
	assert.Equal(t, `"Jane Doe" homepage`, gotQuery)
	assert.Equal(t, []string{"https://jane.example.com/", "https://second.example/"}, results)

	first, ok, err := First(context.Background(), e, "anything")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "https://jane.example.com/", first)
}

func TestHTMLEngine_NoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body>No results.</body></html>`))
	}))
	defer srv.Close()

	e := NewHTMLEngine(web.New(srv.Client(), nil, time.Second), srv.URL)
	_, ok, err := First(context.Background(), e, "nobody")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHTMLEngine_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	e := NewHTMLEngine(web.New(srv.Client(), nil, time.Second), srv.URL)
	_, _, err := First(context.Background(), e, "x")
	assert.Error(t, err)
}

package common

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestURLParam(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		path    string
		want    string
		wantErr string
	}{
		{name: "infohash key", path: "/records/btih:0123abcd", want: "btih:0123abcd"},
		{name: "encoded colon", path: "/records/src%3Adeadbeef", want: "src:deadbeef"},
		{name: "encoded slash", path: "/records/a%2Fb", want: "a/b"},
		{name: "space only", path: "/records/%20", wantErr: "key cannot be empty"},
		{name: "space in middle", path: "/records/btih%20x", wantErr: "key cannot contain whitespace"},
		{name: "tab at end", path: "/records/btih%09", wantErr: "key cannot contain whitespace"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var got string
			var gotErr error
			r := chi.NewRouter()
			r.Get("/records/{key}", func(_ http.ResponseWriter, req *http.Request) {
				got, gotErr = URLParam(req, "key")
			})

			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			r.ServeHTTP(httptest.NewRecorder(), req)

			if tt.wantErr != "" {
				require.Error(t, gotErr)
				assert.Equal(t, tt.wantErr, gotErr.Error())
				return
			}
			require.NoError(t, gotErr)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWriteErrorResponse(t *testing.T) {
	t.Parallel()

	rr := httptest.NewRecorder()
	WriteErrorResponse(rr, "record not found", http.StatusNotFound)

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"record not found"}`, rr.Body.String())
}

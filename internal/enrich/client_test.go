package enrich

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/dealscout/internal/extract"
)

func strPtr(s string) *string { return &s }

func testDeal() *extract.Deal {
	return &extract.Deal{
		PropertyStreetAddress: strPtr("123 Main St"),
		PropertyCity:          strPtr("Denver"),
		PropertyState:         strPtr("CO"),
		PropertyZip:           strPtr("80202"),
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Options{Endpoint: server.URL, HTTPClient: server.Client()})
	require.NoError(t, err)
	return client
}

func TestFullAddress(t *testing.T) {
	assert.Equal(t, "123 Main St, Denver, CO 80202", FullAddress(testDeal()))
	assert.Equal(t, "123 Main St, ,  ", FullAddress(&extract.Deal{PropertyStreetAddress: strPtr("123 Main St")}))
	assert.Equal(t, "", FullAddress(nil))
}

func TestLookup_Success(t *testing.T) {
	var gotBody lookupRequest
	var gotQuery, gotMethod string

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotQuery = r.URL.Query().Get("fullAddress")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = io.WriteString(w, `{"result": {"owner_name": "Jane Doe"}}`)
	})

	owner, err := client.Lookup(t.Context(), testDeal())
	require.NoError(t, err)
	require.NotNil(t, owner.OwnerName)
	assert.Equal(t, "Jane Doe", *owner.OwnerName)

	assert.Equal(t, http.MethodGet, gotMethod)
	assert.Equal(t, "123 Main St, Denver, CO 80202", gotBody.FullAddress)
	assert.Equal(t, "123 Main St, Denver, CO 80202", gotQuery)
}

func TestLookup_NoOwner(t *testing.T) {
	for _, body := range []string{
		`{"result": {"owner_name": null}}`,
		`{"result": {}}`,
		`{"result": {"owner_name": "  "}}`,
		`{}`,
	} {
		t.Run(body, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, body)
			})

			owner, err := client.Lookup(t.Context(), testDeal())
			require.NoError(t, err)
			assert.Nil(t, owner.OwnerName)
		})
	}
}

func TestLookup_SkipsWithoutStreet(t *testing.T) {
	called := false
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	owner, err := client.Lookup(t.Context(), &extract.Deal{PropertyCity: strPtr("Denver")})
	require.NoError(t, err)
	assert.Nil(t, owner.OwnerName)

	_, err = client.Lookup(t.Context(), nil)
	require.NoError(t, err)
	assert.False(t, called)
}

func TestLookup_StatusError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, "upstream down")
	})

	_, err := client.Lookup(t.Context(), testDeal())
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusBadGateway, statusErr.Code)
	assert.Equal(t, "upstream down", statusErr.Body)
}

func TestLookup_BadJSON(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "not json")
	})

	_, err := client.Lookup(t.Context(), testDeal())
	assert.Error(t, err)
}

func TestLookup_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	endpoint := server.URL
	server.Close()

	client, err := NewClient(Options{Endpoint: endpoint})
	require.NoError(t, err)

	_, err = client.Lookup(t.Context(), testDeal())
	assert.Error(t, err)
}

func TestNewClient_RequiresEndpoint(t *testing.T) {
	_, err := NewClient(Options{})
	assert.Error(t, err)
}

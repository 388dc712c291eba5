// Package testutil provides testing utilities for the metafield exporter.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
)

// APIPrefix is the path prefix the mock shop serves the Admin API on.
const APIPrefix = "/admin/api/2020-07"

// MockResponse defines a canned response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
}

// MockShop is a configurable mock Admin REST API.
//
// Listings at {resource}.json and {resource}/{id}/metafields.json are
// paginated with the limit query parameter and a page_info cursor returned
// in a Link header.
type MockShop struct {
	server *httptest.Server

	mu         sync.Mutex
	objects    map[string][]int64
	metafields map[string][]string
	failures   map[string][]MockResponse
	apiKey     string
	password   string

	// Tracking
	RequestCount      int
	Requests          []string
	LastRequestHeader http.Header
}

// NewMockShop creates a new mock shop server.
func NewMockShop() *MockShop {
	mock := &MockShop{
		objects:    make(map[string][]int64),
		metafields: make(map[string][]string),
		failures:   make(map[string][]MockResponse),
	}
	mock.server = httptest.NewServer(http.HandlerFunc(mock.handle))
	return mock
}

// URL returns the mock server URL.
func (m *MockShop) URL() string {
	return m.server.URL
}

// BaseURL returns the API base URL to configure a session with.
func (m *MockShop) BaseURL() string {
	return m.server.URL + APIPrefix
}

// Close shuts down the mock server.
func (m *MockShop) Close() {
	m.server.Close()
}

// RequireAuth makes the shop reject requests without these credentials.
func (m *MockShop) RequireAuth(apiKey, password string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.apiKey = apiKey
	m.password = password
}

// AddObjects appends objects to a resource listing, e.g. "products".
func (m *MockShop) AddObjects(resource string, ids ...int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[resource] = append(m.objects[resource], ids...)
}

// AddMetafields appends raw metafield JSON objects to an object.
func (m *MockShop) AddMetafields(resource string, id int64, metafields ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := fmt.Sprintf("%s/%d", resource, id)
	m.metafields[key] = append(m.metafields[key], metafields...)
}

// FailNext queues responses returned, in order, for the next requests to
// path (relative to APIPrefix, without query, e.g. "products.json").
func (m *MockShop) FailNext(path string, responses ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[path] = append(m.failures[path], responses...)
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockShop) GetRequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.RequestCount
}

// GetRequests returns the request paths with query, in arrival order.
func (m *MockShop) GetRequests() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Requests...)
}

func (m *MockShop) handle(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.RequestCount++
	m.Requests = append(m.Requests, r.URL.RequestURI())
	m.LastRequestHeader = r.Header.Clone()

	path := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, APIPrefix), "/")

	var failure *MockResponse
	if queued := m.failures[path]; len(queued) > 0 {
		failure = &queued[0]
		m.failures[path] = queued[1:]
	}
	apiKey, password := m.apiKey, m.password
	m.mu.Unlock()

	w.Header().Set("X-Shopify-Shop-Api-Call-Limit", "1/40")

	if apiKey != "" {
		user, pass, ok := r.BasicAuth()
		if !ok || user != apiKey || pass != password {
			writeResponse(w, NewUnauthorizedResponse())
			return
		}
	}

	if failure != nil {
		writeResponse(w, *failure)
		return
	}

	parts := strings.Split(path, "/")
	switch {
	case len(parts) == 1 && strings.HasSuffix(parts[0], ".json"):
		resource := strings.TrimSuffix(parts[0], ".json")
		m.serveListing(w, r, resource)
	case len(parts) == 3 && parts[2] == "metafields.json":
		m.serveMetafields(w, r, parts[0]+"/"+parts[1])
	default:
		writeResponse(w, NewNotFoundResponse())
	}
}

func (m *MockShop) serveListing(w http.ResponseWriter, r *http.Request, resource string) {
	m.mu.Lock()
	ids, ok := m.objects[resource]
	ids = append([]int64(nil), ids...)
	m.mu.Unlock()
	if !ok {
		writeResponse(w, NewNotFoundResponse())
		return
	}

	start, end := m.window(w, r, len(ids))
	items := make([]map[string]int64, 0, end-start)
	for _, id := range ids[start:end] {
		items = append(items, map[string]int64{"id": id})
	}

	body, _ := json.Marshal(map[string]interface{}{resource: items})
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

func (m *MockShop) serveMetafields(w http.ResponseWriter, r *http.Request, owner string) {
	m.mu.Lock()
	mfs := append([]string(nil), m.metafields[owner]...)
	m.mu.Unlock()

	start, end := m.window(w, r, len(mfs))

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"metafields":[` + strings.Join(mfs[start:end], ",") + `]}`))
}

// window applies limit/page_info and sets the Link header for the next page.
func (m *MockShop) window(w http.ResponseWriter, r *http.Request, total int) (int, int) {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = 50
	}
	start, _ := strconv.Atoi(r.URL.Query().Get("page_info"))
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	if end < total {
		next := fmt.Sprintf("%s%s?limit=%d&page_info=%d", m.server.URL, r.URL.Path, limit, end)
		w.Header().Set("Link", fmt.Sprintf(`<%s>; rel="next"`, next))
	}
	return start, end
}

func writeResponse(w http.ResponseWriter, resp MockResponse) {
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

// Metafield renders a metafield JSON object in the field order of the API.
func Metafield(id, ownerID int64, ownerResource, namespace, key, value string) string {
	return fmt.Sprintf(`{"id":%d,"namespace":%q,"key":%q,"value":%q,"value_type":"string","description":null,"owner_id":%d,"created_at":"2020-07-01T10:00:00-04:00","updated_at":"2020-07-01T10:00:00-04:00","owner_resource":%q,"admin_graphql_api_id":"gid://shopify/Metafield/%d"}`,
		id, namespace, key, value, ownerID, ownerResource, id)
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse(retryAfter string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"errors":"Exceeded 2 calls per second for api client. Reduce request rates to resume uninterrupted service."}`,
		Headers: map[string]string{
			"Retry-After":                   retryAfter,
			"X-Shopify-Shop-Api-Call-Limit": "40/40",
			"Content-Type":                  "application/json; charset=utf-8",
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"errors":"Internal Server Error"}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewNotFoundResponse creates a 404 Not Found response.
func NewNotFoundResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusNotFound,
		Body:       `{"errors":"Not Found"}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewUnauthorizedResponse creates a 401 Unauthorized response.
func NewUnauthorizedResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusUnauthorized,
		Body:       `{"errors":"[API] Invalid API key or access token (unrecognized login or wrong password)"}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

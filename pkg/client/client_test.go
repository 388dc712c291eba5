package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Sternrassler/metafield-export/internal/testutil"
	"github.com/Sternrassler/metafield-export/pkg/ratelimit"
	"github.com/rs/zerolog"
)

func newTestSession(t *testing.T, shop *testutil.MockShop) *Session {
	t.Helper()

	cfg := DefaultConfig("test.myshopify.com", "key", "secret")
	cfg.BaseURL = shop.BaseURL()
	cfg.PageSize = 2

	session, err := New(cfg)
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		expectError bool
		errorMsg    string
	}{
		{
			name:        "valid config",
			config:      DefaultConfig("shop.myshopify.com", "key", "secret"),
			expectError: false,
		},
		{
			name:        "missing store",
			config:      DefaultConfig("", "key", "secret"),
			expectError: true,
			errorMsg:    "store is required",
		},
		{
			name:        "missing api key",
			config:      DefaultConfig("shop.myshopify.com", "", "secret"),
			expectError: true,
			errorMsg:    "api key is required",
		},
		{
			name:        "missing password",
			config:      DefaultConfig("shop.myshopify.com", "key", ""),
			expectError: true,
			errorMsg:    "password is required",
		},
		{
			name: "page size too large",
			config: Config{
				Store:    "shop.myshopify.com",
				APIKey:   "key",
				Password: "secret",
				PageSize: 251,
			},
			expectError: true,
			errorMsg:    "page size must be between 1 and 250 (got 251)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session, err := New(tt.config)

			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error but got nil")
					return
				}
				if tt.errorMsg != "" && err.Error() != tt.errorMsg {
					t.Errorf("Error message = %q, want %q", err.Error(), tt.errorMsg)
				}
			} else {
				if err != nil {
					t.Errorf("Unexpected error: %v", err)
					return
				}
				if session == nil {
					t.Error("Session is nil")
				}
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("shop.myshopify.com", "key", "secret")

	if cfg.APIVersion != DefaultAPIVersion {
		t.Errorf("APIVersion = %q, want %q", cfg.APIVersion, DefaultAPIVersion)
	}
	if cfg.PageSize != MaxPageSize {
		t.Errorf("PageSize = %d, want %d", cfg.PageSize, MaxPageSize)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", cfg.Timeout)
	}
}

func TestBuildSession_BaseURL(t *testing.T) {
	session, err := BuildSession("shop.myshopify.com", "key", "secret")
	if err != nil {
		t.Fatalf("BuildSession() error = %v", err)
	}

	want := "https://shop.myshopify.com/admin/api/2020-07/products.json"
	if got := session.endpoint("products.json", nil); got != want {
		t.Errorf("endpoint() = %q, want %q", got, want)
	}
	if session.Store() != "shop.myshopify.com" {
		t.Errorf("Store() = %q", session.Store())
	}
}

func TestDo_AuthAndHeaders(t *testing.T) {
	var user, pass, agent, accept string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, _ = r.BasicAuth()
		agent = r.Header.Get("User-Agent")
		accept = r.Header.Get("Accept")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	cfg := DefaultConfig("shop.myshopify.com", "key", "secret")
	session, err := New(cfg)
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}

	req, _ := http.NewRequest("GET", server.URL+"/test", nil)
	resp, err := session.Do(req, "test")
	if err != nil {
		t.Fatalf("Do() failed: %v", err)
	}
	resp.Body.Close()

	if user != "key" || pass != "secret" {
		t.Errorf("basic auth = %q:%q, want key:secret", user, pass)
	}
	if agent != DefaultUserAgent {
		t.Errorf("User-Agent = %q, want %q", agent, DefaultUserAgent)
	}
	if accept != "application/json" {
		t.Errorf("Accept = %q, want application/json", accept)
	}
}

func TestDo_ErrorClassification(t *testing.T) {
	tests := []struct {
		name       string
		response   testutil.MockResponse
		wantStatus int
		wantClass  ErrorClass
	}{
		{
			name:       "rate limited",
			response:   testutil.NewRateLimitResponse("2.0"),
			wantStatus: 429,
			wantClass:  ErrorClassRateLimit,
		},
		{
			name:       "server error",
			response:   testutil.NewServerErrorResponse(),
			wantStatus: 500,
			wantClass:  ErrorClassServer,
		},
		{
			name:       "not found",
			response:   testutil.NewNotFoundResponse(),
			wantStatus: 404,
			wantClass:  ErrorClassClient,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shop := testutil.NewMockShop()
			defer shop.Close()
			shop.AddObjects("products", 1)
			shop.FailNext("products.json", tt.response)

			session := newTestSession(t, shop)
			_, err := session.FirstPage(context.Background(), resources["Product"])

			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected *APIError, got %v", err)
			}
			if apiErr.StatusCode != tt.wantStatus {
				t.Errorf("StatusCode = %d, want %d", apiErr.StatusCode, tt.wantStatus)
			}
			if apiErr.ErrorClass != tt.wantClass {
				t.Errorf("ErrorClass = %q, want %q", apiErr.ErrorClass, tt.wantClass)
			}
		})
	}
}

func TestDo_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	cfg := DefaultConfig("shop.myshopify.com", "key", "secret")
	cfg.BaseURL = url
	session, err := New(cfg)
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}

	_, err = session.FirstPage(context.Background(), resources["Product"])
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.ErrorClass != ErrorClassNetwork {
		t.Errorf("ErrorClass = %q, want network", apiErr.ErrorClass)
	}
}

func TestDo_UpdatesCallLimit(t *testing.T) {
	shop := testutil.NewMockShop()
	defer shop.Close()
	shop.AddObjects("products", 1)

	tracker := ratelimit.NewTracker(nil, zerolog.Nop())
	cfg := DefaultConfig("test.myshopify.com", "key", "secret")
	cfg.BaseURL = shop.BaseURL()
	cfg.RateLimiter = tracker
	session, err := New(cfg)
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}

	if _, err := session.FirstPage(context.Background(), resources["Product"]); err != nil {
		t.Fatalf("FirstPage() error = %v", err)
	}

	state, err := tracker.Resume(context.Background(), ratelimit.DrainTime)
	if err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	if state == nil {
		t.Fatal("Resume() found no recent call limit state")
	}
	if state.Used != 1 || state.Limit != 40 {
		t.Errorf("call limit = %d/%d, want 1/40", state.Used, state.Limit)
	}
}

func TestPages_FollowLinkHeader(t *testing.T) {
	shop := testutil.NewMockShop()
	defer shop.Close()
	shop.AddObjects("custom_collections", 11, 12, 13, 14, 15)

	session := newTestSession(t, shop)
	ctx := context.Background()

	page, err := session.FirstPage(ctx, resources["CustomCollection"])
	if err != nil {
		t.Fatalf("FirstPage() error = %v", err)
	}

	var ids []int64
	pages := 1
	for {
		for _, obj := range page.Objects {
			ids = append(ids, obj.ID)
			if obj.Resource.Class != "CustomCollection" {
				t.Errorf("object resource = %q", obj.Resource.Class)
			}
		}
		if !page.HasNext() {
			break
		}
		page, err = session.NextPage(ctx, page)
		if err != nil {
			t.Fatalf("NextPage() error = %v", err)
		}
		pages++
	}

	if pages != 3 {
		t.Errorf("pages = %d, want 3", pages)
	}
	want := []int64{11, 12, 13, 14, 15}
	if len(ids) != len(want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("ids[%d] = %d, want %d", i, ids[i], want[i])
		}
	}

	first := shop.GetRequests()[0]
	if !strings.Contains(first, "limit=2") || !strings.Contains(first, "fields=id") {
		t.Errorf("first request = %q, want limit and fields parameters", first)
	}
}

func TestPages_OrderQuery(t *testing.T) {
	shop := testutil.NewMockShop()
	defer shop.Close()
	shop.AddObjects("orders", 1)

	session := newTestSession(t, shop)
	if _, err := session.FirstPage(context.Background(), resources["Order"]); err != nil {
		t.Fatalf("FirstPage() error = %v", err)
	}

	if req := shop.GetRequests()[0]; !strings.Contains(req, "status=any") {
		t.Errorf("request = %q, want status=any", req)
	}
}

func TestNextPage_LastPage(t *testing.T) {
	session, _ := BuildSession("shop.myshopify.com", "key", "secret")
	if _, err := session.NextPage(context.Background(), &Page{Resource: resources["Product"]}); err == nil {
		t.Error("expected error when no next page exists")
	}
}

func TestMetafields_Paginated(t *testing.T) {
	shop := testutil.NewMockShop()
	defer shop.Close()
	shop.AddObjects("products", 7)
	shop.AddMetafields("products", 7,
		testutil.Metafield(1, 7, "product", "ns", "a", "1"),
		testutil.Metafield(2, 7, "product", "ns", "b", "2"),
		testutil.Metafield(3, 7, "product", "ns", "c", "3"),
	)

	session := newTestSession(t, shop)
	ctx := context.Background()
	obj := Object{ID: 7, Resource: resources["Product"]}

	page, err := session.Metafields(ctx, obj)
	if err != nil {
		t.Fatalf("Metafields() error = %v", err)
	}
	if len(page.Records) != 2 || !page.HasNext() {
		t.Fatalf("first page: %d records, next=%v; want 2 records and a next page", len(page.Records), page.HasNext())
	}

	page, err = session.NextMetafields(ctx, page)
	if err != nil {
		t.Fatalf("NextMetafields() error = %v", err)
	}
	if len(page.Records) != 1 || page.HasNext() {
		t.Fatalf("second page: %d records, next=%v; want 1 record and no next page", len(page.Records), page.HasNext())
	}

	key, _ := page.Records[0].Get("key")
	if key != "c" {
		t.Errorf("key = %q, want c", key)
	}
	if page.Records[0].Keys()[0] != "id" {
		t.Errorf("first attribute = %q, want id", page.Records[0].Keys()[0])
	}
}

func TestMetafields_EmptyObject(t *testing.T) {
	shop := testutil.NewMockShop()
	defer shop.Close()

	session := newTestSession(t, shop)
	page, err := session.Metafields(context.Background(), Object{ID: 99, Resource: resources["Variant"]})
	if err != nil {
		t.Fatalf("Metafields() error = %v", err)
	}
	if len(page.Records) != 0 || page.HasNext() {
		t.Errorf("got %d records, next=%v; want empty last page", len(page.Records), page.HasNext())
	}
}

func TestParseNextLink(t *testing.T) {
	tests := []struct {
		name     string
		links    []string
		expected string
	}{
		{
			name:     "no header",
			expected: "",
		},
		{
			name:     "next only",
			links:    []string{`<https://shop/admin/api/2020-07/products.json?limit=250&page_info=abc>; rel="next"`},
			expected: "https://shop/admin/api/2020-07/products.json?limit=250&page_info=abc",
		},
		{
			name:     "previous and next",
			links:    []string{`<https://shop/p.json?page_info=prev>; rel="previous", <https://shop/p.json?page_info=next>; rel="next"`},
			expected: "https://shop/p.json?page_info=next",
		},
		{
			name:     "previous only",
			links:    []string{`<https://shop/p.json?page_info=prev>; rel="previous"`},
			expected: "",
		},
		{
			name:     "separate header values",
			links:    []string{`<https://shop/a>; rel="previous"`, `<https://shop/b>; rel=next`},
			expected: "https://shop/b",
		},
		{
			name:     "malformed",
			links:    []string{`https://shop/a; rel="next"`},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := http.Header{}
			for _, l := range tt.links {
				header.Add("Link", l)
			}
			if got := parseNextLink(header); got != tt.expected {
				t.Errorf("parseNextLink() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestResolveClasses(t *testing.T) {
	res, err := ResolveClasses([]string{"CustomCollection", "SmartCollection", "Product", "Variant"})
	if err != nil {
		t.Fatalf("ResolveClasses() error = %v", err)
	}
	paths := []string{"custom_collections", "smart_collections", "products", "variants"}
	for i, r := range res {
		if r.Path != paths[i] {
			t.Errorf("res[%d].Path = %q, want %q", i, r.Path, paths[i])
		}
	}

	_, err = ResolveClasses([]string{"Product", "Widget"})
	if !errors.Is(err, ErrUnknownClass) {
		t.Errorf("expected ErrUnknownClass, got %v", err)
	}
}

package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		expectError bool
		errorMsg    string
	}{
		{
			name:        "valid config",
			config:      DefaultConfig(),
			expectError: false,
		},
		{
			name: "empty base url",
			config: Config{
				AppIdentifier: "token",
			},
			expectError: true,
			errorMsg:    "base url is required",
		},
		{
			name: "relative base url",
			config: Config{
				BaseURL:       "/api",
				AppIdentifier: "token",
			},
			expectError: true,
			errorMsg:    `base url must be absolute (got "/api")`,
		},
		{
			name: "empty app identifier",
			config: Config{
				BaseURL: "https://example.org",
			},
			expectError: true,
			errorMsg:    "app identifier is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := New(tt.config)

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
				if client == nil {
					t.Error("Client is nil")
				}
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.BaseURL != DefaultBaseURL {
		t.Errorf("BaseURL = %q, want %q", cfg.BaseURL, DefaultBaseURL)
	}
	if cfg.AppIdentifier == "" {
		t.Error("AppIdentifier should be set")
	}
	if cfg.Timeout != 0 {
		t.Errorf("Timeout = %v, want no timeout", cfg.Timeout)
	}
}

func TestThemeURL(t *testing.T) {
	c, err := New(Config{BaseURL: "https://hapi.example.org/", AppIdentifier: "abc"})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	got := c.ThemeURL("food_security")
	want := "https://hapi.example.org/api/themes/food_security?output_format=json&app_identifier=abc"
	if got != want {
		t.Errorf("ThemeURL() = %q, want %q", got, want)
	}
}

func TestResourceURL(t *testing.T) {
	c, err := New(Config{BaseURL: "https://hapi.example.org", AppIdentifier: "abc"})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	got := c.ResourceURL("r-1", DefaultDateWindow())
	want := "https://hapi.example.org/api/resource?hdx_id=r-1&update_date_min=2020-01-01&update_date_max=2024-12-31&output_format=json&app_identifier=abc"
	if got != want {
		t.Errorf("ResourceURL() = %q, want %q", got, want)
	}
}

func TestClassifyError(t *testing.T) {
	client := &Client{logger: zerolog.Nop()}

	tests := []struct {
		name       string
		statusCode int
		err        error
		expected   ErrorClass
	}{
		{"network error", 0, io.EOF, ErrorClassNetwork},
		{"client error 404", 404, nil, ErrorClassClient},
		{"client error 429", 429, nil, ErrorClassClient},
		{"server error 500", 500, nil, ErrorClassServer},
		{"server error 503", 503, nil, ErrorClassServer},
		{"success 200", 200, nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp *http.Response
			if tt.statusCode > 0 {
				resp = &http.Response{StatusCode: tt.statusCode}
			}

			result := client.classifyError(resp, tt.err)
			if result != tt.expected {
				t.Errorf("classifyError() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestGetJSON_Success(t *testing.T) {
	var userAgent, accept string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgent = r.Header.Get("User-Agent")
		accept = r.Header.Get("Accept")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data": []}`))
	}))
	defer server.Close()

	c, err := New(Config{BaseURL: server.URL, AppIdentifier: "abc", UserAgent: "TestApp/1.0.0"})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	body, err := c.GetJSON(context.Background(), c.ThemeURL("population"))
	if err != nil {
		t.Fatalf("GetJSON() failed: %v", err)
	}

	if string(body) != `{"data": []}` {
		t.Errorf("body = %q", body)
	}
	if userAgent != "TestApp/1.0.0" {
		t.Errorf("User-Agent = %q, want %q", userAgent, "TestApp/1.0.0")
	}
	if accept != "application/json" {
		t.Errorf("Accept = %q, want application/json", accept)
	}
}

func TestGetJSON_HTTPErrors(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		expected   ErrorClass
	}{
		{"not found", http.StatusNotFound, ErrorClassClient},
		{"unprocessable", http.StatusUnprocessableEntity, ErrorClassClient},
		{"server error", http.StatusInternalServerError, ErrorClassServer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			requests := 0
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				requests++
				w.WriteHeader(tt.statusCode)
			}))
			defer server.Close()

			c, err := New(Config{BaseURL: server.URL, AppIdentifier: "abc"})
			if err != nil {
				t.Fatalf("New() failed: %v", err)
			}

			_, err = c.GetJSON(context.Background(), server.URL+"/api/themes/3w")
			if err == nil {
				t.Fatal("Expected error but got nil")
			}

			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("Expected *APIError, got %T", err)
			}
			if apiErr.StatusCode != tt.statusCode {
				t.Errorf("StatusCode = %d, want %d", apiErr.StatusCode, tt.statusCode)
			}
			if apiErr.ErrorClass != tt.expected {
				t.Errorf("ErrorClass = %q, want %q", apiErr.ErrorClass, tt.expected)
			}
			if requests != 1 {
				t.Errorf("requests = %d, want 1 (no retry)", requests)
			}
		})
	}
}

func TestGetJSON_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	c, err := New(Config{BaseURL: url, AppIdentifier: "abc"})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	_, err = c.GetJSON(context.Background(), url+"/api/themes/3w")
	if err == nil {
		t.Fatal("Expected error but got nil")
	}
	if ClassOf(err) != ErrorClassNetwork {
		t.Errorf("ClassOf() = %q, want %q", ClassOf(err), ErrorClassNetwork)
	}
}

func TestGetJSON_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{"data": []}`))
	}))
	defer server.Close()

	c, err := New(Config{BaseURL: server.URL, AppIdentifier: "abc", Timeout: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	_, err = c.GetJSON(context.Background(), server.URL+"/api/themes/3w")
	if err == nil {
		t.Fatal("Expected timeout error but got nil")
	}
	if !strings.Contains(err.Error(), "network") {
		t.Errorf("Error = %q, want network class", err.Error())
	}
}

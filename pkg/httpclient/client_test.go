package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	expected := &Config{
		Timeout:      10 * time.Second,
		MaxRetries:   3,
		RetryBackoff: 1 * time.Second,
		UserAgent:    "chill/1.0",
		Headers:      make(map[string]string),
	}

	if !reflect.DeepEqual(config, expected) {
		t.Errorf("DefaultConfig() = %+v, expected %+v", config, expected)
	}
}

func TestNewClient(t *testing.T) {
	tests := []struct {
		name   string
		config *Config
	}{
		{
			name:   "with nil config",
			config: nil,
		},
		{
			name:   "with default config",
			config: DefaultConfig(),
		},
		{
			name: "with custom config",
			config: &Config{
				Timeout:      5 * time.Second,
				MaxRetries:   2,
				RetryBackoff: 500 * time.Millisecond,
				UserAgent:    "custom-agent/1.0",
				Headers:      map[string]string{"Custom": "header"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewClient(tt.config)

			if client == nil {
				t.Fatal("NewClient() returned nil")
			}
			if client.client == nil {
				t.Error("NewClient() client.client should not be nil")
			}

			if tt.config == nil {
				if !reflect.DeepEqual(client.config, DefaultConfig()) {
					t.Errorf("NewClient(nil) should use default config")
				}
			} else if !reflect.DeepEqual(client.config, tt.config) {
				t.Errorf("NewClient() config = %+v, expected %+v", client.config, tt.config)
			}

			if client.client.Timeout != client.config.Timeout {
				t.Errorf("NewClient() timeout = %v, expected %v", client.client.Timeout, client.config.Timeout)
			}
		})
	}
}

func TestIsRetryableStatusCode(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		expected   bool
	}{
		{"200 OK - not retryable", http.StatusOK, false},
		{"201 Created - not retryable", http.StatusCreated, false},
		{"400 Bad Request - not retryable", http.StatusBadRequest, false},
		{"401 Unauthorized - not retryable", http.StatusUnauthorized, false},
		{"404 Not Found - not retryable", http.StatusNotFound, false},
		{"429 Too Many Requests - retryable", http.StatusTooManyRequests, true},
		{"500 Internal Server Error - retryable", http.StatusInternalServerError, true},
		{"502 Bad Gateway - retryable", http.StatusBadGateway, true},
		{"503 Service Unavailable - retryable", http.StatusServiceUnavailable, true},
		{"504 Gateway Timeout - retryable", http.StatusGatewayTimeout, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryableStatusCode(tt.statusCode); got != tt.expected {
				t.Errorf("IsRetryableStatusCode(%d) = %v, expected %v", tt.statusCode, got, tt.expected)
			}
		})
	}
}

func TestGetRetriesServerErrors(t *testing.T) {
	var attempts int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(&Config{
		Timeout:      time.Second,
		MaxRetries:   3,
		RetryBackoff: time.Millisecond,
		UserAgent:    "chill/1.0",
	})

	resp, err := client.Get(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestGetSetsUserAgent(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
	}))
	defer server.Close()

	client := NewClient(nil)
	resp, err := client.Get(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	resp.Body.Close()

	if gotUA != "chill/1.0" {
		t.Errorf("User-Agent = %q, want chill/1.0", gotUA)
	}
}

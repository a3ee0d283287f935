package openweather

import (
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/i474232898/openweather-sdk/internal/owm"
)

// requestTimeout is applied to every outbound API request.
const requestTimeout = 10 * time.Second

// Registry maps API keys to live clients and guarantees at most one client
// per key. The zero value is not usable; construct with NewRegistry. The
// package-level functions operate on a process-wide default registry; tests
// that need isolation construct their own.
type Registry struct {
	mu         sync.Mutex
	clients    map[string]*Client
	httpClient *http.Client
}

// NewRegistry creates an empty registry with a shared outbound HTTP client.
func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[string]*Client),
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
	}
}

// Create returns the client registered for apiKey, constructing one with the
// default configuration if absent.
func (r *Registry) Create(apiKey string) (*Client, error) {
	return r.CreateWithConfig(apiKey, DefaultConfig())
}

// CreateWithConfig returns the client registered for apiKey, constructing
// one from cfg if absent. The check and the construction happen under one
// lock, so concurrent calls for the same key never produce two live clients.
// If a client already exists, cfg is ignored.
func (r *Registry) CreateWithConfig(apiKey string, cfg Config) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrInvalidAPIKey
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if client, ok := r.clients[apiKey]; ok {
		return client, nil
	}

	client, err := newClient(cfg, owm.New(r.httpClient, apiKey))
	if err != nil {
		return nil, err
	}

	r.clients[apiKey] = client
	return client, nil
}

// Get returns the client registered for apiKey, or nil if absent.
func (r *Registry) Get(apiKey string) *Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.clients[apiKey]
}

// Delete removes and closes the client registered for apiKey, if any.
// Errors during close are logged, not propagated.
func (r *Registry) Delete(apiKey string) {
	r.mu.Lock()
	client := r.clients[apiKey]
	delete(r.clients, apiKey)
	r.mu.Unlock()

	if client == nil {
		return
	}
	if err := client.Close(); err != nil {
		log.Printf("registry: error closing client: %v", err)
	}
}

// Shutdown deletes every registered client, closing each.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	keys := make([]string, 0, len(r.clients))
	for key := range r.clients {
		keys = append(keys, key)
	}
	r.mu.Unlock()

	for _, key := range keys {
		r.Delete(key)
	}
}

var defaultRegistry = NewRegistry()

// Create returns the process-wide client for apiKey, constructing one with
// the default configuration if absent.
func Create(apiKey string) (*Client, error) {
	return defaultRegistry.Create(apiKey)
}

// CreateWithConfig returns the process-wide client for apiKey, constructing
// one from cfg if absent.
func CreateWithConfig(apiKey string, cfg Config) (*Client, error) {
	return defaultRegistry.CreateWithConfig(apiKey, cfg)
}

// Get returns the process-wide client for apiKey, or nil if absent.
func Get(apiKey string) *Client {
	return defaultRegistry.Get(apiKey)
}

// Delete removes and closes the process-wide client for apiKey, if any.
func Delete(apiKey string) {
	defaultRegistry.Delete(apiKey)
}

// Shutdown closes and removes every client in the process-wide registry.
func Shutdown() {
	defaultRegistry.Shutdown()
}

package redis

import "testing"

func TestClientConfigOptions(t *testing.T) {
	cfg := ClientConfig{Addr: "localhost:6379", Password: "pw", DB: 2}
	opts := cfg.options()

	if opts.Addr != "localhost:6379" || opts.Password != "pw" || opts.DB != 2 {
		t.Errorf("opts = %+v", opts)
	}
	if opts.PoolSize != defaultPoolSize {
		t.Errorf("PoolSize = %d, want default %d", opts.PoolSize, defaultPoolSize)
	}
	if opts.MaxRetries != defaultMaxRetries {
		t.Errorf("MaxRetries = %d, want default %d", opts.MaxRetries, defaultMaxRetries)
	}
	if opts.TLSConfig != nil {
		t.Error("TLS configured without tls_enabled")
	}
}

func TestClientConfigOptionsExplicit(t *testing.T) {
	cfg := ClientConfig{Addr: "redis:6379", PoolSize: 5, MaxRetries: 1, TLSEnabled: true}
	opts := cfg.options()

	if opts.PoolSize != 5 || opts.MaxRetries != 1 {
		t.Errorf("pool/retries = %d/%d, want 5/1", opts.PoolSize, opts.MaxRetries)
	}
	if opts.TLSConfig == nil {
		t.Fatal("TLS not configured")
	}
}

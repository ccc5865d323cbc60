package tracing

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProvider(t *testing.T) {
	badCA := filepath.Join(t.TempDir(), "ca.crt")
	require.NoError(t, os.WriteFile(badCA, []byte("not a certificate"), 0o600))

	tests := []struct {
		name        string
		cfg         Config
		expectError bool
	}{
		{
			name: "disabled",
			cfg:  Config{},
		},
		{
			name:        "enabled without endpoint",
			cfg:         Config{Enabled: true},
			expectError: true,
		},
		{
			name: "plaintext",
			cfg:  Config{Enabled: true, Endpoint: "localhost:4317", Insecure: true},
		},
		{
			name: "tls with system roots",
			cfg:  Config{Enabled: true, Endpoint: "localhost:4317"},
		},
		{
			name:        "missing CA file",
			cfg:         Config{Enabled: true, Endpoint: "localhost:4317", TLSCAPath: "/path/to/ca.crt"},
			expectError: true,
		},
		{
			name:        "invalid CA file",
			cfg:         Config{Enabled: true, Endpoint: "localhost:4317", TLSCAPath: badCA},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := NewProvider(context.Background(), tt.cfg)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.cfg.Enabled, provider.IsEnabled())
			assert.NotNil(t, provider.Tracer("test"))
			assert.NoError(t, provider.Shutdown(context.Background()))
		})
	}
}

func TestNilProviderTracer(t *testing.T) {
	var p *Provider
	assert.False(t, p.IsEnabled())

	_, span := p.Tracer("test").Start(context.Background(), "op")
	assert.False(t, span.SpanContext().IsValid())
	span.End()
}

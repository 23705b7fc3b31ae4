package writer

import "testing"

func TestResolveEndpoint(t *testing.T) {
	tests := []struct {
		name               string
		host               string
		port               uint16
		override           string
		wantURL            string
		wantUnixSocketPath string
		wantErr            bool
	}{
		{
			name:    "no override",
			host:    "localhost",
			port:    8126,
			wantURL: "http://localhost:8126/v0.4/traces",
		},
		{
			name:     "http override",
			host:     "localhost",
			port:     8126,
			override: "http://collector:9126",
			wantURL:  "http://collector:9126/v0.4/traces",
		},
		{
			name:     "https override",
			host:     "localhost",
			port:     8126,
			override: "https://collector:9126",
			wantURL:  "https://collector:9126/v0.4/traces",
		},
		{
			name:               "unix scheme override",
			host:               "localhost",
			port:               8126,
			override:           "unix:///var/run/datadog/apm.socket",
			wantURL:            "http://localhost:8126/v0.4/traces",
			wantUnixSocketPath: "/var/run/datadog/apm.socket",
		},
		{
			name:               "bare absolute path override",
			host:               "localhost",
			port:               8126,
			override:           "/var/run/datadog/apm.socket",
			wantURL:            "http://localhost:8126/v0.4/traces",
			wantUnixSocketPath: "/var/run/datadog/apm.socket",
		},
		{
			name:     "unsupported scheme",
			host:     "localhost",
			port:     8126,
			override: "gopher://collector:9126",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url, sock, err := resolveEndpoint(tt.host, tt.port, tt.override)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("resolveEndpoint(%q, %d, %q) = nil error, want error", tt.host, tt.port, tt.override)
				}
				return
			}
			if err != nil {
				t.Fatalf("resolveEndpoint(%q, %d, %q) error: %v", tt.host, tt.port, tt.override, err)
			}
			if url != tt.wantURL {
				t.Errorf("url = %q, want %q", url, tt.wantURL)
			}
			if sock != tt.wantUnixSocketPath {
				t.Errorf("unixSocketPath = %q, want %q", sock, tt.wantUnixSocketPath)
			}
		})
	}
}

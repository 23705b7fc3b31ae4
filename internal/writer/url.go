package writer

import (
	"fmt"
	"strings"
)

const tracesPath = "/v0.4/traces"

// resolveEndpoint derives the effective trace-submission URL and, when the
// override names a unix-domain socket, the socket path to dial, from host,
// port and urlOverride. See the URL resolution table: an empty override
// resolves against host/port; an http(s):// override supplies its own
// host/port but keeps the fixed path; a unix:// or bare absolute-path
// override keeps the host/port URL but binds the socket path; anything else
// is an unsupported scheme.
func resolveEndpoint(host string, port uint16, urlOverride string) (effectiveURL, unixSocketPath string, err error) {
	if urlOverride == "" {
		return fmt.Sprintf("http://%s:%d%s", host, port, tracesPath), "", nil
	}

	if strings.HasPrefix(urlOverride, "unix://") {
		return fmt.Sprintf("http://%s:%d%s", host, port, tracesPath),
			strings.TrimPrefix(urlOverride, "unix://"), nil
	}
	if strings.HasPrefix(urlOverride, "/") {
		return fmt.Sprintf("http://%s:%d%s", host, port, tracesPath), urlOverride, nil
	}

	for _, scheme := range []string{"http://", "https://"} {
		if strings.HasPrefix(urlOverride, scheme) {
			return strings.TrimSuffix(urlOverride, "/") + tracesPath, "", nil
		}
	}

	return "", "", fmt.Errorf("traceband: unsupported url scheme in %q", urlOverride)
}

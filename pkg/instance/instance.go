package instance

import (
	"os"
	"strings"
)

// GetID identifies the running process in logs. FARMCONNECT_INSTANCE_ID wins,
// then the host name, then "local".
func GetID() string {
	if id := strings.TrimSpace(os.Getenv("FARMCONNECT_INSTANCE_ID")); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}

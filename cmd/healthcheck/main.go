// Command healthcheck probes the bridge's ops API and exits non-zero unless
// it reports healthy. It is meant for container HEALTHCHECK directives where
// no shell or curl is available.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"
)

const (
	defaultAddr  = "127.0.0.1:8080"
	probeTimeout = 2 * time.Second
)

func main() {
	if err := probe(os.Getenv("FORUMBRIDGE_LISTEN_ADDR")); err != nil {
		fmt.Fprintln(os.Stderr, "unhealthy:", err)
		os.Exit(1)
	}
}

func probe(listenAddr string) error {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	url := fmt.Sprintf("http://%s/api/v1/health", probeAddr(listenAddr))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := (&http.Client{Timeout: probeTimeout}).Do(req)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s answered %d", url, resp.StatusCode)
	}
	return nil
}

// probeAddr turns the server's bind address into one the probe can dial from
// inside the same container. Wildcard hosts become loopback.
func probeAddr(listenAddr string) string {
	if listenAddr == "" {
		return defaultAddr
	}

	host, port, err := net.SplitHostPort(listenAddr)
	if err != nil {
		return defaultAddr
	}

	switch host {
	case "", "0.0.0.0":
		host = "127.0.0.1"
	case "::":
		host = "::1"
	}
	return net.JoinHostPort(host, port)
}

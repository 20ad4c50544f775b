package util

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

var ipServices = []string{
	"https://api.ipify.org",
	"https://ifconfig.me/ip",
	"https://icanhazip.com",
}

// lookupPublicIP asks the first responsive echo service for this machine's public address.
func lookupPublicIP(ctx context.Context) (string, error) {
	for _, service := range ipServices {
		ip, err := fetchIP(ctx, service)
		if err != nil {
			log.Debugf("public IP lookup via %s failed: %v", service, err)
			continue
		}
		return ip, nil
	}
	return "", fmt.Errorf("public IP lookup: no service answered")
}

func fetchIP(ctx context.Context, service string) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, service, nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64))
	if err != nil {
		return "", err
	}
	ip := net.ParseIP(strings.TrimSpace(string(body)))
	if ip == nil {
		return "", fmt.Errorf("%s returned no IP address", service)
	}
	return ip.String(), nil
}

// outboundIP returns the local address used for outbound traffic. No packet is sent.
func outboundIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer func() { _ = conn.Close() }()
	if addr, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		return addr.IP.String(), nil
	}
	return "", fmt.Errorf("unexpected local address %v", conn.LocalAddr())
}

// GetIPAddress prefers the public address and falls back to the outbound one.
func GetIPAddress(ctx context.Context) string {
	if ip, err := lookupPublicIP(ctx); err == nil {
		return ip
	}
	if ip, err := outboundIP(); err == nil {
		return ip
	}
	return "127.0.0.1"
}

// PrintSSHTunnelInstructions explains how to forward the loopback callback port when the
// login runs on a remote host without a browser.
func PrintSSHTunnelInstructions(ctx context.Context, w io.Writer, port int) {
	ipAddress := GetIPAddress(ctx)
	border := strings.Repeat("=", 80)
	_, _ = fmt.Fprintln(w, "To sign in from another machine, forward the callback port over SSH first.")
	_, _ = fmt.Fprintln(w, border)
	_, _ = fmt.Fprintln(w, "  Run this on the machine with the browser (NOT on this host):")
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintf(w, "  ssh -L %d:127.0.0.1:%d <user>@%s\n", port, port, ipAddress)
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, "  Add -p <port> when SSH does not listen on 22.")
	_, _ = fmt.Fprintln(w, border)
}

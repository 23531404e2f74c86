package aprs

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Default APRS-IS connection settings
const (
	DefaultServer  = "euro.aprs2.net:14580"
	DefaultTimeout = 10 * time.Second
)

// Client sends packets to an APRS-IS server, one short session per Send
type Client struct {
	server   string
	callsign string
	passcode int
	software string
	version  string
	timeout  time.Duration
	logger   *logrus.Logger
}

// NewClient creates a new APRS-IS client
func NewClient(server, callsign string, passcode int, software, version string, logger *logrus.Logger) *Client {
	if server == "" {
		server = DefaultServer
	}
	return &Client{
		server:   server,
		callsign: callsign,
		passcode: passcode,
		software: software,
		version:  version,
		timeout:  DefaultTimeout,
		logger:   logger,
	}
}

// LoginLine returns the login command sent after the server banner
func (c *Client) LoginLine() string {
	return fmt.Sprintf("user %s pass %d vers %s %s", c.callsign, c.passcode, c.software, c.version)
}

// Send logs in and writes each packet on its own line
func (c *Client) Send(ctx context.Context, packets ...string) error {
	if len(packets) == 0 {
		return nil
	}

	dialer := net.Dialer{Timeout: c.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.server)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", c.server, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return fmt.Errorf("failed to set deadline: %w", err)
	}

	reader := bufio.NewReader(conn)

	banner, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("failed to read server banner: %w", err)
	}
	c.logger.WithField("banner", strings.TrimSpace(banner)).Debug("Connected to APRS-IS")

	if _, err := fmt.Fprintf(conn, "%s\r\n", c.LoginLine()); err != nil {
		return fmt.Errorf("failed to send login: %w", err)
	}

	resp, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("failed to read login response: %w", err)
	}
	resp = strings.TrimSpace(resp)
	c.logger.WithField("response", resp).Debug("APRS-IS login response")
	if strings.Contains(resp, "unverified") {
		c.logger.WithField("callsign", c.callsign).Warn("APRS-IS login unverified, packets will be dropped")
	}

	for _, p := range packets {
		if _, err := fmt.Fprintf(conn, "%s\r\n", p); err != nil {
			return fmt.Errorf("failed to send packet: %w", err)
		}
		c.logger.WithField("packet", p).Info("Sent APRS packet")
	}

	return nil
}

package aprs

import (
	"bufio"
	"context"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeServer accepts one connection and records every line the client sends
func fakeServer(t *testing.T, loginResp string) (string, <-chan []string) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	lines := make(chan []string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			close(lines)
			return
		}
		defer conn.Close()

		_, _ = io.WriteString(conn, "# aprsc 2.1.14\r\n")
		reader := bufio.NewReader(conn)

		var got []string
		login, err := reader.ReadString('\n')
		if err != nil {
			lines <- got
			return
		}
		got = append(got, strings.TrimRight(login, "\r\n"))
		_, _ = io.WriteString(conn, loginResp+"\r\n")

		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				break
			}
			got = append(got, strings.TrimRight(line, "\r\n"))
		}
		lines <- got
	}()

	return ln.Addr().String(), lines
}

func TestClient_LoginLine(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	client := NewClient("", "N0CALL", 13023, "wsprbridge", "1.0.0", logger)
	assert.Equal(t, "user N0CALL pass 13023 vers wsprbridge 1.0.0", client.LoginLine())
	assert.Equal(t, DefaultServer, client.server)
}

func TestClient_Send(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{"Verified", "# logresp N0CALL verified, server T2TEST"},
		{"Unverified", "# logresp N0CALL unverified, server T2TEST"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := logrus.New()
			logger.SetOutput(io.Discard)

			addr, lines := fakeServer(t, tt.response)
			client := NewClient(addr, "N0CALL", 13023, "wsprbridge", "1.0.0", logger)

			packets := []string{
				"TEST-1>APLRG1,TCPIP,qAC:!5230.00N/01645.00WO000/060/A=025853/a",
				"TEST-1>APLRG1,TCPIP,qAC:!5230.00N/01645.00WO000/060/A=025853/b",
			}

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			require.NoError(t, client.Send(ctx, packets...))

			select {
			case got := <-lines:
				require.Len(t, got, 3)
				assert.Equal(t, client.LoginLine(), got[0])
				assert.Equal(t, packets, got[1:])
			case <-time.After(5 * time.Second):
				t.Fatal("server did not receive packets")
			}
		})
	}
}

func TestClient_SendNothing(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	// No packets means no connection attempt, so an unroutable server is fine
	client := NewClient("127.0.0.1:1", "N0CALL", 13023, "wsprbridge", "1.0.0", logger)
	assert.NoError(t, client.Send(context.Background()))
}

func TestClient_ConnectFailure(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	client := NewClient(addr, "N0CALL", 13023, "wsprbridge", "1.0.0", logger)
	err = client.Send(context.Background(), "packet")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect")
}

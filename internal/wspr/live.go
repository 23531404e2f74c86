package wspr

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"wsprbridge/internal/telemetry"
)

// DefaultLiveURL is the wspr.live ClickHouse HTTP endpoint
const DefaultLiveURL = "http://db1.wspr.live/"

const (
	spotColumns     = "toString(time) as stime, band, tx_sign, tx_loc, tx_lat, tx_lon, power, stime"
	receiverColumns = "rx_sign, frequency, snr, toString(time) as stime, rx_loc, version"
	receiverLimit   = 10
)

// LiveClient queries wspr.live
type LiveClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewLiveClient creates a new wspr.live client
func NewLiveClient(baseURL string, logger *logrus.Logger) *LiveClient {
	if baseURL == "" {
		baseURL = DefaultLiveURL
	}
	return &LiveClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

// SpotSQL builds the query for the newest observation matching q
func SpotSQL(q SpotQuery) (string, error) {
	if err := checkQuery(q); err != nil {
		return "", err
	}

	var where []string
	if q.Band != "" {
		where = append(where, fmt.Sprintf("(band='%s')", q.Band))
	}
	where = append(where,
		fmt.Sprintf("(stime LIKE '____-__-__ __:_%d%%')", q.Slot),
		fmt.Sprintf("(time > %d)", q.Since.Unix()))
	if q.Pattern != "" {
		where = append(where, fmt.Sprintf("(tx_sign LIKE '%s')", q.Pattern))
	} else {
		where = append(where, fmt.Sprintf("(tx_sign='%s')", q.Callsign))
	}

	return fmt.Sprintf("SELECT %s FROM wspr.rx WHERE %s ORDER BY time DESC LIMIT 1",
		spotColumns, strings.Join(where, " AND ")), nil
}

// ReceiverSQL builds the query for the stations that heard one observation
func ReceiverSQL(spot telemetry.RawSpot, band string) (string, error) {
	if err := checkToken("callsign", spot.Callsign, "/"); err != nil {
		return "", err
	}
	if spot.Callsign == "" {
		return "", fmt.Errorf("spot has no callsign")
	}
	if err := checkBand(band); err != nil {
		return "", err
	}

	stime := spot.RawTime
	if _, err := time.Parse(TimeLayout, stime); err != nil {
		stime = spot.Time.UTC().Format(TimeLayout)
	}

	var where []string
	if band != "" {
		where = append(where, fmt.Sprintf("(band='%s')", band))
	}
	where = append(where,
		fmt.Sprintf("(time = '%s')", stime),
		fmt.Sprintf("(tx_sign='%s')", spot.Callsign))

	return fmt.Sprintf("SELECT %s FROM wspr.rx WHERE %s ORDER BY snr ASC LIMIT %d",
		receiverColumns, strings.Join(where, " AND "), receiverLimit), nil
}

// LatestSpot returns the newest observation matching q
func (c *LiveClient) LatestSpot(ctx context.Context, q SpotQuery) (telemetry.RawSpot, error) {
	sql, err := SpotSQL(q)
	if err != nil {
		return telemetry.RawSpot{}, fmt.Errorf("invalid spot query: %w", err)
	}

	body, err := c.query(ctx, sql)
	if err != nil {
		return telemetry.RawSpot{}, err
	}
	if body == "" {
		return telemetry.RawSpot{}, ErrNoSpots
	}

	line := strings.SplitN(body, "\n", 2)[0]
	return ParseSpot(line)
}

// Receivers returns the stations that heard either observation of a pair
func (c *LiveClient) Receivers(ctx context.Context, pair telemetry.PacketPair, band string) ([]Receiver, error) {
	var all []Receiver
	for _, spot := range []telemetry.RawSpot{pair.Identity, pair.Telemetry} {
		sql, err := ReceiverSQL(spot, band)
		if err != nil {
			return nil, fmt.Errorf("invalid receiver query: %w", err)
		}

		body, err := c.query(ctx, sql)
		if err != nil {
			return nil, err
		}

		receivers, err := ParseReceivers(body)
		if err != nil {
			return nil, fmt.Errorf("failed to parse receivers: %w", err)
		}
		all = append(all, receivers...)
	}
	return all, nil
}

func (c *LiveClient) query(ctx context.Context, sql string) (string, error) {
	u := c.baseURL + "?" + url.Values{"query": {sql}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	c.logger.WithField("query", sql).Debug("Querying wspr.live")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to query wspr.live: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read wspr.live response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("wspr.live returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	return strings.TrimSpace(string(body)), nil
}

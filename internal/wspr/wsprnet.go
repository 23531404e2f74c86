package wspr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"wsprbridge/internal/maidenhead"
	"wsprbridge/internal/telemetry"
)

// DefaultNetURL is the wsprnet.org spot database page
const DefaultNetURL = "http://wsprnet.org/olddb"

// NetTimeLayout is the date format of the wsprnet.org spot table
const NetTimeLayout = "2006-01-02 15:04"

// ErrPatternUnsupported is returned for wildcard queries, which the
// wsprnet.org search form cannot express
var ErrPatternUnsupported = errors.New("wsprnet.org does not support callsign patterns")

// wsprnet.org spot table columns
const (
	colDate     = 0
	colCall     = 1
	colMHz      = 2
	colSNR      = 3
	colGrid     = 5
	colPower    = 6
	colReporter = 8
	colRGrid    = 9
	colVersion  = 13
)

// spotTableIndex is the position of the spot table among the page's tables
const spotTableIndex = 2

// NetClient scrapes the wsprnet.org spot database
type NetClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewNetClient creates a new wsprnet.org client
func NewNetClient(baseURL string, logger *logrus.Logger) *NetClient {
	if baseURL == "" {
		baseURL = DefaultNetURL
	}
	return &NetClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

// LatestSpot returns the newest observation of q.Callsign in q.Slot since
// q.Since. Positions come from the reported locator.
func (c *NetClient) LatestSpot(ctx context.Context, q SpotQuery) (telemetry.RawSpot, error) {
	if q.Pattern != "" {
		return telemetry.RawSpot{}, ErrPatternUnsupported
	}
	if err := checkQuery(q); err != nil {
		return telemetry.RawSpot{}, fmt.Errorf("invalid spot query: %w", err)
	}

	rows, err := c.fetch(ctx, q.Callsign)
	if err != nil {
		return telemetry.RawSpot{}, err
	}

	for _, row := range rows {
		ts, ok := rowTime(row)
		if !ok || ts.Before(q.Since) || ts.Minute()%10 != q.Slot {
			continue
		}
		if len(row) <= colPower {
			continue
		}

		locator := row[colGrid]
		lat, lon, err := maidenhead.Decode(locator)
		if err != nil {
			c.logger.WithFields(logrus.Fields{
				"callsign": row[colCall],
				"locator":  locator,
			}).Debug("Skipping spot with malformed locator")
			continue
		}

		return telemetry.RawSpot{
			Time:      ts,
			Band:      q.Band,
			Callsign:  row[colCall],
			Locator:   locator,
			Latitude:  lat,
			Longitude: lon,
			Power:     strings.TrimPrefix(row[colPower], "+"),
			RawTime:   ts.Format(TimeLayout),
		}, nil
	}

	return telemetry.RawSpot{}, ErrNoSpots
}

// Receivers returns the reporters of both observations of a pair
func (c *NetClient) Receivers(ctx context.Context, pair telemetry.PacketPair, band string) ([]Receiver, error) {
	var all []Receiver
	for _, spot := range []telemetry.RawSpot{pair.Identity, pair.Telemetry} {
		if err := checkToken("callsign", spot.Callsign, "/"); err != nil {
			return nil, fmt.Errorf("invalid receiver query: %w", err)
		}

		rows, err := c.fetch(ctx, spot.Callsign)
		if err != nil {
			return nil, err
		}

		for _, row := range rows {
			ts, ok := rowTime(row)
			if !ok || !ts.Equal(spot.Time) || len(row) <= colRGrid {
				continue
			}

			mhz, err := strconv.ParseFloat(row[colMHz], 64)
			if err != nil {
				continue
			}
			snr, err := strconv.Atoi(row[colSNR])
			if err != nil {
				continue
			}

			r := Receiver{
				Callsign:  row[colReporter],
				Frequency: mhz * 1e6,
				SNR:       snr,
				Time:      ts,
				Locator:   row[colRGrid],
			}
			if len(row) > colVersion {
				r.Version = row[colVersion]
			}
			all = append(all, r)
		}
	}
	return all, nil
}

func (c *NetClient) fetch(ctx context.Context, callsign string) ([][]string, error) {
	params := url.Values{
		"mode":         {"html"},
		"band":         {"all"},
		"limit":        {"200"},
		"findcall":     {callsign},
		"findreporter": {""},
		"sort":         {"date"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	c.logger.WithField("callsign", callsign).Debug("Querying wsprnet.org")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query wsprnet.org: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("wsprnet.org returned %s", resp.Status)
	}

	return ParseSpotTable(resp.Body)
}

// ParseSpotTable extracts the cell text of every row of the spot table of a
// wsprnet.org database page. A page without the table yields no rows.
func ParseSpotTable(r io.Reader) ([][]string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse wsprnet.org page: %w", err)
	}

	var tables []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Table {
			tables = append(tables, n)
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)

	if len(tables) <= spotTableIndex {
		return nil, nil
	}

	var rows [][]string
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Tr {
			var cells []string
			for cell := n.FirstChild; cell != nil; cell = cell.NextSibling {
				if cell.Type == html.ElementNode && cell.DataAtom == atom.Td {
					cells = append(cells, strings.TrimSpace(textContent(cell)))
				}
			}
			if len(cells) > 0 {
				rows = append(rows, cells)
			}
			return
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			collect(child)
		}
	}
	collect(tables[spotTableIndex])

	return rows, nil
}

func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return strings.ReplaceAll(n.Data, "\u00a0", " ")
	}
	var sb strings.Builder
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		sb.WriteString(textContent(child))
	}
	return sb.String()
}

func rowTime(row []string) (time.Time, bool) {
	if len(row) == 0 || len(row[colDate]) < 3 {
		return time.Time{}, false
	}
	ts, err := time.ParseInLocation(NetTimeLayout, row[colDate], time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

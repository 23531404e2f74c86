package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wsprbridge/internal/config"
	"wsprbridge/internal/relay"
	"wsprbridge/internal/sondehub"
	"wsprbridge/internal/telemetry"
	"wsprbridge/internal/wspr"
)

var passTime = time.Date(2024, 5, 12, 10, 10, 0, 0, time.UTC)

type fakeSource struct {
	spots     map[string]telemetry.RawSpot
	receivers []wspr.Receiver
	err       error
	queries   []wspr.SpotQuery
}

func spotKey(q wspr.SpotQuery) string {
	sel := q.Callsign
	if q.Pattern != "" {
		sel = q.Pattern
	}
	return fmt.Sprintf("%s/%d", sel, q.Slot)
}

func (s *fakeSource) LatestSpot(ctx context.Context, q wspr.SpotQuery) (telemetry.RawSpot, error) {
	s.queries = append(s.queries, q)
	if s.err != nil {
		return telemetry.RawSpot{}, s.err
	}
	spot, ok := s.spots[spotKey(q)]
	if !ok {
		return telemetry.RawSpot{}, wspr.ErrNoSpots
	}
	return spot, nil
}

func (s *fakeSource) Receivers(ctx context.Context, pair telemetry.PacketPair, band string) ([]wspr.Receiver, error) {
	return s.receivers, nil
}

type fakeUploader struct {
	payloads []sondehub.TelemetryPayload
	err      error
}

func (u *fakeUploader) UploadTelemetry(ctx context.Context, payloads []sondehub.TelemetryPayload) error {
	u.payloads = append(u.payloads, payloads...)
	return u.err
}

type fakeSender struct {
	packets []string
}

func (s *fakeSender) Send(ctx context.Context, packets ...string) error {
	s.packets = append(s.packets, packets...)
	return nil
}

type fakePublisher struct {
	records []relay.Record
	closed  bool
}

func (p *fakePublisher) Publish(rec relay.Record) error {
	p.records = append(p.records, rec)
	return nil
}

func (p *fakePublisher) Close() { p.closed = true }

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func traquitoSettings() *config.Config {
	return &config.Config{
		Source: config.SourceWSPRLive,
		Upload: config.Upload{SondeHub: true, APRS: true, MQTT: true},
		Balloons: []config.Balloon{
			{
				Payload:     "TEST-1",
				Active:      true,
				Type:        "Jetpack",
				Band:        "14",
				Slots:       config.SlotList{{Callsign: 0, Telemetry: 2}, {Callsign: 2, Telemetry: 4}},
				Traquito:    config.Traquito{FlightID1: "A", FlightID3: "3"},
				HamCallsign: "N0CALL",
				Device:      "traquito",
			},
			{
				Payload: "PARKED",
				Active:  false,
			},
		},
	}
}

func traquitoSource() *fakeSource {
	return &fakeSource{
		spots: map[string]telemetry.RawSpot{
			"N0CALL/2": {
				Time: time.Date(2024, 5, 12, 10, 2, 0, 0, time.UTC), Band: "14",
				Callsign: "N0CALL", Locator: "JO91", Power: "13",
			},
			"A_3%/4": {
				Time: time.Date(2024, 5, 12, 10, 4, 0, 0, time.UTC), Band: "14",
				Callsign: "AB3CDE", Locator: "AB12", Power: "30",
			},
		},
		receivers: []wspr.Receiver{
			{Callsign: "G4XYZ", Frequency: 14097048, SNR: -12, Locator: "IO91"},
			{Callsign: "DL1ABC", Frequency: 14097050, SNR: -21, Locator: "JO62qm"},
			{Callsign: "DL1ABC", Frequency: 14097051, SNR: -19, Locator: "JO62qm"},
		},
	}
}

// TestApplication_RunTraquito tests a full pass from spots to every output
func TestApplication_RunTraquito(t *testing.T) {
	source := traquitoSource()
	uploader := &fakeUploader{}
	sender := &fakeSender{}
	publisher := &fakePublisher{}
	metricsFile := filepath.Join(t.TempDir(), "wsprbridge.prom")

	app := NewApplication(Config{MetricsFile: metricsFile}, traquitoSettings(), newTestLogger(),
		WithSource(source), WithUploader(uploader), WithSender(sender),
		WithPublisher(publisher), WithClock(func() time.Time { return passTime }))

	results, err := app.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	require.NoError(t, r.Err)
	require.NotNil(t, r.Telemetry)
	assert.Equal(t, "JO91ho", r.Telemetry.Grid)
	assert.Equal(t, 7880, r.Telemetry.Altitude)
	assert.Len(t, r.Receivers, 2)

	// First slot pair had no spots, second one decoded
	require.Len(t, source.queries, 3)
	assert.Equal(t, wspr.SpotQuery{Callsign: "N0CALL", Slot: 0, Band: "14", Since: passTime.Add(-DefaultLookback)}, source.queries[0])
	assert.Equal(t, "A_3%", source.queries[2].Pattern)

	assert.Len(t, uploader.payloads, 2)
	assert.Equal(t, "G4XYZ", uploader.payloads[0].UploaderCallsign)
	assert.Equal(t, "Jetpack", uploader.payloads[0].Type)

	expected := "TEST-1>APLRG1,TCPIP,qAC:!5136.25N/01837.50EO000/060/A=025853/traquito via DL1ABC,G4XYZ"
	assert.Equal(t, []string{expected}, sender.packets)
	assert.Equal(t, expected, r.Packet)

	require.Len(t, publisher.records, 1)
	assert.Equal(t, []string{"DL1ABC", "G4XYZ"}, publisher.records[0].Receivers)

	data, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `wsprbridge_frames_decoded_total{balloon="TEST-1"} 1`)
	assert.Contains(t, string(data), `wsprbridge_uploads_total{balloon="TEST-1",result="ok",target="sondehub"} 2`)

	require.NoError(t, app.Close())
	assert.True(t, publisher.closed)
}

// TestApplication_RunRejected tests that a stale pair produces no uploads
func TestApplication_RunRejected(t *testing.T) {
	source := &fakeSource{
		spots: map[string]telemetry.RawSpot{
			"K1ABC/0": {Time: time.Date(2024, 5, 12, 10, 0, 0, 0, time.UTC), Callsign: "K1ABC", Locator: "FN42", Power: "10"},
			"K1ABC/2": {Time: time.Date(2024, 5, 12, 10, 6, 0, 0, time.UTC), Callsign: "K1ABC", Locator: "FN42li", Power: "20"},
		},
	}
	settings := &config.Config{
		Upload: config.Upload{SondeHub: true},
		Balloons: []config.Balloon{{
			Payload: "ZT-1", Active: true, Type: "ZachTek", HamCallsign: "K1ABC",
			Slots: config.SlotList{{Callsign: 0, Telemetry: 2}},
		}},
	}
	uploader := &fakeUploader{}
	metricsFile := filepath.Join(t.TempDir(), "wsprbridge.prom")

	app := NewApplication(Config{MetricsFile: metricsFile}, settings, newTestLogger(),
		WithSource(source), WithUploader(uploader), WithClock(func() time.Time { return passTime }))

	results, err := app.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Nil(t, results[0].Telemetry)

	var stale *telemetry.StalePairError
	assert.True(t, errors.As(results[0].Err, &stale))
	assert.Empty(t, uploader.payloads)

	data, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `wsprbridge_frames_rejected_total{balloon="ZT-1",reason="stale"} 1`)
}

// TestApplication_RunZachTek tests the plain callsign path with APRS only
func TestApplication_RunZachTek(t *testing.T) {
	source := &fakeSource{
		spots: map[string]telemetry.RawSpot{
			"K1ABC/0": {Time: time.Date(2024, 5, 12, 10, 0, 0, 0, time.UTC), Callsign: "K1ABC", Locator: "FN42", Power: "10"},
			"K1ABC/2": {
				Time: time.Date(2024, 5, 12, 10, 2, 0, 0, time.UTC), Callsign: "K1ABC", Locator: "FN42li", Power: "3",
				Latitude: 42.5, Longitude: -71,
			},
		},
	}
	settings := &config.Config{
		Upload: config.Upload{APRS: true},
		Balloons: []config.Balloon{{
			Payload: "ZT-1", Active: true, Type: "ZachTek", HamCallsign: "k1abc", Device: "zachtek",
			Slots: config.SlotList{{Callsign: 0, Telemetry: 2}},
		}},
	}
	sender := &fakeSender{}

	app := NewApplication(Config{}, settings, newTestLogger(),
		WithSource(source), WithSender(sender), WithClock(func() time.Time { return passTime }))

	results, err := app.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, results[0].Telemetry)
	assert.Equal(t, 3060, results[0].Telemetry.Altitude)

	// Both queries use the exact callsign
	require.Len(t, source.queries, 2)
	assert.Equal(t, "K1ABC", source.queries[1].Callsign)
	assert.Empty(t, source.queries[1].Pattern)

	assert.Equal(t, []string{"ZT-1>APLRG1,TCPIP,qAC:!4230.00N/07100.00WO000/000/A=010039/zachtek"}, sender.packets)
}

// TestApplication_DryRun tests that a dry run decodes without uploading
func TestApplication_DryRun(t *testing.T) {
	uploader := &fakeUploader{}
	sender := &fakeSender{}
	publisher := &fakePublisher{}

	app := NewApplication(Config{DryRun: true}, traquitoSettings(), newTestLogger(),
		WithSource(traquitoSource()), WithUploader(uploader), WithSender(sender),
		WithPublisher(publisher), WithClock(func() time.Time { return passTime }))

	results, err := app.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, results[0].Telemetry)
	assert.Empty(t, results[0].Packet)
	assert.Empty(t, uploader.payloads)
	assert.Empty(t, sender.packets)
	assert.Empty(t, publisher.records)
}

// TestApplication_UploadFailureContinues tests that one failed output does
// not stop the others
func TestApplication_UploadFailureContinues(t *testing.T) {
	uploader := &fakeUploader{err: errors.New("sondehub down")}
	sender := &fakeSender{}

	app := NewApplication(Config{}, traquitoSettings(), newTestLogger(),
		WithSource(traquitoSource()), WithUploader(uploader), WithSender(sender),
		WithPublisher(&fakePublisher{}), WithClock(func() time.Time { return passTime }))

	results, err := app.Run(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, results[0].Telemetry)
	assert.Len(t, uploader.payloads, 2)
	assert.Len(t, sender.packets, 1)
}

// TestApplication_SourceError tests that query failures are reported per balloon
func TestApplication_SourceError(t *testing.T) {
	source := &fakeSource{err: errors.New("connection refused")}

	app := NewApplication(Config{}, traquitoSettings(), newTestLogger(),
		WithSource(source), WithClock(func() time.Time { return passTime }))

	results, err := app.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Nil(t, results[0].Telemetry)
	assert.EqualError(t, results[0].Err, "connection refused")
	assert.Len(t, source.queries, 2)
}

// TestApplication_Cancelled tests that a cancelled context stops the pass
func TestApplication_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	app := NewApplication(Config{}, traquitoSettings(), newTestLogger(), WithSource(traquitoSource()))
	_, err := app.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

// TestNewApplication_DefaultCollaborators tests collaborator selection
func TestNewApplication_DefaultCollaborators(t *testing.T) {
	tests := []struct {
		name       string
		cfgSource  string
		fileSource string
		expected   wspr.Source
	}{
		{"Default source", "", config.SourceWSPRLive, &wspr.LiveClient{}},
		{"Settings file source", "", config.SourceWSPRNet, &wspr.NetClient{}},
		{"Flag overrides settings", config.SourceWSPRLive, config.SourceWSPRNet, &wspr.LiveClient{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := &config.Config{Source: tt.fileSource}
			app := NewApplication(Config{Source: tt.cfgSource}, settings, newTestLogger())

			assert.IsType(t, tt.expected, app.source)
			assert.Nil(t, app.uploader)
			assert.Nil(t, app.sender)
			assert.Nil(t, app.publisher)
			assert.Equal(t, DefaultLookback, app.config.Lookback)
		})
	}

	settings := &config.Config{
		Upload: config.Upload{SondeHub: true, APRS: true, MQTT: true},
		APRS:   config.APRS{Callsign: "N0CALL", Server: "localhost:14580"},
		MQTT:   config.MQTT{Broker: "tcp://localhost:1883", ClientID: "test", TopicPrefix: "wsprbridge"},
	}
	app := NewApplication(Config{}, settings, newTestLogger())
	assert.NotNil(t, app.uploader)
	assert.NotNil(t, app.sender)
	assert.NotNil(t, app.publisher)
}

// TestBootstrap tests loading settings and logging from configuration
func TestBootstrap(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("source: wsprnet\nballoons: []\n"), 0644))

	app, err := Bootstrap(Config{ConfigPath: path, LogDir: filepath.Join(dir, "logs"), LogRotateUTC: true})
	require.NoError(t, err)
	assert.IsType(t, &wspr.NetClient{}, app.source)
	assert.NotNil(t, app.rotator)
	require.NoError(t, app.Close())

	_, err = Bootstrap(Config{ConfigPath: filepath.Join(dir, "missing.yaml")})
	assert.Error(t, err)
}

// TestShowVersion tests the version banner
func TestShowVersion(t *testing.T) {
	var buf bytes.Buffer
	ShowVersion(&buf)
	assert.Contains(t, buf.String(), "Version: "+Version)
	assert.Contains(t, buf.String(), "Git Commit: ")
}

func TestAPRSComment(t *testing.T) {
	rx := []wspr.Receiver{{Callsign: "DL1ABC"}, {Callsign: "G4XYZ"}}
	assert.Equal(t, "traquito", aprsComment("traquito", nil))
	assert.Equal(t, "traquito via DL1ABC,G4XYZ", aprsComment("traquito", rx))
	assert.Equal(t, "via DL1ABC,G4XYZ", aprsComment("", rx))
}

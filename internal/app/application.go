package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"wsprbridge/internal/aprs"
	"wsprbridge/internal/config"
	"wsprbridge/internal/logging"
	"wsprbridge/internal/metrics"
	"wsprbridge/internal/relay"
	"wsprbridge/internal/sondehub"
	"wsprbridge/internal/telemetry"
	"wsprbridge/internal/wspr"
)

// Upload targets as counted in metrics
const (
	TargetSondeHub = "sondehub"
	TargetAPRS     = "aprs"
	TargetMQTT     = "mqtt"
)

// TelemetryUploader stores telemetry records
type TelemetryUploader interface {
	UploadTelemetry(ctx context.Context, payloads []sondehub.TelemetryPayload) error
}

// PacketSender relays APRS packets
type PacketSender interface {
	Send(ctx context.Context, packets ...string) error
}

// RecordPublisher republishes decoded records
type RecordPublisher interface {
	Publish(rec relay.Record) error
	Close()
}

// Result is the outcome of one balloon in a pass
type Result struct {
	Payload   string
	Telemetry *telemetry.Telemetry
	Receivers []wspr.Receiver
	Packet    string // APRS packet, empty when not sent
	Err       error  // last failure when no telemetry was produced
}

// Application represents the main application
type Application struct {
	config   Config
	settings *config.Config
	logger   *logrus.Logger
	rotator  *logging.Rotator
	metrics  *metrics.Metrics

	source    wspr.Source
	uploader  TelemetryUploader
	sender    PacketSender
	publisher RecordPublisher

	now func() time.Time
}

// Option overrides a collaborator
type Option func(*Application)

// WithSource sets the spot source
func WithSource(s wspr.Source) Option {
	return func(a *Application) { a.source = s }
}

// WithUploader sets the telemetry uploader
func WithUploader(u TelemetryUploader) Option {
	return func(a *Application) { a.uploader = u }
}

// WithSender sets the APRS packet sender
func WithSender(s PacketSender) Option {
	return func(a *Application) { a.sender = s }
}

// WithPublisher sets the MQTT publisher
func WithPublisher(p RecordPublisher) Option {
	return func(a *Application) { a.publisher = p }
}

// WithClock sets the time source
func WithClock(now func() time.Time) Option {
	return func(a *Application) { a.now = now }
}

// WithRotator hands the log file rotator to the application to close
func WithRotator(r *logging.Rotator) Option {
	return func(a *Application) { a.rotator = r }
}

// NewApplication creates a new application instance. Collaborators not set
// through options are built from the settings.
func NewApplication(cfg Config, settings *config.Config, logger *logrus.Logger, opts ...Option) *Application {
	if cfg.Lookback <= 0 {
		cfg.Lookback = DefaultLookback
	}

	app := &Application{
		config:   cfg,
		settings: settings,
		logger:   logger,
		metrics:  metrics.New(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(app)
	}

	if app.source == nil {
		source := settings.Source
		if cfg.Source != "" {
			source = cfg.Source
		}
		if strings.EqualFold(source, config.SourceWSPRNet) {
			app.source = wspr.NewNetClient("", logger)
		} else {
			app.source = wspr.NewLiveClient("", logger)
		}
	}
	if app.uploader == nil && settings.Upload.SondeHub {
		app.uploader = sondehub.NewClient("", logger)
	}
	if app.sender == nil && settings.Upload.APRS {
		app.sender = aprs.NewClient(settings.APRS.Server, settings.APRS.Callsign, settings.Passcode(),
			SoftwareName, Version, logger)
	}
	if app.publisher == nil && settings.Upload.MQTT {
		app.publisher = relay.NewPublisher(relay.Options{
			Broker:      settings.MQTT.Broker,
			ClientID:    settings.MQTT.ClientID,
			Username:    settings.MQTT.Username,
			Password:    settings.MQTT.Password,
			TopicPrefix: settings.MQTT.TopicPrefix,
		}, logger)
	}

	return app
}

// Bootstrap sets up logging, loads the settings file and creates the
// application
func Bootstrap(cfg Config) (*Application, error) {
	maxDays := cfg.MaxLogDays
	if maxDays == 0 {
		maxDays = DefaultMaxLogDays
	}

	logger, rotator, err := logging.New(logging.Options{
		Verbose: cfg.Verbose,
		LogDir:  cfg.LogDir,
		UTC:     cfg.LogRotateUTC,
		MaxDays: maxDays,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}

	settings, err := config.Load(cfg.ConfigPath)
	if err != nil {
		if rotator != nil {
			rotator.Close()
		}
		return nil, err
	}

	return NewApplication(cfg, settings, logger, WithRotator(rotator)), nil
}

// Metrics returns the application's collectors
func (app *Application) Metrics() *metrics.Metrics {
	return app.metrics
}

// Run makes one pass over the active balloons
func (app *Application) Run(ctx context.Context) ([]Result, error) {
	log := app.logger.WithField("run_id", uuid.NewString())

	active := app.settings.ActiveBalloons()
	log.WithFields(logrus.Fields{
		"version":  Version,
		"balloons": len(app.settings.Balloons),
		"active":   len(active),
		"dry_run":  app.config.DryRun,
		"lookback": app.config.Lookback,
	}).Info("Starting pass")

	var results []Result
	for _, b := range active {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		results = append(results, app.processBalloon(ctx, log, b))
	}

	decoded := 0
	for _, r := range results {
		if r.Telemetry != nil {
			decoded++
		}
	}
	log.WithFields(logrus.Fields{
		"checked": len(results),
		"decoded": decoded,
	}).Info("Pass complete")

	if app.config.MetricsFile != "" {
		if err := app.metrics.WriteTextfile(app.config.MetricsFile); err != nil {
			return results, err
		}
	}
	return results, nil
}

// processBalloon tries each slot pair in turn and stops at the first one
// that yields accepted telemetry
func (app *Application) processBalloon(ctx context.Context, log *logrus.Entry, b config.Balloon) Result {
	result := Result{Payload: b.Payload}
	blog := log.WithFields(logrus.Fields{
		"payload": b.Payload,
		"type":    b.Type,
		"band":    bandLabel(b.BandFilter()),
	})
	blog.Info("Checking balloon")

	tx, err := b.Transmitter(app.settings.GlobalCalibration())
	if err != nil {
		blog.WithError(err).Error("Invalid balloon configuration")
		result.Err = err
		return result
	}

	since := app.now().Add(-app.config.Lookback)
	for _, slots := range b.Slots {
		plog := blog.WithFields(logrus.Fields{
			"callsign_slot":  slots.Callsign,
			"telemetry_slot": slots.Telemetry,
		})

		pair, err := app.fetchPair(ctx, tx, b.BandFilter(), slots, since)
		if errors.Is(err, wspr.ErrNoSpots) {
			plog.WithField("lookback", app.config.Lookback).Info("No data in lookback window")
			result.Err = err
			continue
		}
		if err != nil {
			plog.WithError(err).Error("Failed to query spots")
			result.Err = err
			continue
		}

		tel, err := telemetry.Process(tx, pair.Identity, pair.Telemetry)
		if err != nil {
			reason := app.metrics.Failed(b.Payload, err)
			if telemetry.IsRejection(err) {
				plog.WithError(err).WithField("reason", reason).Info("Frame pair rejected")
			} else {
				plog.WithError(err).Error("Failed to decode telemetry")
			}
			result.Err = err
			continue
		}
		app.metrics.Decoded(b.Payload, tel)

		plog.WithFields(logrus.Fields{
			"grid":     tel.Grid,
			"lat":      fmt.Sprintf("%.5f", tel.Latitude),
			"lon":      fmt.Sprintf("%.5f", tel.Longitude),
			"altitude": humanize.Comma(int64(tel.Altitude)) + " m",
			"age":      humanize.RelTime(tel.Time, app.now(), "ago", "from now"),
		}).Info("Decoded telemetry")

		receivers, err := app.source.Receivers(ctx, pair, b.BandFilter())
		if err != nil {
			plog.WithError(err).Warn("Failed to fetch receivers")
		}
		receivers = wspr.Unique(receivers)
		plog.WithField("receivers", callsigns(receivers)).Info("Got receivers")

		result.Telemetry = &tel
		result.Receivers = receivers
		result.Err = nil
		result.Packet = app.publish(ctx, plog, b, tel, receivers)
		return result
	}

	return result
}

// fetchPair queries the identity and telemetry observations of one slot pair
func (app *Application) fetchPair(ctx context.Context, tx telemetry.Transmitter, band string, slots config.Slots, since time.Time) (telemetry.PacketPair, error) {
	identity, err := app.source.LatestSpot(ctx, wspr.SpotQuery{
		Callsign: tx.Callsign,
		Slot:     slots.Callsign,
		Band:     band,
		Since:    since,
	})
	if err != nil {
		return telemetry.PacketPair{}, err
	}

	q := wspr.SpotQuery{Slot: slots.Telemetry, Band: band, Since: since}
	if tx.Format == telemetry.FormatTraquito {
		q.Pattern = telemetry.FlightIDPattern(tx.FlightID1, tx.FlightID3)
	} else {
		q.Callsign = tx.Callsign
	}
	tel, err := app.source.LatestSpot(ctx, q)
	if err != nil {
		return telemetry.PacketPair{}, err
	}

	return telemetry.PacketPair{Identity: identity, Telemetry: tel}, nil
}

// publish hands an accepted record to every enabled output and returns the
// APRS packet when one was sent
func (app *Application) publish(ctx context.Context, log *logrus.Entry, b config.Balloon, tel telemetry.Telemetry, receivers []wspr.Receiver) string {
	nearest := wspr.Nearest(receivers, tel.Latitude, tel.Longitude, MaxPathReceivers)
	packet := aprs.PositionPacket(b.Payload, tel, aprsComment(b.Device, nearest))

	if app.config.DryRun {
		log.WithField("packet", packet).Info("Dry run, skipping uploads")
		return ""
	}

	if app.uploader != nil {
		station := sondehub.Station{
			Payload: b.Payload,
			Type:    b.Type,
			Comment: b.Comment,
			Detail:  b.Detail,
			Device:  b.Device,
		}
		sw := sondehub.Software{Name: SoftwareName, Version: Version}

		for _, rx := range receivers {
			payload := sondehub.NewTelemetryPayload(tel, station, rx, sw)
			err := app.uploader.UploadTelemetry(ctx, []sondehub.TelemetryPayload{payload})
			app.metrics.Upload(b.Payload, TargetSondeHub, err)
			if err != nil {
				log.WithError(err).WithField("receiver", rx.Callsign).Error("Sending telemetry to SondeHub failed")
			}
		}
	}

	sent := ""
	if app.sender != nil {
		err := app.sender.Send(ctx, packet)
		app.metrics.Upload(b.Payload, TargetAPRS, err)
		if err != nil {
			log.WithError(err).Error("Sending packet to APRS-IS failed")
		} else {
			sent = packet
		}
	}

	if app.publisher != nil {
		err := app.publisher.Publish(relay.NewRecord(b.Payload, tel, callsigns(nearest)))
		app.metrics.Upload(b.Payload, TargetMQTT, err)
		if err != nil {
			log.WithError(err).Error("Publishing to MQTT failed")
		}
	}

	return sent
}

// Close releases the publisher and the log file
func (app *Application) Close() error {
	if app.publisher != nil {
		app.publisher.Close()
	}
	if app.rotator != nil {
		return app.rotator.Close()
	}
	return nil
}

func aprsComment(device string, receivers []wspr.Receiver) string {
	if len(receivers) == 0 {
		return device
	}
	return strings.TrimSpace(device + " via " + strings.Join(callsigns(receivers), ","))
}

func callsigns(receivers []wspr.Receiver) []string {
	calls := make([]string, len(receivers))
	for i, r := range receivers {
		calls[i] = r.Callsign
	}
	return calls
}

func bandLabel(band string) string {
	if band == "" {
		return "any band"
	}
	return band
}

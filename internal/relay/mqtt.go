// Package relay republishes accepted telemetry on an MQTT broker.
package relay

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"wsprbridge/internal/telemetry"
)

// DefaultTimeout bounds connect and publish
const DefaultTimeout = 10 * time.Second

// Options configures the broker connection
type Options struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
}

// Record is the JSON document published per decoded frame
type Record struct {
	Payload     string    `json:"payload"`
	Format      string    `json:"format"`
	Time        time.Time `json:"time"`
	Grid        string    `json:"grid,omitempty"`
	Latitude    float64   `json:"lat"`
	Longitude   float64   `json:"lon"`
	Altitude    int       `json:"alt"`
	Temperature *int      `json:"temp,omitempty"`
	Voltage     *float64  `json:"batt,omitempty"`
	Speed       *float64  `json:"vel_h,omitempty"`
	GPSLocked   *bool     `json:"gps,omitempty"`
	Satellites  *bool     `json:"sats,omitempty"`
	Receivers   []string  `json:"receivers,omitempty"`
}

// NewRecord builds the published document for one frame
func NewRecord(payload string, tel telemetry.Telemetry, receivers []string) Record {
	return Record{
		Payload:     payload,
		Format:      string(tel.Format),
		Time:        tel.Time.UTC(),
		Grid:        tel.Grid,
		Latitude:    tel.Latitude,
		Longitude:   tel.Longitude,
		Altitude:    tel.Altitude,
		Temperature: tel.Temperature,
		Voltage:     tel.Voltage,
		Speed:       tel.Speed,
		GPSLocked:   tel.GPSLocked,
		Satellites:  tel.Satellites,
		Receivers:   receivers,
	}
}

// Topic returns the retained topic of a payload
func Topic(prefix, payload string) string {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case '/', '+', '#':
			return '_'
		}
		return r
	}, payload)
	return strings.TrimRight(prefix, "/") + "/" + clean + "/telemetry"
}

// Publisher sends records to one broker
type Publisher struct {
	client  mqtt.Client
	prefix  string
	timeout time.Duration
	logger  *logrus.Logger
}

// NewPublisher creates a new publisher for a broker
func NewPublisher(opts Options, logger *logrus.Logger) *Publisher {
	co := mqtt.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetConnectTimeout(DefaultTimeout).
		SetAutoReconnect(false)
	if opts.Username != "" {
		co.SetUsername(opts.Username)
		co.SetPassword(opts.Password)
	}
	return NewPublisherWithClient(mqtt.NewClient(co), opts.TopicPrefix, logger)
}

// NewPublisherWithClient wraps an existing client
func NewPublisherWithClient(client mqtt.Client, prefix string, logger *logrus.Logger) *Publisher {
	return &Publisher{
		client:  client,
		prefix:  prefix,
		timeout: DefaultTimeout,
		logger:  logger,
	}
}

// Publish sends one retained record at QoS 0, connecting first if needed
func (p *Publisher) Publish(rec Record) error {
	if !p.client.IsConnected() {
		if err := wait(p.client.Connect(), p.timeout); err != nil {
			return fmt.Errorf("failed to connect to MQTT broker: %w", err)
		}
	}

	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}

	topic := Topic(p.prefix, rec.Payload)
	if err := wait(p.client.Publish(topic, 0, true, body), p.timeout); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}

	p.logger.WithFields(logrus.Fields{
		"topic": topic,
		"bytes": len(body),
	}).Debug("Published telemetry to MQTT")
	return nil
}

// Close disconnects from the broker
func (p *Publisher) Close() {
	if p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}

func wait(token mqtt.Token, timeout time.Duration) error {
	if !token.WaitTimeout(timeout) {
		return errors.New("timed out")
	}
	return token.Error()
}

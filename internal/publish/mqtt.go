package publish

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// MQTTConfig configures the MQTT backend.
type MQTTConfig struct {
	Broker      string `mapstructure:"broker"` // e.g. tcp://broker.local:1883
	ClientID    string `mapstructure:"client_id"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	TopicPrefix string `mapstructure:"topic_prefix"`
	QoS         byte   `mapstructure:"qos"`
}

// Validate checks broker, topic prefix and QoS.
func (c MQTTConfig) Validate() error {
	if c.Broker == "" {
		return errors.New("publish.mqtt.broker is required for mqtt backend")
	}
	if c.TopicPrefix == "" {
		return errors.New("publish.mqtt.topic_prefix is required for mqtt backend")
	}
	if c.QoS > 2 {
		return fmt.Errorf("publish.mqtt.qos must be 0, 1 or 2, got %d", c.QoS)
	}
	return nil
}

// Compile-time interface guard.
var _ Publisher = (*MQTTPublisher)(nil)

// MQTTPublisher publishes file contents as a retained message on
// <topic_prefix>/<file name>. The broker keeps only the latest retained
// message per topic, which gives replace-by-name semantics. The broker
// offers no existence check, so SkipExisting behaves like Replace.
type MQTTPublisher struct {
	cfg       MQTTConfig
	logger    *zap.Logger
	newClient func(*mqtt.ClientOptions) mqtt.Client
}

// NewMQTTPublisher returns an MQTT-backed Publisher. A connection is made
// per publish; the agent publishes at most once per poll interval.
func NewMQTTPublisher(cfg MQTTConfig, logger *zap.Logger) *MQTTPublisher {
	return &MQTTPublisher{cfg: cfg, logger: logger, newClient: mqtt.NewClient}
}

func (p *MQTTPublisher) Name() string { return BackendMQTT }

// Topic returns the topic localPath is published to.
func (p *MQTTPublisher) Topic(localPath string) string {
	return p.cfg.TopicPrefix + "/" + filepath.Base(localPath)
}

func (p *MQTTPublisher) Publish(ctx context.Context, localPath string, _ Mode) error {
	payload, err := os.ReadFile(localPath)
	if err != nil {
		return wrapErr(BackendMQTT, localPath, err)
	}

	opts := mqtt.NewClientOptions().
		AddBroker(p.cfg.Broker).
		SetClientID(p.cfg.ClientID).
		SetUsername(p.cfg.Username).
		SetPassword(p.cfg.Password).
		SetAutoReconnect(false).
		SetConnectRetry(false)
	if dl, ok := ctx.Deadline(); ok {
		opts.SetConnectTimeout(time.Until(dl))
	}

	client := p.newClient(opts)
	if err := waitToken(ctx, client.Connect()); err != nil {
		return wrapErr(BackendMQTT, localPath, fmt.Errorf("connect %s: %w", p.cfg.Broker, err))
	}
	defer client.Disconnect(250)

	topic := p.Topic(localPath)
	if err := waitToken(ctx, client.Publish(topic, p.cfg.QoS, true, payload)); err != nil {
		return wrapErr(BackendMQTT, localPath, fmt.Errorf("publish to %s: %w", topic, err))
	}

	p.logger.Info("file published",
		zap.String("path", localPath),
		zap.String("topic", topic),
		zap.Int("bytes", len(payload)),
	)
	return nil
}

func waitToken(ctx context.Context, tok mqtt.Token) error {
	select {
	case <-tok.Done():
		return tok.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

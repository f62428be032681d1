// Package telemetry publishes session events to an MQTT broker so test
// infrastructure can follow a run without polling the status API.
package telemetry

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/energizer-project/gpgnet-mock/internal/config"
	"github.com/energizer-project/gpgnet-mock/internal/events"
	"github.com/energizer-project/gpgnet-mock/internal/util"
)

// Version is reported in every message.
const Version = "1.0.0"

// Message is the JSON body published for each event.
type Message struct {
	SessionID string                 `json:"session_id"`
	Event     string                 `json:"event"`
	Timestamp string                 `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata"`
	Payload   interface{}            `json:"payload"`
}

// MQTTPublisher forwards every bus event to <prefix>/<session_id>/<event>.
type MQTTPublisher struct {
	cfg      config.MQTTConfig
	eventBus *events.EventBus
	client   mqtt.Client
	metadata map[string]interface{}
}

// NewMQTTPublisher configures the client; Start connects it.
func NewMQTTPublisher(cfg *config.Config, eventBus *events.EventBus) (*MQTTPublisher, error) {
	mqttCfg := cfg.MQTT

	if !mqttCfg.Enabled {
		return nil, fmt.Errorf("MQTT is disabled")
	}

	sysInfo := util.GetSystemInfo()
	p := &MQTTPublisher{
		cfg:      mqttCfg,
		eventBus: eventBus,
		metadata: map[string]interface{}{
			"hostname":    sysInfo.Hostname,
			"os":          sysInfo.OS,
			"app_version": Version,
		},
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(BrokerURL(mqttCfg))

	if mqttCfg.ClientID != "" {
		opts.SetClientID(mqttCfg.ClientID)
	} else {
		opts.SetClientID(fmt.Sprintf("gpgnet-mock-%s", eventBus.SessionID()))
	}

	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetCleanSession(true)

	if mqttCfg.UseTLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	opts.SetOnConnectHandler(func(client mqtt.Client) {
		log.Info().Msg("MQTT connected")
	})

	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		log.Warn().Err(err).Msg("MQTT connection lost")
	})

	p.client = mqtt.NewClient(opts)
	return p, nil
}

// BrokerURL builds the broker address from cfg.
func BrokerURL(cfg config.MQTTConfig) string {
	scheme := "tcp"
	if cfg.UseTLS {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, cfg.BrokerURL, cfg.Port)
}

// Topic returns the topic an event of type t is published on.
func Topic(prefix, sessionID string, t events.EventType) string {
	return fmt.Sprintf("%s/%s/%s", prefix, sessionID, t)
}

const mqttHandlerName = "mqtt.publish"

// Start connects to the broker, subscribes to the bus and blocks until ctx
// is cancelled.
func (p *MQTTPublisher) Start(ctx context.Context) error {
	log.Info().
		Str("broker", p.cfg.BrokerURL).
		Int("port", p.cfg.Port).
		Msg("connecting to MQTT broker")

	token := p.client.Connect()
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("MQTT connect failed: %w", token.Error())
	}

	p.eventBus.Subscribe(events.AllEvents, mqttHandlerName, p.onEvent)

	<-ctx.Done()

	p.eventBus.Unsubscribe(events.AllEvents, mqttHandlerName)
	p.client.Disconnect(5000)
	log.Info().Msg("MQTT disconnected")
	return nil
}

func (p *MQTTPublisher) onEvent(ctx context.Context, event events.Event) error {
	p.publish(Topic(p.cfg.TopicPrefix, event.SessionID, event.Type), p.buildMessage(event))
	return nil
}

// publish sends a JSON message to an MQTT topic.
func (p *MQTTPublisher) publish(topic string, msg Message) {
	if !p.client.IsConnected() {
		return
	}

	data, err := json.Marshal(msg)
	if err != nil {
		log.Warn().Err(err).Str("topic", topic).Msg("failed to marshal MQTT message")
		return
	}

	token := p.client.Publish(topic, 1, false, data) // QoS 1
	go func() {
		token.Wait()
		if token.Error() != nil {
			log.Warn().Err(token.Error()).Str("topic", topic).Msg("MQTT publish failed")
		}
	}()
}

func (p *MQTTPublisher) buildMessage(event events.Event) Message {
	return Message{
		SessionID: event.SessionID,
		Event:     string(event.Type),
		Timestamp: event.Time.UTC().Format(time.RFC3339Nano),
		Metadata:  p.metadata,
		Payload:   event.Payload,
	}
}

// Package telemetry publishes client activity over MQTT so external
// dashboards (stream overlays, home automation) can follow the session.
package telemetry

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/overture-project/overture/internal/config"
	"github.com/overture-project/overture/internal/events"
	"github.com/overture-project/overture/internal/util"
)

// MQTT topic prefixes
const (
	TopicClientAdmin  = "client/admin"
	TopicClientStatus = "client/status"
	TopicClientChat   = "client/chat"
	TopicClientMulti  = "client/multiplayer"
	TopicClientToast  = "client/toast"
)

// MQTTHandler manages the MQTT connection and publishes session events
// to the broker, with TLS/mTLS support.
type MQTTHandler struct {
	mu sync.Mutex

	cfg      *config.Config
	eventBus *events.EventBus
	client   mqtt.Client

	// Metadata included in every message
	metadata map[string]interface{}
}

// NewMQTTHandler creates a new MQTT telemetry handler.
func NewMQTTHandler(cfg *config.Config, eventBus *events.EventBus) (*MQTTHandler, error) {
	mqttCfg := cfg.GetApplicationData().MQTT

	if !mqttCfg.Enabled {
		return nil, fmt.Errorf("MQTT is disabled")
	}

	// Build system metadata
	sysInfo := util.GetSystemInfo()
	metadata := map[string]interface{}{
		"hostname":    sysInfo.Hostname,
		"platform":    sysInfo.Platform,
		"endpoint":    cfg.GetServerData().Endpoint,
		"app_version": "1.0.0",
	}

	handler := &MQTTHandler{
		cfg:      cfg,
		eventBus: eventBus,
		metadata: metadata,
	}

	// Configure MQTT client
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("ssl://%s:%d", mqttCfg.BrokerURL, mqttCfg.Port))

	if mqttCfg.ClientID != "" {
		opts.SetClientID(mqttCfg.ClientID)
	} else {
		opts.SetClientID(fmt.Sprintf("overture-%s", sysInfo.Hostname))
	}

	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetCleanSession(false)

	// TLS configuration
	if mqttCfg.UseTLS {
		tlsConfig := &tls.Config{
			MinVersion: tls.VersionTLS12,
		}

		// mTLS: load client certificate
		if mqttCfg.CertFile != "" && mqttCfg.KeyFile != "" {
			cert, err := tls.LoadX509KeyPair(mqttCfg.CertFile, mqttCfg.KeyFile)
			if err != nil {
				return nil, fmt.Errorf("failed to load MQTT TLS certificate: %w", err)
			}
			tlsConfig.Certificates = []tls.Certificate{cert}
		}

		opts.SetTLSConfig(tlsConfig)
	}

	// Connection callbacks
	opts.SetOnConnectHandler(func(client mqtt.Client) {
		log.Info().Msg("MQTT connected")
	})

	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		log.Warn().Err(err).Msg("MQTT connection lost")
	})

	handler.client = mqtt.NewClient(opts)

	return handler, nil
}

// Start connects to the MQTT broker and subscribes to events.
func (h *MQTTHandler) Start(ctx context.Context) error {
	log.Info().
		Str("broker", h.cfg.GetApplicationData().MQTT.BrokerURL).
		Int("port", h.cfg.GetApplicationData().MQTT.Port).
		Msg("connecting to MQTT broker")

	token := h.client.Connect()
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("MQTT connect failed: %w", token.Error())
	}

	// Subscribe to EventBus events for publishing
	h.subscribeEvents()

	// Block until context cancelled
	<-ctx.Done()

	h.PublishShutdown()
	h.client.Disconnect(5000)
	log.Info().Msg("MQTT disconnected")

	return nil
}

// subscribeEvents registers event handlers for MQTT publishing.
func (h *MQTTHandler) subscribeEvents() {
	h.eventBus.Subscribe(events.EventStatusChanged, "mqtt.statusChanged", h.onStatusChanged)
	h.eventBus.Subscribe(events.EventChatMessage, "mqtt.chatMessage", h.onChatMessage)
	h.eventBus.Subscribe(events.EventRoomJoined, "mqtt.roomJoined", h.roomEvent("room_joined"))
	h.eventBus.Subscribe(events.EventRoomClosed, "mqtt.roomClosed", h.roomEvent("room_closed"))
	h.eventBus.Subscribe(events.EventMatchStarted, "mqtt.matchStarted", h.roomEvent("match_started"))
	h.eventBus.Subscribe(events.EventMatchFinished, "mqtt.matchFinished", h.roomEvent("match_finished"))
	h.eventBus.Subscribe(events.EventToast, "mqtt.toast", h.onToast)
	h.eventBus.Subscribe(events.EventNotifyMQTT, "mqtt.notify", h.onNotify)
}

// publish sends a JSON message to an MQTT topic.
func (h *MQTTHandler) publish(topic string, payload interface{}) {
	if !h.client.IsConnected() {
		return
	}

	// Merge metadata with payload
	msg := h.buildMessage(payload)

	data, err := json.Marshal(msg)
	if err != nil {
		log.Warn().Err(err).Str("topic", topic).Msg("failed to marshal MQTT message")
		return
	}

	token := h.client.Publish(topic, 1, false, data) // QoS 1
	go func() {
		token.Wait()
		if token.Error() != nil {
			log.Warn().Err(token.Error()).Str("topic", topic).Msg("MQTT publish failed")
		}
	}()
}

// buildMessage combines metadata with the event payload.
func (h *MQTTHandler) buildMessage(payload interface{}) map[string]interface{} {
	msg := make(map[string]interface{})

	// Add metadata
	for k, v := range h.metadata {
		msg[k] = v
	}

	// Add payload
	msg["payload"] = payload
	msg["timestamp"] = time.Now().UTC().Format(time.RFC3339)

	return msg
}

// Event handlers

func (h *MQTTHandler) onStatusChanged(ctx context.Context, event events.Event) error {
	h.publish(TopicClientStatus, event.Payload)
	return nil
}

func (h *MQTTHandler) onChatMessage(ctx context.Context, event events.Event) error {
	h.publish(TopicClientChat, event.Payload)
	return nil
}

// roomEvent builds a handler that tags the multiplayer payload with the
// lifecycle step it came from.
func (h *MQTTHandler) roomEvent(name string) events.HandlerFunc {
	return func(ctx context.Context, event events.Event) error {
		h.publish(TopicClientMulti, map[string]interface{}{
			"event":   name,
			"payload": event.Payload,
		})
		return nil
	}
}

func (h *MQTTHandler) onToast(ctx context.Context, event events.Event) error {
	h.publish(TopicClientToast, event.Payload)
	return nil
}

func (h *MQTTHandler) onNotify(ctx context.Context, event events.Event) error {
	h.publish(TopicClientStatus, event.Payload)
	return nil
}

// PublishShutdown sends a shutdown message to the MQTT broker.
func (h *MQTTHandler) PublishShutdown() {
	h.publish(TopicClientAdmin, map[string]interface{}{
		"event":     "shutdown",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

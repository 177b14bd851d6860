package mqtt

import (
	"fmt"
	"time"

	"automator/internal/config"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// Topics of the host device link
func StateTopic(deviceID string) string { return fmt.Sprintf("devices/%s/state", deviceID) }
func EventsTopic(deviceID string) string { return fmt.Sprintf("devices/%s/events", deviceID) }
func CommandsTopic(deviceID string) string { return fmt.Sprintf("devices/%s/commands", deviceID) }
func LocationTopic(deviceID string) string { return fmt.Sprintf("devices/%s/location", deviceID) }
func GeofenceTopic(deviceID string) string { return fmt.Sprintf("devices/%s/geofences", deviceID) }

// ResultTopic is where the host answers a request published on topic
func ResultTopic(topic string) string { return topic + "/result" }

// NewMQTTClient creates a connected MQTT client that reconnects on its own
func NewMQTTClient(cfg config.MQTTConfig, logger *zap.Logger) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetMaxReconnectInterval(30 * time.Second).
		SetOrderMatters(false)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("MQTT connection lost", zap.Error(err))
	})
	opts.SetOnConnectHandler(func(mqtt.Client) {
		logger.Info("MQTT connected", zap.String("broker", cfg.Broker))
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("connect to %s: timed out", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, err
	}
	return client, nil
}

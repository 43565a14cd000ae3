// Package canmqtt implements a client for CAN-over-MQTT bridge feeds.
//
// Gateways publish one JSON document per bus frame on a topic tree such as
// can/{site}/{interface}. The client connects to the broker, subscribes to
// the configured filter, and converts messages into the canonical frame
// format. Reconnection is handled by the MQTT library; the pipeline only
// sees ordered frames on a buffered channel.
package canmqtt

import (
	"encoding/hex"
	"fmt"
	"log"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	jsoniter "github.com/json-iterator/go"

	"canmon/frame"
)

// jsoniter keeps the per-message decode cost down on busy buses.
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Client represents a CAN bridge MQTT client.
type Client struct {
	broker    string
	port      int
	topic     string
	client    mqtt.Client
	frameChan chan frame.Frame
	shutdown  chan struct{}
}

// BridgeMessage is the JSON frame document published by the gateway.
// Instance is a pointer so an absent field is distinguishable from a real
// zero.
type BridgeMessage struct {
	Timestamp float64 `json:"t"`    // Unix seconds with fractional part
	Class     string  `json:"cls"`  // Message class (PGN as text)
	Instance  *int    `json:"inst"` // Device instance, optional
	Source    string  `json:"src"`  // Source address
	DataHex   string  `json:"data"` // Payload as hex
	IsError   bool    `json:"err"`  // Error frame flag
}

// NewClient creates a CAN bridge MQTT client.
func NewClient(broker string, port int, topic string) *Client {
	return &Client{
		broker:    broker,
		port:      port,
		topic:     topic,
		frameChan: make(chan frame.Frame, 1000),
		shutdown:  make(chan struct{}),
	}
}

// Connect establishes the connection to the MQTT broker.
func (c *Client) Connect() error {
	opts := mqtt.NewClientOptions()
	brokerURL := fmt.Sprintf("tcp://%s:%d", c.broker, c.port)
	opts.AddBroker(brokerURL)
	opts.SetClientID(fmt.Sprintf("canmon-%d", time.Now().Unix()))
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(1 * time.Minute)
	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(c.onConnectionLost)

	c.client = mqtt.NewClient(opts)

	log.Printf("CAN bridge: connecting to MQTT broker at %s...", brokerURL)
	token := c.client.Connect()
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to CAN bridge broker: %w", token.Error())
	}
	log.Println("CAN bridge: connected to MQTT broker")
	return nil
}

func (c *Client) onConnect(client mqtt.Client) {
	log.Printf("CAN bridge: connected, subscribing to topic: %s", c.topic)
	token := client.Subscribe(c.topic, 0, c.messageHandler)
	if token.Wait() && token.Error() != nil {
		log.Printf("CAN bridge: failed to subscribe: %v", token.Error())
		return
	}
	log.Println("CAN bridge: subscribed, receiving frames...")
}

func (c *Client) onConnectionLost(client mqtt.Client, err error) {
	log.Printf("CAN bridge: connection lost: %v", err)
	log.Println("CAN bridge: will attempt to reconnect...")
}

func (c *Client) messageHandler(client mqtt.Client, msg mqtt.Message) {
	f, err := ConvertMessage(msg.Payload())
	if err != nil {
		log.Printf("CAN bridge: failed to parse message: %v", err)
		return
	}
	select {
	case c.frameChan <- f:
	default:
		log.Println("CAN bridge: frame channel full, dropping frame")
	}
}

// ConvertMessage decodes one bridge JSON document into a canonical frame.
func ConvertMessage(payload []byte) (frame.Frame, error) {
	var msg BridgeMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return frame.Frame{}, fmt.Errorf("bad bridge document: %w", err)
	}
	if strings.TrimSpace(msg.Class) == "" || strings.TrimSpace(msg.Source) == "" {
		return frame.Frame{}, fmt.Errorf("bridge document missing class or source")
	}

	data, err := hex.DecodeString(msg.DataHex)
	if err != nil {
		return frame.Frame{}, fmt.Errorf("bad payload hex %q: %w", msg.DataHex, err)
	}

	f := frame.New(msg.Class, msg.Source, data)
	if msg.Instance != nil {
		f = f.WithInstance(*msg.Instance)
	}
	f.IsError = msg.IsError
	if msg.Timestamp > 0 {
		sec := int64(msg.Timestamp)
		nsec := int64((msg.Timestamp - float64(sec)) * 1e9)
		f.Time = time.Unix(sec, nsec).UTC()
	}
	return f, nil
}

// Frames returns the channel of converted frames.
func (c *Client) Frames() <-chan frame.Frame {
	return c.frameChan
}

// IsConnected reports whether the MQTT session is up.
func (c *Client) IsConnected() bool {
	return c.client != nil && c.client.IsConnected()
}

// Stop closes the bridge connection.
func (c *Client) Stop() {
	log.Println("Stopping CAN bridge client...")
	if c.client != nil && c.client.IsConnected() {
		c.client.Unsubscribe(c.topic)
		c.client.Disconnect(250)
	}
	close(c.shutdown)
	log.Println("CAN bridge client stopped")
}

package connectivity

import (
	"context"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTClient is the subset of the paho client the source needs.
type MQTTClient interface {
	Connect() mqtt.Token
	Disconnect(quiesce uint)
}

// MQTTConfig points the source at a broker.
type MQTTConfig struct {
	Broker   string
	Port     int
	ClientID string
	Username string
	Password string

	// Retry is the delay before redialing after a failed connect.
	Retry time.Duration
}

// MQTTSource treats a live broker session as proof of reachability: connect
// means online, connection lost means offline. Paho reconnects on its own.
type MQTTSource struct {
	cfg     MQTTConfig
	factory func(*mqtt.ClientOptions) MQTTClient
}

// NewMQTTSource creates a source backed by the real paho client.
func NewMQTTSource(cfg MQTTConfig) *MQTTSource {
	return NewMQTTSourceWithClient(cfg, func(opts *mqtt.ClientOptions) MQTTClient {
		return mqtt.NewClient(opts)
	})
}

// NewMQTTSourceWithClient uses a custom client factory (for testing).
func NewMQTTSourceWithClient(cfg MQTTConfig, factory func(*mqtt.ClientOptions) MQTTClient) *MQTTSource {
	if cfg.ClientID == "" {
		cfg.ClientID = fmt.Sprintf("reviewsync-%d", time.Now().UnixNano())
	}
	if cfg.Port == 0 {
		cfg.Port = 1883
	}
	if cfg.Retry <= 0 {
		cfg.Retry = 10 * time.Second
	}
	return &MQTTSource{cfg: cfg, factory: factory}
}

func (s *MQTTSource) Name() string { return "mqtt" }

// Run connects and blocks until ctx is done. A connect that fails outright
// reports offline and is retried after cfg.Retry.
func (s *MQTTSource) Run(ctx context.Context, emit func(Event)) error {
	opts := s.options(emit)
	for {
		client := s.factory(opts)
		token := client.Connect()
		select {
		case <-token.Done():
		case <-ctx.Done():
			client.Disconnect(250)
			return nil
		}

		if err := token.Error(); err != nil {
			emit(Event{Signal: SignalOffline})
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(s.cfg.Retry):
			}
			continue
		}

		<-ctx.Done()
		client.Disconnect(250)
		return nil
	}
}

func (s *MQTTSource) options(emit func(Event)) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", s.cfg.Broker, s.cfg.Port))
	opts.SetClientID(s.cfg.ClientID)
	if s.cfg.Username != "" {
		opts.SetUsername(s.cfg.Username)
		opts.SetPassword(s.cfg.Password)
	}
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(s.cfg.Retry)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.SetOnConnectHandler(func(mqtt.Client) {
		emit(Event{Signal: SignalOnline})
	})
	opts.SetConnectionLostHandler(func(mqtt.Client, error) {
		emit(Event{Signal: SignalOffline})
	})
	return opts
}

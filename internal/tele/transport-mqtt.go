package tele

import (
	"context"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/espmesh/meshctl/helpers"
	"github.com/espmesh/meshctl/log2"
	"github.com/juju/errors"
)

const (
	connectOnline  = 0x01
	connectOffline = 0x00
)

type transportMqtt struct {
	log            *log2.Log
	m              mqtt.Client
	mopt           *mqtt.ClientOptions
	networkTimeout time.Duration

	topicConnect  string
	topicSnapshot string
	topicError    string
}

func (self *transportMqtt) Init(ctx context.Context, log *log2.Log, teleConfig Config, willPayload []byte) error {
	self.log = log
	mqtt.ERROR = log
	mqtt.CRITICAL = log
	mqtt.WARN = log
	if teleConfig.LogDebug {
		mqtt.DEBUG = log
	}
	if teleConfig.MqttBroker == "" {
		return errors.NotValidf("tele.mqtt_broker empty")
	}

	clientId := teleConfig.clientId()
	self.topicConnect = teleConfig.topic("c")
	self.topicSnapshot = teleConfig.topic("stats")
	self.topicError = teleConfig.topic("error")
	self.networkTimeout = helpers.IntSecondDefault(teleConfig.NetworkTimeoutSec, DefaultNetworkTimeout)
	keepAlive := helpers.IntSecondDefault(teleConfig.KeepaliveSec, 60*time.Second)

	self.mopt = mqtt.NewClientOptions().
		AddBroker(teleConfig.MqttBroker).
		SetBinaryWill(self.topicConnect, willPayload, 1, true).
		SetCleanSession(true).
		SetClientID(clientId).
		SetKeepAlive(keepAlive).
		SetPingTimeout(self.networkTimeout).
		SetConnectTimeout(self.networkTimeout).
		SetWriteTimeout(self.networkTimeout).
		SetOrderMatters(false).
		SetStore(mqtt.NewMemoryStore()).
		SetAutoReconnect(true).
		SetOnConnectHandler(self.onConnectHandler).
		SetConnectionLostHandler(self.connectLostHandler)
	if teleConfig.MqttPassword != "" {
		self.mopt.SetCredentialsProvider(func() (string, string) {
			return clientId, teleConfig.MqttPassword
		})
	}
	self.m = mqtt.NewClient(self.mopt)
	self.connect()
	return nil
}

func (self *transportMqtt) Close() {
	if self.m == nil {
		return
	}
	if self.m.IsConnected() {
		t := self.m.Publish(self.topicConnect, 1, true, []byte{connectOffline})
		t.WaitTimeout(self.networkTimeout)
	}
	self.m.Disconnect(uint(self.networkTimeout / time.Millisecond))
	self.log.Infof("mqtt closed")
}

func (self *transportMqtt) SendSnapshot(payload []byte) bool {
	return self.publish(self.topicSnapshot, 0, payload)
}

func (self *transportMqtt) SendError(payload []byte) bool {
	return self.publish(self.topicError, 1, payload)
}

func (self *transportMqtt) publish(topic string, qos byte, payload []byte) bool {
	if !self.m.IsConnected() && !self.connect() {
		return false
	}
	t := self.m.Publish(topic, qos, false, payload)
	if !t.WaitTimeout(self.networkTimeout) {
		self.log.Errorf("mqtt publish topic=%s timeout", topic)
		return false
	}
	if err := t.Error(); err != nil {
		self.log.Errorf("mqtt publish topic=%s err=%v", topic, err)
		return false
	}
	self.log.Debugf("mqtt published topic=%s len=%d", topic, len(payload))
	return true
}

// Initial connect is not retried by paho, only lost connection is.
func (self *transportMqtt) connect() bool {
	t := self.m.Connect()
	if !t.WaitTimeout(self.networkTimeout) {
		self.log.Errorf("mqtt connect broker=%v timeout", self.mopt.Servers)
		return false
	}
	if err := t.Error(); err != nil {
		self.log.Errorf("mqtt connect err=%v", err)
		return false
	}
	return true
}

func (self *transportMqtt) connectLostHandler(c mqtt.Client, err error) {
	self.log.Infof("mqtt disconnect err=%v", err)
}

func (self *transportMqtt) onConnectHandler(c mqtt.Client) {
	self.log.Infof("mqtt connect")
	c.Publish(self.topicConnect, 1, true, []byte{connectOnline})
}

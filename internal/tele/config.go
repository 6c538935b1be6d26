package tele

type Config struct { //nolint:maligned
	Enabled           bool   `hcl:"enable"`
	LogDebug          bool   `hcl:"log_debug"`
	MqttBroker        string `hcl:"mqtt_broker"`
	MqttPassword      string `hcl:"mqtt_password"` // secret
	ClientId          string `hcl:"client_id"`
	TopicPrefix       string `hcl:"topic_prefix"`
	KeepaliveSec      int    `hcl:"keepalive_sec"`
	NetworkTimeoutSec int    `hcl:"network_timeout_sec"`
}

const defaultClientId = "meshctl"

func (c *Config) clientId() string {
	if c.ClientId == "" {
		return defaultClientId
	}
	return c.ClientId
}

// topic joins prefix, client id and suffix: "mesh/meshctl/stats"
func (c *Config) topic(suffix string) string {
	t := c.clientId() + "/" + suffix
	if c.TopicPrefix != "" {
		t = c.TopicPrefix + "/" + t
	}
	return t
}

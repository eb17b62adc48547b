package main

import "testing"

func baseConfig() *appConfig {
	return &appConfig{
		mode:           "serve",
		socketPath:     "/tmp/spa-control.sock",
		sockType:       "seqpacket",
		logFormat:      "text",
		logLevel:       "info",
		registryBuffer: 8,
		registryPolicy: "drop",
		maxClients:     0,
		maxFrameBytes:  4096,
	}
}

func TestConfigValidate_OK(t *testing.T) {
	if err := baseConfig().validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
}

func TestConfigValidate_Errors(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*appConfig)
	}{
		{"badMode", func(c *appConfig) { c.mode = "x" }},
		{"badFormat", func(c *appConfig) { c.logFormat = "xx" }},
		{"badLevel", func(c *appConfig) { c.logLevel = "nope" }},
		{"badSockType", func(c *appConfig) { c.sockType = "x" }},
		{"badPolicy", func(c *appConfig) { c.registryPolicy = "x" }},
		{"badRegistryBuf", func(c *appConfig) { c.registryBuffer = 0 }},
		{"badMaxClients", func(c *appConfig) { c.maxClients = -1 }},
		{"badMaxFrameBytes", func(c *appConfig) { c.maxFrameBytes = 0 }},
		{"emptySocket", func(c *appConfig) { c.socketPath = "" }},
	}
	for _, tc := range tests {
		c := baseConfig()
		tc.mod(c)
		if err := c.validate(); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}

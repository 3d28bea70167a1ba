// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pktconn

import (
	"github.com/elastic/go-ucfg"
	"github.com/elastic/go-ucfg/yaml"
)

// Config wraps a ucfg.Config for YAML-driven Listener setup (SPEC_FULL.md
// §4.6 and §6). It is grounded directly on the teacher-adjacent packetd
// confengine package, trimmed to the Has/Unpack/UnpackChild surface this
// library actually needs.
type Config struct {
	conf *ucfg.Config
}

// LoadConfigPath parses the YAML file at path into a Config.
func LoadConfigPath(path string) (*Config, error) {
	conf, err := yaml.NewConfigWithFile(path, ucfg.PathSep("."))
	if err != nil {
		return nil, err
	}
	return &Config{conf: conf}, nil
}

// LoadConfigBytes parses YAML content directly into a Config.
func LoadConfigBytes(b []byte) (*Config, error) {
	conf, err := yaml.NewConfig(b)
	if err != nil {
		return nil, err
	}
	return &Config{conf: conf}, nil
}

// Has reports whether path addresses a present field.
func (c *Config) Has(path string) bool {
	ok, err := c.conf.Has(path, -1, ucfg.PathSep("."))
	return err == nil && ok
}

// Unpack decodes the whole config into to, a pointer to a struct tagged
// with `config:"..."` fields.
func (c *Config) Unpack(to any) error {
	return c.conf.Unpack(to)
}

// UnpackChild decodes the sub-tree at path into to.
func (c *Config) UnpackChild(path string, to any) error {
	child, err := c.conf.Child(path, -1, ucfg.PathSep("."))
	if err != nil {
		return err
	}
	return child.Unpack(to)
}

// ListenerConfig is the YAML shape a Listener is configured from via
// NewListenerFromConfig, matching SPEC_FULL.md §6's example:
//
//	pktconn:
//	  listen:
//	    address: ":9443"
//	  packet:
//	    maxClientPacketSize: 33554432
//	  pool:
//	    capacity: 100
//	  framing:
//	    maxReceiveFragmentsPerPacket: 100
//	  logging:
//	    level: info
//	    stdout: true
type ListenerConfig struct {
	Listen struct {
		Address string `config:"address"`
	} `config:"listen"`
	Packet struct {
		MaxClientPacketSize int `config:"maxClientPacketSize"`
	} `config:"packet"`
	Pool struct {
		Capacity int `config:"capacity"`
	} `config:"pool"`
	Framing struct {
		MaxReceiveFragmentsPerPacket int `config:"maxReceiveFragmentsPerPacket"`
		RingBufferSize               int `config:"ringBufferSize"`
	} `config:"framing"`
	Logging LogOptions `config:"logging"`
}

// LoadListenerConfig reads the "pktconn" sub-tree of c into a
// ListenerConfig.
func (c *Config) LoadListenerConfig() (*ListenerConfig, error) {
	var lc ListenerConfig
	if err := c.UnpackChild("pktconn", &lc); err != nil {
		return nil, err
	}
	return &lc, nil
}

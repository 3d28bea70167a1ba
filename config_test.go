// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pktconn_test

import (
	"testing"

	"code.hybscloud.com/pktconn"
)

const sampleYAML = `
pktconn:
  listen:
    address: ":9443"
  packet:
    maxClientPacketSize: 33554432
  pool:
    capacity: 64
  framing:
    maxReceiveFragmentsPerPacket: 50
    ringBufferSize: 131072
  logging:
    level: warn
    stdout: true
`

func TestLoadListenerConfigFromYAML(t *testing.T) {
	cfg, err := pktconn.LoadConfigBytes([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("LoadConfigBytes: %v", err)
	}

	lc, err := cfg.LoadListenerConfig()
	if err != nil {
		t.Fatalf("LoadListenerConfig: %v", err)
	}

	if lc.Listen.Address != ":9443" {
		t.Errorf("Listen.Address = %q, want %q", lc.Listen.Address, ":9443")
	}
	if lc.Packet.MaxClientPacketSize != 33554432 {
		t.Errorf("Packet.MaxClientPacketSize = %d, want 33554432", lc.Packet.MaxClientPacketSize)
	}
	if lc.Pool.Capacity != 64 {
		t.Errorf("Pool.Capacity = %d, want 64", lc.Pool.Capacity)
	}
	if lc.Framing.MaxReceiveFragmentsPerPacket != 50 {
		t.Errorf("Framing.MaxReceiveFragmentsPerPacket = %d, want 50", lc.Framing.MaxReceiveFragmentsPerPacket)
	}
	if lc.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want %q", lc.Logging.Level, "warn")
	}

	l, addr := pktconn.NewListenerFromConfig(lc)
	if l == nil {
		t.Fatal("NewListenerFromConfig returned a nil Listener")
	}
	if addr != ":9443" {
		t.Errorf("address = %q, want %q", addr, ":9443")
	}
}

func TestConfigHasReportsPresence(t *testing.T) {
	cfg, err := pktconn.LoadConfigBytes([]byte(sampleYAML))
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Has("pktconn.listen.address") {
		t.Error("Has(\"pktconn.listen.address\") = false, want true")
	}
	if cfg.Has("pktconn.nonexistent") {
		t.Error("Has(\"pktconn.nonexistent\") = true, want false")
	}
}

package commands

import (
	"testing"
)

func TestApply(t *testing.T) {
	c := NewDefaultCLIConfig()
	c.Axolotl.BindAddr = "0.0.0.0:42069"
	c.LocalPort = 4202
	c.RemoteIP = "localhost"
	c.RemotePort = 4201

	if err := c.apply(); err != nil {
		t.Fatalf("err: %v", err)
	}

	if c.Axolotl.BindAddr != "0.0.0.0:4202" {
		t.Fatalf("listen address should be 0.0.0.0:4202, not %s", c.Axolotl.BindAddr)
	}
	if c.Axolotl.RemoteAddr != "localhost:4201" {
		t.Fatalf("remote address should be localhost:4201, not %s", c.Axolotl.RemoteAddr)
	}
}

func TestApplyNeedsRemotePort(t *testing.T) {
	c := NewDefaultCLIConfig()
	c.RemoteIP = "localhost"

	if err := c.apply(); err != nil {
		t.Fatalf("err: %v", err)
	}
	if c.Axolotl.RemoteAddr != "" {
		t.Fatalf("remote address needs both ip and port, got %s", c.Axolotl.RemoteAddr)
	}
}

func TestApplyBadListen(t *testing.T) {
	c := NewDefaultCLIConfig()
	c.Axolotl.BindAddr = "nocolon"
	c.LocalPort = 1

	if err := c.apply(); err == nil {
		t.Fatalf("apply should fail on a listen address without port")
	}
}

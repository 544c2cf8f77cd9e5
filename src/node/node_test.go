package node

import (
	"context"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/mosaicnetworks/axolotl/src/common"
	anet "github.com/mosaicnetworks/axolotl/src/net"
)

type message struct {
	sender string
	text   string
}

func newTestNode(t *testing.T, key string, received chan message) *Node {
	conf := anet.NewDefaultConfig(key, "127.0.0.1:0")
	conf.Logger = common.NewTestEntry(t, common.TestLogLevel)

	n, err := NewNode(conf, func(sender, text string) {
		received <- message{sender, text}
	})
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if err := n.Start(); err != nil {
		t.Fatalf("err: %v", err)
	}
	return n
}

func port(t *testing.T, n *Node) uint16 {
	_, p, err := net.SplitHostPort(n.Endpoint().LocalAddr())
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	i, _ := strconv.Atoi(p)
	return uint16(i)
}

func expect(t *testing.T, ch chan message, sender, text string) {
	select {
	case m := <-ch:
		if m.sender != sender || m.text != text {
			t.Fatalf("expected %s: %q, got %s: %q", sender, text, m.sender, m.text)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timeout waiting for %q", text)
	}
}

func waitConnected(t *testing.T, n *Node, key string) {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if d, ok := n.Endpoint().Routes().Get(key); ok && d.Connected() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %s", key)
}

func TestChat(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	aRecv := make(chan message, 10)
	a := newTestNode(t, "asdf", aRecv)
	defer a.Shutdown()

	bRecv := make(chan message, 10)
	b := newTestNode(t, "qwer", bRecv)
	defer b.Shutdown()

	go a.Run(ctx)
	go b.Run(ctx)

	b.Connect("127.0.0.1", port(t, a))
	waitConnected(t, b, "asdf")

	input := strings.NewReader("hello asdf\n@asdf direct\n\n")
	if err := b.Chat(ctx, input, "asdf"); err != nil {
		t.Fatalf("err: %v", err)
	}

	expect(t, aRecv, "qwer", "hello asdf")
	expect(t, aRecv, "qwer", "direct")

	// asdf knows qwer from the inbound connection
	if err := a.SendText("qwer", "hi back"); err != nil {
		t.Fatalf("err: %v", err)
	}
	expect(t, bRecv, "asdf", "hi back")
}

func TestSendTextTruncates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	aRecv := make(chan message, 1)
	a := newTestNode(t, "asdf", aRecv)
	defer a.Shutdown()
	go a.Run(ctx)

	b := newTestNode(t, "qwer", make(chan message, 1))
	defer b.Shutdown()

	b.Endpoint().Routes().Set("asdf", "127.0.0.1", port(t, a), anet.NoConn)

	long := strings.Repeat("x", 300)
	b.SendText("asdf", long)

	expect(t, aRecv, "qwer", long[:255])

	accented := strings.Repeat("x", 254) + "é"
	b.SendText("asdf", accented)

	expect(t, aRecv, "qwer", accented[:254])
}

func TestSendTextNoRecipient(t *testing.T) {
	a := newTestNode(t, "asdf", make(chan message, 1))
	defer a.Shutdown()

	if err := a.SendText("", "nobody"); err != ErrNoRecipient {
		t.Fatalf("SendText without key should return ErrNoRecipient, got %v", err)
	}
}

func TestRunStops(t *testing.T) {
	a := newTestNode(t, "asdf", make(chan message, 1))
	defer a.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("Run should return context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not return")
	}
}

func TestRunStopsOnShutdown(t *testing.T) {
	a := newTestNode(t, "asdf", make(chan message, 1))

	done := make(chan error, 1)
	go func() { done <- a.Run(context.Background()) }()

	a.Shutdown()

	select {
	case err := <-done:
		if err != anet.ErrTransportShutdown {
			t.Fatalf("Run should return ErrTransportShutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not return")
	}
}

func TestParseLine(t *testing.T) {
	cases := []struct {
		line, key, text string
	}{
		{"hello", "dflt", "hello"},
		{"@abcd hello there", "abcd", "hello there"},
		{"@ nothing", "dflt", "@ nothing"},
		{"@abcd", "dflt", "@abcd"},
	}

	for _, c := range cases {
		key, text := parseLine(c.line, "dflt")
		if key != c.key || text != c.text {
			t.Fatalf("parseLine(%q) should be (%q, %q), got (%q, %q)", c.line, c.key, c.text, key, text)
		}
	}
}

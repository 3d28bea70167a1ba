// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pktconn_test

import (
	"context"
	"net"
	"testing"
	"time"

	"code.hybscloud.com/pktconn"
)

func freeLoopbackAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

func TestListenerAcceptsAndDeliversMessage(t *testing.T) {
	l := pktconn.NewListener()

	received := make(chan string, 1)
	l.OnNewConnection(func(c *pktconn.Connection) {
		c.OnMessage(func(msg *pktconn.Message, action *pktconn.Action) {
			payload, _ := msg.ReadBytes(msg.PayloadLen())
			received <- string(payload)
		})
		go c.ReadLoop()
	})

	addr := freeLoopbackAddr(t)
	go func() { _ = l.Listen("tcp", addr) }()
	defer l.Stop()
	time.Sleep(50 * time.Millisecond)

	client, err := pktconn.Dial(context.Background(), "tcp", addr)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	if _, err := client.SendType(1, func(m *pktconn.Message) error {
		return m.WriteBytes([]byte("from client"))
	}); err != nil {
		t.Fatalf("SendType: %v", err)
	}

	select {
	case got := <-received:
		if got != "from client" {
			t.Fatalf("server received %q, want %q", got, "from client")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for server to receive the message")
	}
}

func TestListenerAlreadyListening(t *testing.T) {
	l := pktconn.NewListener()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	started := make(chan struct{})
	go func() {
		close(started)
		_ = l.Listen("tcp", addr)
	}()
	<-started
	time.Sleep(50 * time.Millisecond)

	if err := l.Listen("tcp", addr); err != pktconn.ErrAlreadyListening {
		t.Fatalf("second Listen() = %v, want ErrAlreadyListening", err)
	}
	_ = l.Stop()
}

func TestListenerConnectionFilterRejectsPeer(t *testing.T) {
	l := pktconn.NewListener()
	l.OnConnectionRequest(func(remoteAddr net.Addr) bool { return false })

	newConnCalled := make(chan struct{}, 1)
	l.OnNewConnection(func(c *pktconn.Connection) {
		newConnCalled <- struct{}{}
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	go func() { _ = l.Listen("tcp", addr) }()
	time.Sleep(50 * time.Millisecond)

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	buf := make([]byte, 1)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := conn.Read(buf); err == nil {
		t.Fatal("expected rejected peer's connection to be closed by the listener")
	}

	select {
	case <-newConnCalled:
		t.Fatal("OnNewConnection fired for a peer the filter rejected")
	case <-time.After(100 * time.Millisecond):
	}

	_ = l.Stop()
}

func TestListenerStopEndsAcceptLoop(t *testing.T) {
	l := pktconn.NewListener()
	l.OnNewConnection(func(c *pktconn.Connection) {})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	done := make(chan error, 1)
	go func() { done <- l.Listen("tcp", addr) }()
	time.Sleep(50 * time.Millisecond)

	if err := l.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Listen() returned %v after Stop, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for Listen to return after Stop")
	}
}

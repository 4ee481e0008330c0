package devices

import (
	"net"
	"testing"
	"time"
)

func TestConsoleAttachRoundTrip(t *testing.T) {
	l, err := ListenConsole()
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	dialErr := make(chan error, 1)
	var peer net.Conn
	go func() {
		var err error
		peer, err = net.Dial("tcp", l.Addr().String())
		dialErr <- err
	}()

	c, err := l.Accept()
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if err := <-dialErr; err != nil {
		t.Fatal(err)
	}
	defer peer.Close()

	u := NewUART(0x1000_0000, nil)
	u.AttachConsole(c)

	// Transmit side: bytes written to the THR arrive at the peer on
	// the newline flush.
	for _, b := range []byte("ok\n") {
		u.WriteByte(0, b)
	}
	peer.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 3)
	if _, err := peer.Read(buf); err != nil {
		t.Fatal(err)
	}
	if string(buf) != "ok\n" {
		t.Errorf("console received %q, want %q", buf, "ok\n")
	}

	// Receive side: a byte typed at the peer shows up in the queue.
	if _, err := peer.Write([]byte{'z'}); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for u.ReadByte(5)&0x01 == 0 {
		if time.Now().After(deadline) {
			t.Fatal("receive queue never saw the console byte")
		}
		u.Tick()
		time.Sleep(time.Millisecond)
	}
	if got := u.ReadByte(0); got != 'z' {
		t.Errorf("rx byte = %q, want 'z'", got)
	}
}

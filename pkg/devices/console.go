package devices

import (
	"log"
	"net"
)

// Console is a TCP-attached serial console: a single control
// connection that carries UART transmit traffic out and feeds received
// bytes back in, as an alternative to the host's stdio.
type Console struct {
	conn net.Conn
}

// ConsoleListener waits for a controlling TCP connection to attach to
// the console.
type ConsoleListener struct {
	nl net.Listener
}

// ListenConsole opens a loopback listener for a console to attach to.
func ListenConsole() (*ConsoleListener, error) {
	nl, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	return &ConsoleListener{nl: nl}, nil
}

// Addr returns the address the listener is waiting on.
func (l *ConsoleListener) Addr() net.Addr { return l.nl.Addr() }

// Accept blocks until a console attaches and returns it. The caller
// shall defer calling Close on the returned Console.
func (l *ConsoleListener) Accept() (*Console, error) {
	log.Printf("uart: waiting for console to attach on %s/tcp...", l.nl.Addr())
	conn, err := l.nl.Accept()
	if err != nil {
		return nil, err
	}
	return &Console{conn: conn}, nil
}

// Close stops listening for attachments.
func (l *ConsoleListener) Close() error { return l.nl.Close() }

// Write sends transmit bytes to the attached console.
func (c *Console) Write(p []byte) (int, error) { return c.conn.Write(p) }

// Read receives bytes typed at the attached console.
func (c *Console) Read(p []byte) (int, error) { return c.conn.Read(p) }

// LocalAddr returns the simulator-side address of the connection.
func (c *Console) LocalAddr() net.Addr { return c.conn.LocalAddr() }

// Close closes the underlying connection.
func (c *Console) Close() error { return c.conn.Close() }

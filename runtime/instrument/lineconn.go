package instrument

import (
	"bufio"
	"io"
	"strings"
)

// lineConn frames commands over any byte stream: carriage-return
// terminated writes, reads up to the next CR or LF. The 273A talks this
// framing over both serial and GPIB-serial bridges.
type lineConn struct {
	rw io.ReadWriteCloser
	br *bufio.Reader
}

// NewLineConn wraps a byte stream in CR-terminated line framing.
func NewLineConn(rw io.ReadWriteCloser) Conn {
	return &lineConn{rw: rw, br: bufio.NewReader(rw)}
}

func (c *lineConn) WriteLine(line string) error {
	_, err := io.WriteString(c.rw, line+"\r")
	return err
}

func (c *lineConn) ReadLine() (string, error) {
	var b strings.Builder
	for {
		ch, err := c.br.ReadByte()
		if err != nil {
			if err == io.EOF && b.Len() > 0 {
				return b.String(), nil
			}
			return "", err
		}
		if ch == '\r' || ch == '\n' {
			if b.Len() == 0 {
				// Stray terminator from the previous response.
				continue
			}
			return b.String(), nil
		}
		b.WriteByte(ch)
	}
}

func (c *lineConn) Close() error {
	return c.rw.Close()
}

package instrument

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/voltsweep/voltsweep/core/invariant"
)

// Conn is a line-framed connection to the instrument. The physical bus
// (GPIB, serial, VISA shim) lives behind this interface, along with its
// termination characters and timeout policy.
type Conn interface {
	WriteLine(line string) error
	ReadLine() (string, error)
	Close() error
}

// EGG273 drives an EG&G PAR 273A potentiostat over a line-framed
// connection. Construction switches the instrument to potentiostat mode
// and turns the cell on; Close turns the cell off before releasing the
// connection.
type EGG273 struct {
	conn Conn
}

// Identity holds the instrument's self-reported identification.
type Identity struct {
	ID      string
	Version string
	Error   string
}

// NewEGG273 initializes the instrument: MODE 2 selects potentiostat
// operation, CELL 1 energizes the cell.
func NewEGG273(conn Conn) (*EGG273, error) {
	invariant.NotNil(conn, "conn")

	for _, cmd := range []string{"MODE 2", "CELL 1"} {
		if err := conn.WriteLine(cmd); err != nil {
			return nil, fmt.Errorf("initializing instrument (%s): %w", cmd, err)
		}
	}
	return &EGG273{conn: conn}, nil
}

// Identify queries ID, firmware version and the error register.
func (d *EGG273) Identify() (*Identity, error) {
	id, err := d.query("ID")
	if err != nil {
		return nil, err
	}
	ver, err := d.query("VER")
	if err != nil {
		return nil, err
	}
	errReg, err := d.query("ERR")
	if err != nil {
		return nil, err
	}
	return &Identity{ID: id, Version: ver, Error: errReg}, nil
}

// SetPotential commands the applied potential via SETE, in millivolts.
func (d *EGG273) SetPotential(ctx context.Context, millivolts float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := d.conn.WriteLine(fmt.Sprintf("SETE %s", formatMillivolts(millivolts))); err != nil {
		return fmt.Errorf("set potential %gmV: %w", millivolts, err)
	}
	return nil
}

// ReadCurrent issues READI and decodes the "mantissa,exponent" response
// into amperes (mantissa * 10^exponent).
func (d *EGG273) ReadCurrent(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	resp, err := d.query("READI")
	if err != nil {
		return 0, fmt.Errorf("read current: %w", err)
	}

	parts := strings.Split(resp, ",")
	if len(parts) != 2 {
		return 0, fmt.Errorf("read current: malformed response %q", resp)
	}
	mantissa, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, fmt.Errorf("read current: malformed mantissa in %q", resp)
	}
	exponent, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, fmt.Errorf("read current: malformed exponent in %q", resp)
	}
	return mantissa * math.Pow(10, exponent), nil
}

// Close de-energizes the cell (CELL 0) and releases the connection. The
// cell command is best effort: the connection is closed either way.
func (d *EGG273) Close() error {
	writeErr := d.conn.WriteLine("CELL 0")
	closeErr := d.conn.Close()
	if writeErr != nil {
		return fmt.Errorf("cell off: %w", writeErr)
	}
	return closeErr
}

func (d *EGG273) query(cmd string) (string, error) {
	if err := d.conn.WriteLine(cmd); err != nil {
		return "", fmt.Errorf("%s: %w", cmd, err)
	}
	resp, err := d.conn.ReadLine()
	if err != nil {
		return "", fmt.Errorf("%s: %w", cmd, err)
	}
	return strings.TrimSpace(resp), nil
}

func formatMillivolts(mv float64) string {
	return strconv.FormatFloat(mv, 'f', -1, 64)
}

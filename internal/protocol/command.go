package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrIncomplete reports that the buffer ends before the command does.
	// Nothing is consumed; the caller retries once more bytes arrive.
	ErrIncomplete = errors.New("incomplete command")

	// ErrProtocol reports a framing violation (oversized name, string or
	// parameter count). The connection that produced it must be closed.
	ErrProtocol = errors.New("gpgnet protocol violation")
)

// ParamKind discriminates the two GPGNet value types.
type ParamKind uint8

const (
	KindInt ParamKind = iota
	KindString
)

func (k ParamKind) String() string {
	if k == KindInt {
		return "int"
	}
	return "string"
}

// Param is one positional command argument.
type Param struct {
	Kind ParamKind
	Int  uint32
	Str  string
}

// IntParam returns an integer parameter.
func IntParam(v uint32) Param {
	return Param{Kind: KindInt, Int: v}
}

// StringParam returns a string parameter.
func StringParam(s string) Param {
	return Param{Kind: KindString, Str: s}
}

func (p Param) String() string {
	if p.Kind == KindInt {
		return fmt.Sprintf("%d", p.Int)
	}
	return fmt.Sprintf("%q", p.Str)
}

// Command is a decoded GPGNet message.
type Command struct {
	Name   string
	Params []Param
}

// NewCommand builds a command from positional parameters.
func NewCommand(name string, params ...Param) Command {
	return Command{Name: name, Params: params}
}

// StringArg returns the i-th parameter if it is a string.
func (c Command) StringArg(i int) (string, bool) {
	if i < 0 || i >= len(c.Params) || c.Params[i].Kind != KindString {
		return "", false
	}
	return c.Params[i].Str, true
}

// IntArg returns the i-th parameter if it is an integer.
func (c Command) IntArg(i int) (uint32, bool) {
	if i < 0 || i >= len(c.Params) || c.Params[i].Kind != KindInt {
		return 0, false
	}
	return c.Params[i].Int, true
}

func (c Command) String() string {
	args := make([]string, len(c.Params))
	for i, p := range c.Params {
		args[i] = p.String()
	}
	return c.Name + "(" + strings.Join(args, ", ") + ")"
}

// DecodeCommand decodes the first complete command in buf and reports how
// many bytes it occupied. Length caps are checked as soon as a length field
// is read, before the advertised span is touched.
func DecodeCommand(buf []byte) (Command, int, error) {
	r := sliceReader{buf: buf}

	nameLen, ok := r.readUint32()
	if !ok {
		return Command{}, 0, ErrIncomplete
	}
	if nameLen > MaxStringLen {
		return Command{}, 0, fmt.Errorf("%w: name length %d exceeds %d at offset %d", ErrProtocol, nameLen, MaxStringLen, r.off)
	}
	name, ok := r.readBytes(nameLen)
	if !ok {
		return Command{}, 0, ErrIncomplete
	}

	count, ok := r.readUint32()
	if !ok {
		return Command{}, 0, ErrIncomplete
	}
	if count > MaxParams {
		return Command{}, 0, fmt.Errorf("%w: parameter count %d exceeds %d at offset %d", ErrProtocol, count, MaxParams, r.off)
	}

	cmd := Command{Name: string(name), Params: make([]Param, 0, count)}
	for i := uint32(0); i < count; i++ {
		tag, ok := r.readByte()
		if !ok {
			return Command{}, 0, ErrIncomplete
		}
		val, ok := r.readUint32()
		if !ok {
			return Command{}, 0, ErrIncomplete
		}
		if tag == TagInt {
			cmd.Params = append(cmd.Params, IntParam(val))
			continue
		}
		if val > MaxStringLen {
			return Command{}, 0, fmt.Errorf("%w: string length %d exceeds %d at offset %d", ErrProtocol, val, MaxStringLen, r.off)
		}
		s, ok := r.readBytes(val)
		if !ok {
			return Command{}, 0, ErrIncomplete
		}
		cmd.Params = append(cmd.Params, StringParam(string(s)))
	}

	return cmd, r.off, nil
}

// Decoder accumulates a byte stream and yields complete commands.
type Decoder struct {
	buf []byte
}

// Feed appends newly received bytes.
func (d *Decoder) Feed(data []byte) {
	d.buf = append(d.buf, data...)
}

// Next returns the next complete command. It returns ErrIncomplete when the
// buffered bytes hold only a partial command, and an ErrProtocol-wrapped
// error when the stream is malformed; in both cases nothing is consumed.
func (d *Decoder) Next() (Command, error) {
	cmd, n, err := DecodeCommand(d.buf)
	if err != nil {
		return Command{}, err
	}
	d.buf = d.buf[n:]
	if len(d.buf) == 0 {
		d.buf = nil
	}
	return cmd, nil
}

// Buffered returns the number of bytes waiting for a complete command.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// EncodeCommand serializes cmd, refusing anything the decoder would reject.
func EncodeCommand(cmd Command) ([]byte, error) {
	if len(cmd.Name) > MaxStringLen {
		return nil, fmt.Errorf("%w: name length %d exceeds %d", ErrProtocol, len(cmd.Name), MaxStringLen)
	}
	if len(cmd.Params) > MaxParams {
		return nil, fmt.Errorf("%w: parameter count %d exceeds %d", ErrProtocol, len(cmd.Params), MaxParams)
	}

	b := NewCommandBuilder(cmd.Name, len(cmd.Params))
	for _, p := range cmd.Params {
		if p.Kind == KindInt {
			b.WriteTaggedUint32(p.Int)
			continue
		}
		if len(p.Str) > MaxStringLen {
			return nil, fmt.Errorf("%w: string length %d exceeds %d", ErrProtocol, len(p.Str), MaxStringLen)
		}
		b.WriteTaggedString(p.Str)
	}
	return b.Build(), nil
}

// sliceReader walks a byte slice without ever reading past its end.
type sliceReader struct {
	buf []byte
	off int
}

func (r *sliceReader) remaining() int {
	return len(r.buf) - r.off
}

func (r *sliceReader) readByte() (byte, bool) {
	if r.remaining() < 1 {
		return 0, false
	}
	b := r.buf[r.off]
	r.off++
	return b, true
}

func (r *sliceReader) readUint32() (uint32, bool) {
	if r.remaining() < 4 {
		return 0, false
	}
	v := binary.LittleEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return v, true
}

func (r *sliceReader) readBytes(n uint32) ([]byte, bool) {
	if uint64(r.remaining()) < uint64(n) {
		return nil, false
	}
	b := r.buf[r.off : r.off+int(n)]
	r.off += int(n)
	return b, true
}

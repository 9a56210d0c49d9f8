package pipeline

import (
	"context"
	"errors"
	"io"
	"iter"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Decoder turns successive byte chunks into complete text lines. Multi-byte
// sequences split across chunks are held back until the next chunk
// completes them, and the trailing fragment of a line stays in the carry
// buffer until its terminator arrives. A leading byte order mark is
// dropped. A Decoder is not safe for concurrent use.
type Decoder struct {
	t       transform.Transformer
	pending []byte
	carry   strings.Builder
	dst     [readChunkSize]byte
}

// NewDecoder returns a Decoder for UTF-8 input.
func NewDecoder() *Decoder {
	return &Decoder{t: unicode.UTF8BOM.NewDecoder()}
}

// Write decodes chunk and returns the lines it completed, without their
// terminators.
func (d *Decoder) Write(chunk []byte) []string {
	return d.split(d.decode(chunk, false))
}

// Flush ends the input. Held-back bytes are decoded (invalid sequences
// become U+FFFD) and the carry buffer is returned as the last line when it
// is non-empty. The Decoder is reset afterwards.
func (d *Decoder) Flush() []string {
	lines := d.split(d.decode(nil, true))
	if d.carry.Len() > 0 {
		lines = append(lines, strings.TrimSuffix(d.carry.String(), "\r"))
	}
	d.carry.Reset()
	d.pending = nil
	d.t.Reset()
	return lines
}

// decode returns the text decoded from the pending bytes followed by chunk.
func (d *Decoder) decode(chunk []byte, atEOF bool) string {
	src := make([]byte, 0, len(d.pending)+len(chunk))
	src = append(append(src, d.pending...), chunk...)
	d.pending = nil

	var text strings.Builder
	for {
		nDst, nSrc, err := d.t.Transform(d.dst[:], src, atEOF)
		text.Write(d.dst[:nDst])
		src = src[nSrc:]
		if err == transform.ErrShortDst {
			continue
		}
		if err == transform.ErrShortSrc {
			d.pending = src
		}
		break
	}
	return text.String()
}

// split appends text to the carry buffer and returns the lines it
// completed. Only text is scanned for terminators; the carry never holds
// one.
func (d *Decoder) split(text string) []string {
	last := strings.LastIndexByte(text, '\n')
	if last < 0 {
		d.carry.WriteString(text)
		return nil
	}
	d.carry.WriteString(text[:last])
	lines := strings.Split(d.carry.String(), "\n")
	d.carry.Reset()
	d.carry.WriteString(text[last+1:])
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// Lines returns the decoded lines of r, read in chunks of size bytes. The
// context is checked before every read; a cancelled context or a failed
// read is yielded as the final error. The sequence ends after the last
// line once r reports io.EOF. It can be ranged over once; later ranges
// yield nothing.
func Lines(ctx context.Context, r io.Reader, size int) iter.Seq2[string, error] {
	used := false
	return func(yield func(string, error) bool) {
		if used {
			return
		}
		used = true

		d := NewDecoder()
		buf := make([]byte, max(size, 1))
		for {
			if err := ctx.Err(); err != nil {
				yield("", err)
				return
			}
			n, err := r.Read(buf)
			lines := d.Write(buf[:n])
			eof := errors.Is(err, io.EOF)
			if eof {
				lines = append(lines, d.Flush()...)
			}
			for _, line := range lines {
				if !yield(line, nil) {
					return
				}
			}
			if eof {
				return
			}
			if err != nil {
				yield("", err)
				return
			}
		}
	}
}

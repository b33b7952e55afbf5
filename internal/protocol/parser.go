package protocol

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// MaxLineBytes bounds a single response line, terminator included.
const MaxLineBytes = 256 * 1024

// Parser reads response lines from the daemon.
type Parser struct {
	reader *bufio.Reader
}

// NewParser creates a new response parser.
func NewParser(r io.Reader) *Parser {
	return &Parser{
		reader: bufio.NewReaderSize(r, MaxLineBytes),
	}
}

// ReadLine returns the next line without its terminator.
// A final unterminated line is returned before io.EOF. A line longer than
// MaxLineBytes is a *ProtocolError.
func (p *Parser) ReadLine() ([]byte, error) {
	line, err := p.reader.ReadSlice('\n')
	if err != nil {
		if errors.Is(err, bufio.ErrBufferFull) {
			return nil, &ProtocolError{Err: fmt.Errorf("daemon response line exceeds %d bytes", MaxLineBytes)}
		}
		if errors.Is(err, io.EOF) && len(line) > 0 {
			return bytes.Clone(bytes.TrimRight(line, "\r")), nil
		}
		return nil, err
	}
	return bytes.Clone(bytes.TrimRight(line[:len(line)-1], "\r")), nil
}

// ParseResponse decodes one response line.
//
// It returns ok=false for valid JSON that is not an object or that has no
// numeric id; such lines are notifications and are skipped by the caller.
// Malformed JSON is a *ProtocolError.
func ParseResponse(line []byte) (resp *Response, ok bool, err error) {
	if !json.Valid(line) {
		return nil, false, &ProtocolError{Err: errors.New("malformed daemon response")}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(line, &fields); err != nil {
		return nil, false, nil
	}

	rawID, present := fields["id"]
	if !present {
		return nil, false, nil
	}
	var id uint64
	if err := json.Unmarshal(rawID, &id); err != nil {
		return nil, false, nil
	}

	resp = &Response{ID: id}
	if result, present := fields["result"]; present {
		resp.Result = result
	}
	if respErr, present := fields["error"]; present {
		resp.Error = respErr
	}
	return resp, true, nil
}

// FormatRequest encodes a request as one newline-terminated line.
func FormatRequest(id uint64, method string, params any) ([]byte, error) {
	if params == nil {
		params = EmptyParams{}
	}
	data, err := json.Marshal(Request{ID: id, Method: method, Params: params})
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Writer writes request lines.
type Writer struct {
	w io.Writer
}

// NewWriter creates a new protocol writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteRequest writes a single request line.
func (w *Writer) WriteRequest(id uint64, method string, params any) error {
	data, err := FormatRequest(id, method, params)
	if err != nil {
		return err
	}
	_, err = w.w.Write(data)
	return err
}

/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package h3

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/badu/h3/errs"
	"github.com/badu/h3/hdr"
	hurl "github.com/badu/h3/url"
)

const maxLineLength = 8192

var supportedMethods = map[string]bool{
	"GET": true, "HEAD": true, "POST": true, "PUT": true,
	"PATCH": true, "DELETE": true, "OPTIONS": true,
}

// readRequestLine reads and splits the request line (§4.1): three tokens
// separated by single spaces, terminated by CRLF.
func readRequestLine(br *bufio.Reader) (method, target, version string, err error) {
	line, err := readLine(br)
	if err != nil {
		return "", "", "", err
	}
	parts := strings.SplitN(string(line), " ", 3)
	if len(parts) != 3 {
		return "", "", "", errs.ErrBadRequestLine
	}
	method, target, version = parts[0], parts[1], parts[2]
	if method == "" || target == "" {
		return "", "", "", errs.ErrBadRequestLine
	}
	if version != "HTTP/1.1" && version != "HTTP/1.0" {
		return "", "", "", errs.ErrUnsupportedVersion
	}
	return method, target, version, nil
}

// readLine reads one CRLF- or LF-terminated line, trimming the terminator.
// Grounded on the teacher's readChunkLine (utils_chunks.go): ReadSlice plus
// ErrBufferFull -> too-long translation, generalized to any header line.
func readLine(br *bufio.Reader) ([]byte, error) {
	p, err := br.ReadSlice('\n')
	if err != nil {
		if err == io.EOF {
			return nil, io.ErrUnexpectedEOF
		}
		if err == bufio.ErrBufferFull {
			return nil, errs.ErrHeaderTooLarge
		}
		return nil, err
	}
	if len(p) > maxLineLength {
		return nil, errs.ErrHeaderTooLarge
	}
	return trimCRLF(p), nil
}

func trimCRLF(b []byte) []byte {
	b = bytes.TrimSuffix(b, []byte("\n"))
	b = bytes.TrimSuffix(b, []byte("\r"))
	return b
}

// readHeaders reads "name: value" lines up to the terminating blank line,
// enforcing maxHeaderBytes across the whole block.
func readHeaders(br *bufio.Reader, maxHeaderBytes int) (*hdr.Map, error) {
	h := hdr.New()
	total := 0
	for {
		line, err := readLine(br)
		if err != nil {
			return nil, err
		}
		if len(line) == 0 {
			return h, nil
		}
		total += len(line)
		if maxHeaderBytes > 0 && total > maxHeaderBytes {
			return nil, errs.ErrHeaderTooLarge
		}
		colon := bytes.IndexByte(line, ':')
		if colon <= 0 {
			return nil, errs.ErrBadHeader
		}
		name := string(line[:colon])
		value := hdr.TrimString(string(line[colon+1:]))
		if !hdr.ValidHeaderFieldName(name) || !hdr.ValidHeaderFieldValue(value) {
			return nil, errs.ErrBadHeader
		}
		h.Add(hdr.CanonicalHeaderKey(name), value)
	}
}

// readBody determines framing from Content-Length or Transfer-Encoding and
// reads the body accordingly. Chunked decoding is required on the ingress
// path per §4.1; senders may use Content-Length only.
func readBody(br *bufio.Reader, h *hdr.Map, maxRequestBytes int) ([]byte, error) {
	if strings.EqualFold(h.Get(hdr.TransferEncoding), "chunked") {
		return readChunkedBody(br, maxRequestBytes)
	}
	cl := h.Get(hdr.ContentLength)
	if cl == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(cl, 10, 64)
	if err != nil || n < 0 {
		return nil, errs.ErrBadHeader
	}
	if maxRequestBytes > 0 && n > int64(maxRequestBytes) {
		return nil, errs.ErrBodyTooLarge
	}
	if n == 0 {
		return nil, nil
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(br, body); err != nil {
		return nil, err
	}
	return body, nil
}

// readChunkedBody decodes an HTTP/1.1 chunked transfer-coded body. Grounded
// directly on the teacher's utils_chunks.go helpers (readChunkLine's
// extension-stripping, parseHexUint's hex accumulation loop), adapted to
// read a full body into memory instead of exposing an io.Reader, since h3's
// codec always has the whole request available before dispatch.
func readChunkedBody(br *bufio.Reader, maxRequestBytes int) ([]byte, error) {
	var out []byte
	for {
		line, err := readLine(br)
		if err != nil {
			return nil, err
		}
		line = removeChunkExtension(line)
		size, err := parseHexUint(line)
		if err != nil {
			return nil, errs.ErrBadHeader
		}
		if size == 0 {
			// Trailing headers (possibly none) up to the final blank line.
			for {
				tline, err := readLine(br)
				if err != nil {
					return nil, err
				}
				if len(tline) == 0 {
					return out, nil
				}
			}
		}
		if maxRequestBytes > 0 && int64(len(out))+int64(size) > int64(maxRequestBytes) {
			return nil, errs.ErrBodyTooLarge
		}
		chunk := make([]byte, size)
		if _, err := io.ReadFull(br, chunk); err != nil {
			return nil, err
		}
		out = append(out, chunk...)
		// Each chunk is followed by a bare CRLF.
		if _, err := readLine(br); err != nil {
			return nil, err
		}
	}
}

func removeChunkExtension(p []byte) []byte {
	if i := bytes.IndexByte(p, ';'); i != -1 {
		return p[:i]
	}
	return p
}

func parseHexUint(v []byte) (uint64, error) {
	if len(v) == 0 {
		return 0, fmt.Errorf("h3: empty chunk size")
	}
	var n uint64
	for i, b := range v {
		var d byte
		switch {
		case '0' <= b && b <= '9':
			d = b - '0'
		case 'a' <= b && b <= 'f':
			d = b - 'a' + 10
		case 'A' <= b && b <= 'F':
			d = b - 'A' + 10
		default:
			return 0, fmt.Errorf("h3: invalid byte in chunk size")
		}
		if i == 16 {
			return 0, fmt.Errorf("h3: chunk size too large")
		}
		n <<= 4
		n |= uint64(d)
	}
	return n, nil
}

// parseRequest reads one full request (line, headers, body) from br into
// req, which the caller owns (typically an Event pooled from the server).
// Method is matched case-sensitively against supportedMethods; an unknown
// method is rejected rather than merely flagged, since §4.1 leaves strict
// rejection as the core's choice and h3 takes it.
func parseRequest(br *bufio.Reader, req *Request, maxHeaderBytes, maxRequestBytes int) error {
	method, target, version, err := readRequestLine(br)
	if err != nil {
		return err
	}
	if !supportedMethods[method] {
		return errs.ErrBadRequestLine
	}

	h, err := readHeaders(br, maxHeaderBytes)
	if err != nil {
		return err
	}

	body, err := readBody(br, h, maxRequestBytes)
	if err != nil {
		return err
	}

	path, query := hurl.SplitRequestTarget(target)

	req.Method = method
	req.RawPath = path
	req.Path = path
	req.Query = query
	req.Version = version
	req.Header = h
	req.Body = body
	req.keepAlive = isKeepAlive(version, h)
	return nil
}

// isKeepAlive applies §4.4's negotiation: HTTP/1.1 defaults to persistent
// unless Connection: close is present; HTTP/1.0 defaults to close unless
// Connection: keep-alive is present.
func isKeepAlive(version string, h *hdr.Map) bool {
	conn := strings.ToLower(h.Get(hdr.Connection))
	if version == "HTTP/1.0" {
		return conn == "keep-alive"
	}
	return conn != "close"
}

// writeResponse serializes resp to bw: status line, headers in insertion
// order, a blank line, and the body. If Content-Length was not already set
// and the body is known, it is filled in; otherwise the connection is
// closed after the body per §4.1.
func writeResponse(bw *bufio.Writer, resp *Response) (closeAfter bool, err error) {
	if resp.Header.Get(hdr.ContentLength) == "" && !resp.HeadersSent {
		resp.Header.Set(hdr.ContentLength, strconv.Itoa(len(resp.Body)))
	}
	closeAfter = resp.Header.Get(hdr.Connection) == "close" || resp.Header.Get(hdr.ContentLength) == ""

	if _, err = fmt.Fprintf(bw, "%s %d %s\r\n", resp.Version, resp.Status, StatusText(resp.Status)); err != nil {
		return closeAfter, err
	}
	if err = resp.Header.WriteTo(bw, nil); err != nil {
		return closeAfter, err
	}
	if _, err = bw.WriteString("\r\n"); err != nil {
		return closeAfter, err
	}
	if len(resp.Body) > 0 {
		if _, err = bw.Write(resp.Body); err != nil {
			return closeAfter, err
		}
	}
	return closeAfter, bw.Flush()
}

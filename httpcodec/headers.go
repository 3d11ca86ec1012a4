// Copyright 2019 Jigsaw Operations LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package httpcodec implements an HTTP/1.x wire codec and connection state
// machines: header parsing, body framing resolution, chunked/content-length/
// close-delimited body readers and writers, request/response line
// serialization, and the client and server connection state machines built
// on top of them.
package httpcodec

import (
	"bufio"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Method is a closed enumeration of the HTTP methods this codec recognizes:
// the standard verbs plus the WebDAV/CalDAV/UPnP extensions a captive
// portal or embedded HTTP server may see on its wire.
type Method string

const (
	MethodDelete  Method = "DELETE"
	MethodGet     Method = "GET"
	MethodHead    Method = "HEAD"
	MethodPost    Method = "POST"
	MethodPut     Method = "PUT"
	MethodConnect Method = "CONNECT"
	MethodOptions Method = "OPTIONS"
	MethodTrace   Method = "TRACE"
	MethodCopy    Method = "COPY"
	MethodLock    Method = "LOCK"
	MethodMkCol   Method = "MKCOL"
	MethodMove    Method = "MOVE"

	MethodPropfind   Method = "PROPFIND"
	MethodProppatch  Method = "PROPPATCH"
	MethodSearch     Method = "SEARCH"
	MethodUnlock     Method = "UNLOCK"
	MethodBind       Method = "BIND"
	MethodRebind     Method = "REBIND"
	MethodUnbind     Method = "UNBIND"
	MethodAcl        Method = "ACL"
	MethodReport     Method = "REPORT"
	MethodMkActivity Method = "MKACTIVITY"
	MethodCheckout   Method = "CHECKOUT"
	MethodMerge      Method = "MERGE"

	MethodMSearch     Method = "MSEARCH"
	MethodNotify      Method = "NOTIFY"
	MethodSubscribe   Method = "SUBSCRIBE"
	MethodUnsubscribe Method = "UNSUBSCRIBE"
	MethodPatch       Method = "PATCH"
	MethodPurge       Method = "PURGE"
	MethodMkCalendar  Method = "MKCALENDAR"
	MethodLink        Method = "LINK"
	MethodUnlink      Method = "UNLINK"
)

// recognizedMethods is the closed set Method is allowed to take; ParseMethod
// rejects anything outside it instead of accepting an arbitrary token.
var recognizedMethods = map[Method]bool{
	MethodDelete: true, MethodGet: true, MethodHead: true, MethodPost: true,
	MethodPut: true, MethodConnect: true, MethodOptions: true, MethodTrace: true,
	MethodCopy: true, MethodLock: true, MethodMkCol: true, MethodMove: true,
	MethodPropfind: true, MethodProppatch: true, MethodSearch: true, MethodUnlock: true,
	MethodBind: true, MethodRebind: true, MethodUnbind: true, MethodAcl: true,
	MethodReport: true, MethodMkActivity: true, MethodCheckout: true, MethodMerge: true,
	MethodMSearch: true, MethodNotify: true, MethodSubscribe: true, MethodUnsubscribe: true,
	MethodPatch: true, MethodPurge: true, MethodMkCalendar: true, MethodLink: true,
	MethodUnlink: true,
}

// ParseMethod maps a request line's method token onto the closed Method
// enum, matching case-insensitively. It reports false for any token outside
// the 33 recognized verbs, mirroring a fallible parse rather than accepting
// an arbitrary string as a method.
func ParseMethod(s string) (Method, bool) {
	m := Method(strings.ToUpper(s))
	if !recognizedMethods[m] {
		return "", false
	}
	return m, true
}

var (
	// ErrTooManyHeaders is returned when a header block exceeds the
	// parser's configured header-count limit without completing.
	ErrTooManyHeaders = errors.New("httpcodec: too many headers")
	// ErrInvalidHeaders is returned for a malformed status/request line or
	// header line.
	ErrInvalidHeaders = errors.New("httpcodec: invalid headers")
	// ErrUnsupportedVersion is returned for an HTTP version above 1.1.
	ErrUnsupportedVersion = errors.New("httpcodec: unsupported HTTP version")
)

// Header is a single name/value pair, preserving the casing it was
// constructed or received with.
type Header struct {
	Name  string
	Value string
}

// Headers is an ordered, case-insensitively-keyed list of header fields.
type Headers []Header

// Get returns the first value for name (case-insensitive), if present.
func (h Headers) Get(name string) (string, bool) {
	for _, hdr := range h {
		if strings.EqualFold(hdr.Name, name) {
			return hdr.Value, true
		}
	}
	return "", false
}

// Set replaces every existing value for name with a single value, or
// appends it if name is not present.
func (h *Headers) Set(name, value string) {
	for i, hdr := range *h {
		if strings.EqualFold(hdr.Name, name) {
			(*h)[i].Value = value
			h.removeFrom(i+1, name)
			return
		}
	}
	*h = append(*h, Header{Name: name, Value: value})
}

// Add appends name/value without removing any existing entries for name.
func (h *Headers) Add(name, value string) {
	*h = append(*h, Header{Name: name, Value: value})
}

// Remove deletes every entry for name.
func (h *Headers) Remove(name string) {
	h.removeFrom(0, name)
}

func (h *Headers) removeFrom(start int, name string) {
	out := (*h)[:start]
	for _, hdr := range (*h)[start:] {
		if !strings.EqualFold(hdr.Name, name) {
			out = append(out, hdr)
		}
	}
	*h = out
}

// Version is an HTTP/1.x version; only 1.0 and 1.1 are supported.
type Version struct {
	Minor int // 0 or 1; major is always 1
}

func (v Version) String() string { return fmt.Sprintf("HTTP/1.%d", v.Minor) }

func parseVersion(s string) (Version, error) {
	switch s {
	case "HTTP/1.0":
		return Version{Minor: 0}, nil
	case "HTTP/1.1":
		return Version{Minor: 1}, nil
	default:
		return Version{}, ErrUnsupportedVersion
	}
}

// RequestHeaders is a parsed or to-be-sent HTTP request line plus headers.
type RequestHeaders struct {
	Version Version
	Method  Method
	Path    string
	Headers Headers
}

// ResponseHeaders is a parsed or to-be-sent HTTP status line plus headers.
type ResponseHeaders struct {
	Version Version
	Code    int
	Reason  string
	Headers Headers
}

// maxHeaderLine is the longest header/status line readLine accepts. The
// line is read in full before its length is checked, so this rejects an
// overlong line but does not cap how much is read to find its end.
const maxHeaderLine = 8192

// readLine reads one CRLF- or LF-terminated line from r, with the
// terminator stripped.
func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}
	if len(line) > maxHeaderLine {
		return "", ErrInvalidHeaders
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func readHeaderBlock(r *bufio.Reader, maxHeaders int) (Headers, error) {
	var headers Headers
	for {
		if len(headers) > maxHeaders {
			return nil, ErrTooManyHeaders
		}
		line, err := readLine(r)
		if err != nil {
			return nil, err
		}
		if line == "" {
			return headers, nil
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, ErrInvalidHeaders
		}
		headers.Add(strings.TrimSpace(name), strings.TrimSpace(value))
	}
}

// ReceiveRequestHeaders reads and parses a request line and header block
// from r.
func ReceiveRequestHeaders(r *bufio.Reader, maxHeaders int) (RequestHeaders, error) {
	var rh RequestHeaders

	line, err := readLine(r)
	if err != nil {
		return rh, err
	}
	parts := strings.SplitN(line, " ", 3)
	if len(parts) != 3 {
		return rh, ErrInvalidHeaders
	}
	rh.Method, _ = ParseMethod(parts[0])
	rh.Path = parts[1]
	rh.Version, err = parseVersion(parts[2])
	if err != nil {
		return rh, err
	}

	rh.Headers, err = readHeaderBlock(r, maxHeaders)
	return rh, err
}

// ReceiveResponseHeaders reads and parses a status line and header block
// from r.
func ReceiveResponseHeaders(r *bufio.Reader, maxHeaders int) (ResponseHeaders, error) {
	var rh ResponseHeaders

	line, err := readLine(r)
	if err != nil {
		return rh, err
	}
	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 2 {
		return rh, ErrInvalidHeaders
	}
	var err2 error
	rh.Version, err2 = parseVersion(parts[0])
	if err2 != nil {
		return rh, err2
	}
	rh.Code, err2 = strconv.Atoi(parts[1])
	if err2 != nil {
		return rh, ErrInvalidHeaders
	}
	if len(parts) == 3 {
		rh.Reason = parts[2]
	}

	rh.Headers, err = readHeaderBlock(r, maxHeaders)
	return rh, err
}

// WriteRequestLine writes the request line and header block (terminated by
// a blank line) to w.
func WriteRequestLine(w *bufio.Writer, rh RequestHeaders) error {
	if _, err := fmt.Fprintf(w, "%s %s %s\r\n", rh.Method, rh.Path, rh.Version); err != nil {
		return err
	}
	return writeHeaderBlock(w, rh.Headers)
}

// WriteResponseLine writes the status line and header block (terminated by
// a blank line) to w.
func WriteResponseLine(w *bufio.Writer, rh ResponseHeaders) error {
	if _, err := fmt.Fprintf(w, "%s %d %s\r\n", rh.Version, rh.Code, rh.Reason); err != nil {
		return err
	}
	return writeHeaderBlock(w, rh.Headers)
}

func writeHeaderBlock(w *bufio.Writer, headers Headers) error {
	for _, h := range headers {
		if _, err := fmt.Fprintf(w, "%s: %s\r\n", h.Name, h.Value); err != nil {
			return err
		}
	}
	_, err := w.WriteString("\r\n")
	return err
}

/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package h3

import "github.com/badu/h3/hdr"

// Response is the response-under-construction entity (§3). Header is
// mutable until HeadersSent becomes true.
type Response struct {
	Status      int
	Version     string
	Header      *hdr.Map
	Body        []byte
	HeadersSent bool
}

func resetResponse(r *Response) {
	r.Status = 0
	r.Version = ""
	r.Body = nil
	r.HeadersSent = false
	if r.Header != nil {
		r.Header.Reset()
	} else {
		r.Header = hdr.New()
	}
}

// StatusText mirrors the small subset of RFC 7231 reason phrases this core
// actually emits; unrecognized codes fall back to "Status".
func StatusText(code int) string {
	switch code {
	case 200:
		return "OK"
	case 201:
		return "Created"
	case 204:
		return "No Content"
	case 301:
		return "Moved Permanently"
	case 302:
		return "Found"
	case 303:
		return "See Other"
	case 307:
		return "Temporary Redirect"
	case 308:
		return "Permanent Redirect"
	case 400:
		return "Bad Request"
	case 404:
		return "Not Found"
	case 405:
		return "Method Not Allowed"
	case 413:
		return "Request Entity Too Large"
	case 500:
		return "Internal Server Error"
	case 503:
		return "Service Unavailable"
	default:
		return "Status"
	}
}

/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Package hdr provides case-insensitive, order-preserving HTTP header
// storage and the canonicalization rules the rest of h3 relies on.
package hdr

// Canonical header names used throughout the codec, router and SSE engine.
// Keeping them as constants avoids re-canonicalizing the same literals on
// every request.
const (
	Accept           = "Accept"
	AcceptEncoding   = "Accept-Encoding"
	Allow            = "Allow"
	CacheControl     = "Cache-Control"
	Connection       = "Connection"
	ContentLength    = "Content-Length"
	ContentType      = "Content-Type"
	Date             = "Date"
	Host             = "Host"
	LastEventID      = "Last-Event-ID"
	Location         = "Location"
	Server           = "Server"
	TransferEncoding = "Transfer-Encoding"
	Upgrade          = "Upgrade"
	XPoweredBy       = "X-Powered-By"

	TimeFormat = "Mon, 02 Jan 2006 15:04:05 GMT"
)

// commonHeader interns canonical forms of frequently seen header names so
// CanonicalHeaderKey can return a shared string instead of allocating one
// per request.
var commonHeader = map[string]string{}

func init() {
	for _, v := range []string{
		Accept, AcceptEncoding, Allow, CacheControl, Connection, ContentLength,
		ContentType, Date, Host, LastEventID, Location, Server,
		TransferEncoding, Upgrade, XPoweredBy,
	} {
		commonHeader[v] = v
	}
}

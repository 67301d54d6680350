// Copyright 2021 The opener Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package transport provides the scheme openers which perform the actual
I/O of a fetch for an opener.Director.

HTTP opens http and https URLs through a net/http client which never
follows redirects, so redirects reach the Director's handlers. It sets a
timeout on every fetch from a timeout.Policy, routes requests through
the proxy chosen by a proxy handler, and wraps failures in *url.Error:

	d := &opener.Director{}
	d.Add(transport.NewHTTP(nil))
	d.Add(&transport.File{})
	d.Add(&transport.FTP{})

NewTracedTransport instruments an http.RoundTripper with OpenTelemetry
tracing, for use as the transport of the HTTP opener's client.

File opens file URLs on the local host, FTP opens ftp URLs with
github.com/jlaffaye/ftp, and S3 opens s3://bucket/key URLs with the AWS
SDK.

Every opener returns a response whose body streams from the network or
file, and releases the underlying resources when the body is closed.
*/
package transport

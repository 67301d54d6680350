// Copyright 2021 The opener Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package useragent provides UserAgent, a Director which comes with a
complete browser-like handler chain and switches for each feature of
the chain.

Every feature and every scheme opener is made by a constructor in a
Table. A UserAgent copies its table when it is made, and replacing a
feature removes the handler it replaces from every index of the
Director before adding the new one:

	ua := useragent.New(useragent.DefaultConfig())
	ua.SetHandleRobots(false)
	ua.AddPassword("https://example.com/private/", "joe", "secret", auth.DefaultRealm)
	resp, err := ua.Get("https://example.com/private/index.html")

A Config can be read from OPENER_ environment variables with
ParseConfig.
*/
package useragent

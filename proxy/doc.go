// Copyright 2015 Zalando SE
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

/*
Package proxy implements the HTTP handler of the host router.

For every incoming request, the handler asks the router for a dispatch
decision, and executes it:

1. serving a mapped file:

The file is opened from the static root and served with its content
type, supporting conditional and range requests. When the file cannot
be opened, or it is a directory, the response is 500 Internal Server
Error. Requests for mapped hosts are never proxied.

2. proxying:

The request is relayed to the host in its Host header, using the scheme
from the X-Forwarded-Proto header, or http. The method, path, query,
headers and body are preserved, except the hop-by-hop headers, and the
Host of the outgoing request is the one of the target. The response of
the upstream is relayed back to the client. When the upstream cannot be
reached, the response is 502 Bad Gateway.

3. rejecting:

Requests that cannot be proxied are answered with 502 Bad Gateway.

Every request is recorded in the access log and measured, partitioned by
the dispatch decision. A panic while serving a request is recovered and,
unless the response was already started, answered with 500 Internal
Server Error.
*/
package proxy

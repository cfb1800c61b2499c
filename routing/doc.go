/*
Package routing implements the dispatch decision of the router.

For every incoming request, the router takes the host from the Host
header, without the port, and looks it up in the current mapping. When
the host is mapped, the request is answered with the mapped file,
resolved relative to the static root. Otherwise, the request is proxied
to the host it was addressed to, using the scheme from the
X-Forwarded-Proto header, or http when the header is missing.

Requests that cannot be proxied, because their Host header is missing
or invalid, because the forwarded protocol is not http or https, or
because they already passed this router once, are rejected. The
decision does not block and does not touch the file system.
*/
package routing

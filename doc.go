/*
Package hostrouter provides a minimal HTTP router that dispatches the
requests based on their Host header.

The router reads a JSON file that maps hostnames to files:

	{
		"example.org": "sites/example/index.html"
	}

When the host of a request, without the port, is in the mapping, the
response is the mapped file. Otherwise, the request is proxied to the
host it was addressed to, with the scheme taken from the
X-Forwarded-Proto header, defaulting to http. The file is watched, and
every change replaces the mapping as a whole. When the new content
cannot be loaded, the previous mapping stays in effect.

# Running

The executable is in the cmd/hostrouter directory. For the list of the
command line options, run:

	hostrouter -help

The listening port defaults to the value of the PORT environment
variable, or 10000.

# Support listener

The metrics of the router are available on /metrics, and a health
check on /healthz, of the support listener, by default on :9911. The
health check returns the version of the current mapping in the
X-Mapping-Version header.

# Packages

The mapping file is handled by the mappingfile package, the dispatch
decision by the routing package, and the execution of the decision by
the proxy package. The command line options are parsed by the config
package.
*/
package hostrouter

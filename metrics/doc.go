/*
Package metrics implements collection of the router's performance
metrics.

Two backends are available, selected with the metrics flavour option:
the Prometheus client library, and the Go implementation of the Coda
Hale metrics library:

https://github.com/dropwizard/metrics

The collected metrics include the total serve time of each request,
partitioned by the dispatch decision (file, proxy or error), method and
status code, the number of failed upstream requests and failed static
file responses, the number of mapping file reloads and failed reloads,
and the number of entries in the current mapping.

The current values can be downloaded from the support listener, on the
/metrics path.
*/
package metrics

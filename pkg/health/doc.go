/*
Package health implements the checks behind `mirrorctl probe`.

A Probe runs named checks in order and reports every result:

	config  exec  nginx -t
	listen  tcp   127.0.0.1:80
	index   http  GET http://127.0.0.1:80/ (2xx-3xx, directory listing)

Probing is diagnostic. Results are printed and exported as metrics, but the
workload status is only ever derived from lifecycle events.
*/
package health

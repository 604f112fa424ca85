/*
Package metrics defines mirrorctl's Prometheus metrics.

mirrorctl is a short-lived process started once per lifecycle event, so
nothing is scraped over HTTP. Instead the registry is written to a file for
node_exporter's textfile collector after each event:

	mirrorctl hook install   →  /var/lib/node_exporter/textfile/mirrorctl.prom

Counters therefore describe a single invocation; node_exporter exposes the
last one written.

# Metrics

	mirrorctl_events_total{event,status}          events handled by final status
	mirrorctl_event_duration_seconds{event}       handling time
	mirrorctl_host_action_failures_total{action}  failed host actions
	mirrorctl_schedule_lines_skipped_total        malformed schedule lines
	mirrorctl_schedule_installs_total             crontab replacements
	mirrorctl_commands_total{result}              bootstrap commands by result
	mirrorctl_status{kind}                        1 for the current status kind
	mirrorctl_probe_healthy{check}                last probe result per check
	mirrorctl_probe_duration_seconds{check}       probe check latency

All metrics live in Registry rather than the default registerer, which keeps
the Go runtime collectors out of the textfile.
*/
package metrics

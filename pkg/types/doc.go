/*
Package types defines the data model shared by every mirrorctl package.

  - EventKind: the closed set of lifecycle events (install, config-changed, start)
  - Status: the tagged health value (maintenance, active, blocked) plus reason
  - StatusRecord: one persisted status transition
  - CharmConfig: the declared configuration snapshot (cron-jobs, bootstrap-sync)
  - PortMapping: a port declared as exposed

Types carry json, yaml and mapstructure tags so the same values move through
configuration loading, the status store and CLI output without adapters.
*/
package types

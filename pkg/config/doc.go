// Package config loads mirrorctl's host settings and the declared workload
// configuration snapshot. Both are YAML read through viper with MIRRORCTL_
// environment overrides.
package config

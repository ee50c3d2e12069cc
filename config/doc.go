// Package config loads the client configuration from YAML files and
// TYPESENSE_* environment variables. It describes the cluster nodes, the
// optional nearest node, the API key and the timing knobs of the retry loop:
// connection timeout, health-check interval, retry count and retry interval.
package config

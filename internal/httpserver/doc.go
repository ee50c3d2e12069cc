// Package httpserver runs the client's metrics and node status endpoints.
package httpserver

// Package node describes a single cluster server and tracks its health
// together with the time that health was last recorded.
package node

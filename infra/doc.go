// Package infra holds the adapters behind the core interfaces: station
// sources (ocm, overpass), model transports (prediction, mqtt), metrics
// sinks, the TTL cache, logging and error monitoring. Core packages never
// import infra.
package infra

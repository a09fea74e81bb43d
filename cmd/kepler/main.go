// Kepler is the Saturn policy enforcement server.
//
// It exposes a decision API for rate limiting and quota management:
// services ask Saturn whether a request may proceed, then report the
// usage they actually consumed.
//
// Usage:
//
//	# Start server with default configuration
//	kepler run
//
//	# Start with custom configuration file
//	kepler run --config /path/to/config.yaml
//
//	# Show version information
//	kepler version
//
//	# Check a configuration file without starting the server
//	kepler validate --config /path/to/config.yaml
//
// For complete documentation, see: https://github.com/kepler-hq/saturn
package main

func main() {
	Execute()
}

package logging

// RedactID redacts an identifier for logging, keeping only a short
// prefix. Scope identifiers are frequently raw API keys, so they must
// never appear whole in the log stream.
func RedactID(id string) string {
	if len(id) <= 4 {
		return "***"
	}
	return id[:4] + "***"
}

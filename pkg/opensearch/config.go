package opensearch

// Config describes how to reach an OpenSearch cluster.
type Config struct {
	Addresses    []string
	Username     string
	Password     string
	MaxRetries   int
	DisableRetry bool
}

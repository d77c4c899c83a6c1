package opensearch

import "errors"

var (
	// ErrNoAddresses indicates an empty Config.Addresses list.
	ErrNoAddresses = errors.New("opensearch addresses are required")

	// ErrConnectionFailed indicates the client could not be created from
	// the configuration.
	ErrConnectionFailed = errors.New("opensearch connection failed")

	// ErrHealthcheckFailed indicates the cluster is unreachable or answered
	// the info request with an error status.
	ErrHealthcheckFailed = errors.New("opensearch healthcheck failed")
)

// Package opensearch creates opensearch-go clients.
//
// New builds a client from Config and issues an info request so that a
// misconfigured cluster fails at startup instead of on the first write.
//
//	client, err := opensearch.New(ctx, opensearch.Config{
//	    Addresses: []string{"https://localhost:9200"},
//	    Username:  "admin",
//	    Password:  "admin",
//	})
package opensearch

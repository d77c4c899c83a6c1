package opensearch

import (
	"context"
	"errors"
	"fmt"

	"github.com/opensearch-project/opensearch-go/v2"
)

// New creates a client and checks that the cluster answers.
func New(ctx context.Context, cfg Config) (*opensearch.Client, error) {
	if len(cfg.Addresses) == 0 {
		return nil, ErrNoAddresses
	}

	client, err := opensearch.NewClient(opensearch.Config{
		Addresses:    cfg.Addresses,
		Username:     cfg.Username,
		Password:     cfg.Password,
		MaxRetries:   cfg.MaxRetries,
		DisableRetry: cfg.DisableRetry,
	})
	if err != nil {
		return nil, errors.Join(ErrConnectionFailed, err)
	}

	if err := ping(ctx, client); err != nil {
		return nil, err
	}
	return client, nil
}

func ping(ctx context.Context, client *opensearch.Client) error {
	res, err := client.Info(
		client.Info.WithContext(ctx),
		client.Info.WithErrorTrace(),
	)
	if err != nil {
		return errors.Join(ErrHealthcheckFailed, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return errors.Join(ErrHealthcheckFailed, fmt.Errorf("cluster responded %s", res.Status()))
	}
	return nil
}

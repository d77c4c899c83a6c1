package handlers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/dmitrymomot/tubeworker/pkg/opensearch"
	"github.com/dmitrymomot/tubeworker/pkg/queue"
)

var openSearchSchema = configSchema(map[string]any{
	"addresses": map[string]any{
		"type":     []any{"string", "array"},
		"minItems": 1,
		"items":    map[string]any{"type": "string", "minLength": 1},
	},
	"username":    map[string]any{"type": "string"},
	"password":    map[string]any{"type": "string"},
	"index":       map[string]any{"type": "string", "minLength": 1},
	"max_retries": map[string]any{"type": "integer", "minimum": 0},
}, "addresses", "index")

// OpenSearchSink indexes records, using the job id as the document id so
// a redelivered job overwrites its earlier copy.
type OpenSearchSink struct {
	transport opensearchapi.Transport
	index     string
}

// NewOpenSearchSink returns a sink indexing through transport, usually an
// *opensearch.Client.
func NewOpenSearchSink(transport opensearchapi.Transport, index string) *OpenSearchSink {
	return &OpenSearchSink{transport: transport, index: index}
}

func (s *OpenSearchSink) Write(ctx context.Context, rec Record) error {
	data, err := rec.JSON()
	if err != nil {
		return err
	}

	res, err := opensearchapi.IndexRequest{
		Index:      s.index,
		DocumentID: strconv.FormatUint(rec.JobID, 10),
		Body:       bytes.NewReader(data),
	}.Do(ctx, s.transport)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return fmt.Errorf("index %s: %s: %s", s.index, res.Status(), bytes.TrimSpace(body))
	}
	return nil
}

func (s *OpenSearchSink) Close(context.Context) error {
	return nil
}

// OpenSearch indexes every job record into "index".
func OpenSearch(opts queue.Options, logger *slog.Logger) (queue.Handler, error) {
	base, err := newBase(opts, openSearchSchema, logger)
	if err != nil {
		return nil, err
	}

	cfg := opensearch.Config{
		Addresses:  stringsOption(opts, "addresses"),
		Username:   opts.String("username", ""),
		Password:   opts.String("password", ""),
		MaxRetries: opts.Int("max_retries", 3),
	}
	index := opts.String("index", "")

	open := func(ctx context.Context) (Sink, error) {
		client, err := opensearch.New(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return NewOpenSearchSink(client, index), nil
	}
	return NewSinkHandler(base, open, failureVerdict(opts)), nil
}

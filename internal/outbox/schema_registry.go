package outbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"example.com/stravasync/internal/remote"
	"example.com/stravasync/internal/schema"
)

const registryContentType = "application/vnd.schemaregistry.v1+json"

var registryIDContract = schema.MustCompile(schema.Document{Name: "schema_registry_id.json", Source: `{
  "type": "object",
  "properties": {"id": {"type": "integer", "minimum": 0}},
  "required": ["id"]
}`})

type registryID struct {
	ID int `json:"id"`
}

// SchemaRegistryClient provides minimal interactions with Confluent Schema Registry.
type SchemaRegistryClient struct {
	baseURL string
	remote  *remote.Client
}

// NewSchemaRegistryClient constructs a client with sane defaults.
func NewSchemaRegistryClient(baseURL string) *SchemaRegistryClient {
	return &SchemaRegistryClient{
		baseURL: baseURL,
		remote:  remote.NewClient(nil, 10*time.Second),
	}
}

// EnsureSchema returns the id of schema under subject, registering it when the registry does
// not know this exact schema yet.
func (c *SchemaRegistryClient) EnsureSchema(ctx context.Context, subject string, schemaText string) (int, error) {
	id, err := c.lookup(ctx, subject, schemaText)
	if err == nil {
		return id, nil
	}
	var remoteErr *remote.Error
	if !errors.As(err, &remoteErr) || remoteErr.Status != http.StatusNotFound {
		return 0, err
	}
	return c.register(ctx, subject, schemaText)
}

// lookup checks whether schemaText is already registered under subject.
func (c *SchemaRegistryClient) lookup(ctx context.Context, subject, schemaText string) (int, error) {
	return c.post(ctx, fmt.Sprintf("%s/subjects/%s", c.baseURL, url.PathEscape(subject)), schemaText)
}

func (c *SchemaRegistryClient) register(ctx context.Context, subject, schemaText string) (int, error) {
	id, err := c.post(ctx, fmt.Sprintf("%s/subjects/%s/versions", c.baseURL, url.PathEscape(subject)), schemaText)
	if err != nil {
		return 0, fmt.Errorf("schema registry register %s: %w", subject, err)
	}
	return id, nil
}

func (c *SchemaRegistryClient) post(ctx context.Context, endpoint, schemaText string) (int, error) {
	body, err := json.Marshal(map[string]any{
		"schemaType": "JSON",
		"schema":     schemaText,
	})
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", registryContentType)
	req.Header.Set("Accept", registryContentType)

	resp, err := remote.Call[registryID](c.remote, registryIDContract, req)
	if err != nil {
		return 0, err
	}
	return resp.ID, nil
}

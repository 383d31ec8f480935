package outbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const registryContentType = "application/vnd.schemaregistry.v1+json"

// RegistryError is a non-2xx answer from the schema registry.
type RegistryError struct {
	Status int
	Body   string
}

func (e *RegistryError) Error() string {
	return fmt.Sprintf("schema registry: status %d: %s", e.Status, e.Body)
}

func isNotFound(err error) bool {
	var regErr *RegistryError
	return errors.As(err, &regErr) && regErr.Status == http.StatusNotFound
}

// SchemaRegistryClient speaks the subset of the Confluent Schema Registry API
// needed to resolve JSON schema IDs.
type SchemaRegistryClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewSchemaRegistryClient constructs a client with a ten second timeout.
func NewSchemaRegistryClient(baseURL string) *SchemaRegistryClient {
	return &SchemaRegistryClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type schemaVersion struct {
	ID int `json:"id"`
}

// EnsureSchema returns the ID of the latest version of subject, registering
// schema first when the subject is unknown. Other registry errors are returned as is.
func (c *SchemaRegistryClient) EnsureSchema(ctx context.Context, subject, schema string) (int, error) {
	subjectPath := "/subjects/" + url.PathEscape(subject) + "/versions"

	var latest schemaVersion
	err := c.do(ctx, http.MethodGet, subjectPath+"/latest", nil, &latest)
	if err == nil {
		return latest.ID, nil
	}
	if !isNotFound(err) {
		return 0, fmt.Errorf("fetch %s: %w", subject, err)
	}

	var created schemaVersion
	body := map[string]string{"schemaType": "JSON", "schema": schema}
	if err := c.do(ctx, http.MethodPost, subjectPath, body, &created); err != nil {
		return 0, fmt.Errorf("register %s: %w", subject, err)
	}
	return created.ID, nil
}

func (c *SchemaRegistryClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", registryContentType)
	if in != nil {
		req.Header.Set("Content-Type", registryContentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &RegistryError{Status: resp.StatusCode, Body: string(bytes.TrimSpace(data))}
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

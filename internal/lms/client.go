// Package lms provides an HTTP client for the host learning platform's
// course service, which owns the actual export and import machinery. The
// queue workers drive it through this client.
package lms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client is an HTTP client for the course service API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a course service client. Exports and imports of large
// courses can run for minutes, so timeout should be generous.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// ExportOptions controls how a course is packed.
type ExportOptions struct {
	Filename     string `json:"filename"`
	IncludeUsers bool   `json:"include_users"`
	Anonymize    bool   `json:"anonymize"`
}

// ArtifactRef identifies a packed backup artifact on the course service's
// filesystem, shared with this server.
type ArtifactRef struct {
	Path        string `json:"path"`
	Filename    string `json:"filename"`
	ContentHash string `json:"content_hash"`
}

// RestorePlan points the course service at an extracted archive to import.
type RestorePlan struct {
	WorkDir  string `json:"work_dir"`
	CourseID int64  `json:"course_id"`
}

// Export packs a course into a backup artifact and returns its location.
func (c *Client) Export(ctx context.Context, courseID int64, opts ExportOptions) (*ArtifactRef, error) {
	var ref ArtifactRef
	path := fmt.Sprintf("/api/courses/%d/export", courseID)
	if err := c.post(ctx, path, opts, &ref); err != nil {
		return nil, fmt.Errorf("export course %d: %w", courseID, err)
	}
	return &ref, nil
}

// DeleteArtifact removes a packed artifact after it has been shipped.
func (c *Client) DeleteArtifact(ctx context.Context, ref *ArtifactRef) error {
	if err := c.post(ctx, "/api/artifacts/delete", ref, nil); err != nil {
		return fmt.Errorf("delete artifact %s: %w", ref.Filename, err)
	}
	return nil
}

// Extract unpacks an archive into destDir for inspection and import.
func (c *Client) Extract(ctx context.Context, archivePath, destDir string) error {
	req := map[string]string{"archive": archivePath, "dest": destDir}
	if err := c.post(ctx, "/api/artifacts/extract", req, nil); err != nil {
		return fmt.Errorf("extract %s: %w", archivePath, err)
	}
	return nil
}

// Precheck validates an extracted archive against the destination course.
// Returns false when the archive fails validation without a transport error.
func (c *Client) Precheck(ctx context.Context, plan RestorePlan) (bool, error) {
	var result struct {
		OK bool `json:"ok"`
	}
	if err := c.post(ctx, "/api/restore/precheck", plan, &result); err != nil {
		return false, fmt.Errorf("precheck restore: %w", err)
	}
	return result.OK, nil
}

// Execute runs the import of an extracted archive into the plan's course.
func (c *Client) Execute(ctx context.Context, plan RestorePlan) error {
	if err := c.post(ctx, "/api/restore/execute", plan, nil); err != nil {
		return fmt.Errorf("execute restore: %w", err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, payload, result any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("course service returned %d: %s", resp.StatusCode, string(body))
	}

	if result != nil {
		return json.Unmarshal(body, result)
	}
	return nil
}

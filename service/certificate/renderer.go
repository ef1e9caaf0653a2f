package certificate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// Renderer calls the PDF rendering sidecar that lays the record out on
// the clinic's letterhead.
type Renderer struct {
	baseURL string
	client  *http.Client
}

func NewRenderer() *Renderer {
	baseURL := os.Getenv("RENDERER_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8600"
	}
	return &Renderer{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Render returns the certificate as PDF bytes.
func (r *Renderer) Render(record *Record) ([]byte, error) {
	payload, err := json.Marshal(record)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest("POST", r.baseURL+"/render/certificate", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("renderer returned status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

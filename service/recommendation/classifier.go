package recommendation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"
)

// FallbackSpecialization is offered when the classifier is unsure or
// unreachable: a general practitioner can always triage.
const FallbackSpecialization = "Терапевт"

// ConfidenceThreshold is the minimum classifier confidence accepted
// before falling back to the general practitioner.
const ConfidenceThreshold = 0.4

// Classifier talks to the text classification sidecar that maps
// free-text symptom descriptions to medical specializations and chat
// messages to dialogue intents.
type Classifier struct {
	baseURL string
	client  *http.Client
}

func NewClassifier() *Classifier {
	baseURL := os.Getenv("CLASSIFIER_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8500"
	}
	return &Classifier{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type prediction struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

func (c *Classifier) predict(endpoint, text string) (prediction, error) {
	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return prediction{}, err
	}

	req, err := http.NewRequest("POST", c.baseURL+endpoint, bytes.NewReader(payload))
	if err != nil {
		return prediction{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return prediction{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return prediction{}, fmt.Errorf("classifier returned status %d", resp.StatusCode)
	}

	var p prediction
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return prediction{}, err
	}
	return p, nil
}

// ClassifySymptoms maps a symptom description to a specialization name.
// Low confidence and transport failures both resolve to the fallback,
// so the caller always gets a bookable answer.
func (c *Classifier) ClassifySymptoms(text string) (string, float64) {
	p, err := c.predict("/classify/symptoms", text)
	if err != nil || p.Confidence < ConfidenceThreshold {
		return FallbackSpecialization, 0
	}
	return p.Label, p.Confidence
}

// ClassifyIntent maps a free-text chat message to a menu intent, or ""
// when the classifier is unsure.
func (c *Classifier) ClassifyIntent(text string) string {
	p, err := c.predict("/classify/intent", text)
	if err != nil || p.Confidence < ConfidenceThreshold {
		return ""
	}
	return p.Label
}

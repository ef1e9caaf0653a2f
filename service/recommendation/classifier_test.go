package recommendation

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestClassifier(handler http.HandlerFunc) (*Classifier, *httptest.Server) {
	server := httptest.NewServer(handler)
	return &Classifier{
		baseURL: server.URL,
		client:  &http.Client{Timeout: time.Second},
	}, server
}

func TestClassifySymptomsConfident(t *testing.T) {
	classifier, server := newTestClassifier(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/classify/symptoms", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"label":      "Кардиолог",
			"confidence": 0.87,
		})
	})
	defer server.Close()

	label, confidence := classifier.ClassifySymptoms("боль в груди")
	require.Equal(t, "Кардиолог", label)
	require.InDelta(t, 0.87, confidence, 0.001)
}

func TestClassifySymptomsLowConfidenceFallsBack(t *testing.T) {
	classifier, server := newTestClassifier(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"label":      "Невролог",
			"confidence": 0.25,
		})
	})
	defer server.Close()

	label, _ := classifier.ClassifySymptoms("что-то болит")
	require.Equal(t, FallbackSpecialization, label)
}

func TestClassifySymptomsUnreachableFallsBack(t *testing.T) {
	classifier, server := newTestClassifier(func(w http.ResponseWriter, r *http.Request) {})
	server.Close()

	label, _ := classifier.ClassifySymptoms("кашель")
	require.Equal(t, FallbackSpecialization, label)
}

func TestClassifyIntentUnsureReturnsEmpty(t *testing.T) {
	classifier, server := newTestClassifier(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"label":      "book_appointment",
			"confidence": 0.1,
		})
	})
	defer server.Close()

	require.Empty(t, classifier.ClassifyIntent("привет"))
}

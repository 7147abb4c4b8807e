package prediction

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/kilianp07/evreco/core/model"
	coreprediction "github.com/kilianp07/evreco/core/prediction"
)

// decodeRatings parses a JSON array of scored stations.
func decodeRatings(data []byte) ([]model.ScoredStation, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '[' {
		return nil, fmt.Errorf("%w: expected a JSON array", coreprediction.ErrMalformedResponse)
	}
	var out []model.ScoredStation
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", coreprediction.ErrMalformedResponse, err)
	}
	return out, nil
}

func tail(b []byte, n int) string {
	b = bytes.TrimSpace(b)
	if len(b) > n {
		b = b[len(b)-n:]
	}
	return string(b)
}

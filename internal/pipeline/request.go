package pipeline

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/iwvelando/budget-optimizer/internal/features"
)

// Legacy row keys used by the first inference payloads.
const (
	legacyChannelPrefix = "채널명_"
	legacyCostKey       = "비용"
	legacyROASKey       = "ROAS"
	legacyTrendKey      = "trend_score"
)

// ErrEmptyPayload is returned for an empty request body.
var ErrEmptyPayload = errors.New("empty payload")

type payload struct {
	TotalBudget *float64                 `json:"total_budget"`
	Duration    *int                     `json:"duration"`
	Channels    []features.ChannelInput  `json:"channels"`
	Features    []map[string]json.Number `json:"features"`
}

// ParseRequest decodes a request. Besides the documented form it accepts the
// legacy {"features": [...]} object and a bare legacy row array, whose rows
// mark their channel with a "채널명_<Name>": 1 key.
func ParseRequest(data []byte) (Request, error) {
	const op = "pipeline.ParseRequest"
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return Request{}, newError(KindInput, op, ErrEmptyPayload)
	}

	if trimmed[0] == '[' {
		var rows []map[string]json.Number
		if err := decode(trimmed, &rows); err != nil {
			return Request{}, newError(KindInput, op, fmt.Errorf("invalid payload: %w", err))
		}
		channels, err := legacyChannels(rows)
		if err != nil {
			return Request{}, newError(KindInput, op, err)
		}
		return Request{Channels: channels}, nil
	}

	var p payload
	if err := decode(trimmed, &p); err != nil {
		return Request{}, newError(KindInput, op, fmt.Errorf("invalid payload: %w", err))
	}
	req := Request{TotalBudget: p.TotalBudget, Duration: p.Duration, Channels: p.Channels}
	if len(req.Channels) == 0 && len(p.Features) > 0 {
		channels, err := legacyChannels(p.Features)
		if err != nil {
			return Request{}, newError(KindInput, op, err)
		}
		req.Channels = channels
	}
	return req, nil
}

func decode(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

func legacyChannels(rows []map[string]json.Number) ([]features.ChannelInput, error) {
	out := make([]features.ChannelInput, 0, len(rows))
	for i, row := range rows {
		var in features.ChannelInput
		for key, raw := range row {
			v, err := raw.Float64()
			if err != nil {
				return nil, fmt.Errorf("row %d: %s: %w", i, key, err)
			}
			switch {
			case strings.HasPrefix(key, legacyChannelPrefix):
				if v == 1 {
					if in.Channel != "" {
						return nil, fmt.Errorf("row %d marks more than one channel", i)
					}
					in.Channel = strings.TrimPrefix(key, legacyChannelPrefix)
				}
			case key == legacyCostKey:
				in.Cost = &v
			case key == legacyROASKey:
				in.ROAS = &v
			case key == legacyTrendKey:
				in.TrendScore = &v
			}
		}
		if in.Channel == "" {
			return nil, fmt.Errorf("row %d marks no channel", i)
		}
		out = append(out, in)
	}
	return out, nil
}

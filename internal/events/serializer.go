// Trackvault - Media Library Track Lifecycle and Streaming Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trackvault

package events

import (
	"fmt"

	"github.com/goccy/go-json"
)

// validator is implemented by all event payloads.
type validator interface {
	Validate() error
}

// Marshal validates an event and serializes it to JSON.
func Marshal(event validator) ([]byte, error) {
	if err := event.Validate(); err != nil {
		return nil, fmt.Errorf("validate event: %w", err)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}

	return data, nil
}

// UnmarshalTrackDeleted decodes a TrackDeleted payload.
func UnmarshalTrackDeleted(data []byte) (*TrackDeleted, error) {
	var event TrackDeleted
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("unmarshal track.deleted: %w", err)
	}
	return &event, nil
}

// UnmarshalTrackRestored decodes a TrackRestored payload.
func UnmarshalTrackRestored(data []byte) (*TrackRestored, error) {
	var event TrackRestored
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("unmarshal track.restored: %w", err)
	}
	return &event, nil
}

// Trackvault - Media Library Track Lifecycle and Streaming Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trackvault

package messaging

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"

	"github.com/tomtom215/trackvault/internal/logging"
)

// watermillLogger adapts the global zerolog logger to Watermill's
// LoggerAdapter interface so publisher internals log through the same
// pipeline as the rest of the application.
type watermillLogger struct {
	fields watermill.LogFields
}

// NewWatermillLogger returns a watermill.LoggerAdapter backed by zerolog.
func NewWatermillLogger() watermill.LoggerAdapter {
	return &watermillLogger{}
}

func (l *watermillLogger) event(ev *zerolog.Event, fields watermill.LogFields) *zerolog.Event {
	for k, v := range l.fields {
		ev = ev.Interface(k, v)
	}
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	return ev
}

func (l *watermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	l.event(logging.Error().Err(err), fields).Msg(msg)
}

func (l *watermillLogger) Info(msg string, fields watermill.LogFields) {
	l.event(logging.Info(), fields).Msg(msg)
}

func (l *watermillLogger) Debug(msg string, fields watermill.LogFields) {
	l.event(logging.Debug(), fields).Msg(msg)
}

func (l *watermillLogger) Trace(msg string, fields watermill.LogFields) {
	l.event(logging.Debug(), fields).Msg(msg)
}

func (l *watermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	merged := make(watermill.LogFields, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &watermillLogger{fields: merged}
}

// Copyright ©2025 The optkit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slsqp

import (
	"errors"
	"io"
	"os"
	"strconv"
)

// ErrUnrecoverable marks a condition the session treats as a programmer
// error. The reporter never terminates the process itself: it returns
// this error and the embedding application picks the termination
// mechanism.
var ErrUnrecoverable = errors.New("slsqp: unrecoverable error")

// Reporter emits diagnostic messages to a caller-chosen sink.
// The zero value is quiet-capable but sinkless; NewReporter binds the
// process-standard diagnostic stream explicitly.
type Reporter struct {
	// Sink receives every emitted message. The writer must be usable from
	// the goroutine driving the session.
	Sink io.Writer
	// Quiet suppresses non-fatal messages. Fatal messages always surface.
	Quiet bool
}

// NewReporter returns a reporter bound to stderr.
func NewReporter() *Reporter {
	return &Reporter{Sink: os.Stderr}
}

func (r *Reporter) sink() io.Writer {
	if r == nil || r.Sink == nil {
		return os.Stderr
	}
	return r.Sink
}

// Report emits msg unless the reporter is quiet.
func (r *Reporter) Report(msg string) {
	if r != nil && r.Quiet {
		return
	}
	_, _ = io.WriteString(r.sink(), msg+"\n")
}

// Reportn emits msg followed by the trimmed decimal form of n.
func (r *Reporter) Reportn(msg string, n int) {
	r.Report(msg + " " + strconv.Itoa(n))
}

// Fatal emits msg even when the reporter is quiet and returns
// ErrUnrecoverable wrapped with the message.
func (r *Reporter) Fatal(msg string) error {
	_, _ = io.WriteString(r.sink(), msg+"\n")
	return errors.Join(ErrUnrecoverable, errors.New(msg))
}

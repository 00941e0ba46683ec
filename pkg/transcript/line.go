package transcript

import "time"

// Line is one recognised segment: the words the engine emitted between
// StartTime and StopTime, in recognition order.
type Line struct {
	startTime time.Duration
	stopTime  time.Duration
	words     []*WordAnnotation
}

// StartTime returns when the segment began, relative to recognition start.
func (l *Line) StartTime() time.Duration { return l.startTime }

// StopTime returns when the segment ended, relative to recognition start.
func (l *Line) StopTime() time.Duration { return l.stopTime }

// Words returns the line's words. The slice must not be modified.
func (l *Line) Words() []*WordAnnotation { return l.words }

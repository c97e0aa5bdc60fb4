package generation

import (
	"go.uber.org/zap"

	"gotsd/internal/logger"
)

// Policy tells the renderer what to do about an unresolved type reference.
type Policy int

const (
	// Substitute renders the opaque type in place of the reference and continues.
	Substitute Policy = iota
	// Abort stops the render; the type being rendered is not emitted.
	Abort
)

func (p Policy) String() string {
	if p == Abort {
		return "abort"
	}
	return "substitute"
}

// ErrorSink is notified exactly once per unresolved type name in a render
// pass. Later references to the same name get the opaque type without a
// second notification.
type ErrorSink interface {
	OnTypeNotFound(name string) Policy
}

// ErrorSinkFunc adapts a function to ErrorSink.
type ErrorSinkFunc func(name string) Policy

func (f ErrorSinkFunc) OnTypeNotFound(name string) Policy { return f(name) }

// SubstituteSink logs every unresolved reference and keeps rendering.
func SubstituteSink(log *zap.SugaredLogger) ErrorSink {
	return ErrorSinkFunc(func(name string) Policy {
		log.Warnw("Type not found, substituting opaque type", logger.FieldType, name)
		return Substitute
	})
}

// AbortSink logs the unresolved reference and stops the render.
func AbortSink(log *zap.SugaredLogger) ErrorSink {
	return ErrorSinkFunc(func(name string) Policy {
		log.Errorw("Type not found", logger.FieldType, name)
		return Abort
	})
}

// RecordingSink remembers every notification before delegating.
type RecordingSink struct {
	Next  ErrorSink
	Names []string
}

func (s *RecordingSink) OnTypeNotFound(name string) Policy {
	s.Names = append(s.Names, name)
	if s.Next == nil {
		return Substitute
	}
	return s.Next.OnTypeNotFound(name)
}

package motor

import (
	"log/slog"

	"github.com/talgya/sentinel/internal/world"
)

// Actuator is the set of primitive effectors the executor drives. None of
// them are assumed to be instantaneous; pacing belongs to the Queue.
type Actuator interface {
	Chat(text string) error
	SetLook(yaw, pitch float32) error
	Jump() error
	SetSprint(on bool) error
	SetSneak(on bool) error
	Walk(on bool) error
	BeginGoto(target world.BlockPos) error
}

// LogActuator only logs what it would do. Used when no game session is
// attached.
type LogActuator struct{}

func (LogActuator) Chat(text string) error {
	slog.Info("chat", "text", text)
	return nil
}

func (LogActuator) SetLook(yaw, pitch float32) error {
	slog.Debug("look", "yaw", yaw, "pitch", pitch)
	return nil
}

func (LogActuator) Jump() error {
	slog.Debug("jump")
	return nil
}

func (LogActuator) SetSprint(on bool) error {
	slog.Debug("sprint", "on", on)
	return nil
}

func (LogActuator) SetSneak(on bool) error {
	slog.Debug("sneak", "on", on)
	return nil
}

func (LogActuator) Walk(on bool) error {
	slog.Debug("walk", "on", on)
	return nil
}

func (LogActuator) BeginGoto(target world.BlockPos) error {
	slog.Info("goto", "target", target.String())
	return nil
}

package motor

import (
	"log/slog"
	"sync"

	"github.com/talgya/sentinel/internal/entropy"
	"github.com/talgya/sentinel/internal/world"
)

const wanderRadius = 25

type slotState uint8

const (
	slotIdle slotState = iota
	slotRunning
)

// slot holds the single in-flight timed action.
type slot struct {
	state     slotState
	cmd       Command
	remaining int
}

func (s slot) running() bool { return s.state == slotRunning }

// Stats is a point-in-time view of the executor.
type Stats struct {
	Tick      uint64 `json:"tick"`
	Executed  uint64 `json:"executed"`
	Pending   int    `json:"pending"`
	Active    string `json:"active,omitempty"`
	Remaining int    `json:"remaining,omitempty"`
	Sprinting bool   `json:"sprinting"`
	Sneaking  bool   `json:"sneaking"`
	Walking   bool   `json:"walking"`
}

// Queue is the action queue and its executor. Queue and QueueUrgent may be
// called from any goroutine; Step is called once per tick.
type Queue struct {
	mu       sync.Mutex
	pending  []Command
	slot     slot
	tick     uint64
	executed uint64
	idle     int

	nearbyPlayers bool
	position      world.Vec3
	yaw, pitch    float32
	sprinting     bool
	sneaking      bool
	walking       bool

	fidget FidgetConfig
	rng    entropy.Source
	look   *Look
	act    Actuator
}

// NewQueue creates an executor driving act. A nil rng uses crypto/rand.
func NewQueue(act Actuator, rng entropy.Source, fidget FidgetConfig) *Queue {
	if rng == nil {
		rng = entropy.Crypto{}
	}
	if act == nil {
		act = LogActuator{}
	}
	return &Queue{
		fidget: fidget,
		rng:    rng,
		look:   NewLook(int64(rng.Float() * (1 << 31))),
		act:    act,
	}
}

// Queue appends cmd to the back of the pending queue.
func (q *Queue) Queue(cmd Command) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, cmd)
}

// QueueUrgent puts cmd at the front of the pending queue.
func (q *Queue) QueueUrgent(cmd Command) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, Command{})
	copy(q.pending[1:], q.pending)
	q.pending[0] = cmd
}

// Clear drops all pending commands and the active action, releasing any
// held movement keys.
func (q *Queue) Clear() {
	q.mu.Lock()
	q.pending = nil
	q.slot = slot{}
	effects := q.release()
	q.mu.Unlock()

	q.run(effects)
}

// Len is the number of pending commands.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Busy reports whether a timed action is running.
func (q *Queue) Busy() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.slot.running()
}

// SetFidget replaces the fidget configuration.
func (q *Queue) SetFidget(cfg FidgetConfig) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.fidget = cfg
}

// UpdateContext feeds the executor the latest perceived position and
// whether players are close enough to notice fidgets.
func (q *Queue) UpdateContext(pos world.Vec3, yaw, pitch float32, nearbyPlayers bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.position = pos
	q.yaw, q.pitch = yaw, pitch
	q.nearbyPlayers = nearbyPlayers
}

// Stats returns executor counters and state.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	st := Stats{
		Tick:      q.tick,
		Executed:  q.executed,
		Pending:   len(q.pending),
		Sprinting: q.sprinting,
		Sneaking:  q.sneaking,
		Walking:   q.walking,
	}
	if q.slot.running() {
		st.Active = q.slot.cmd.String()
		st.Remaining = q.slot.remaining
	}
	return st
}

// effect is an actuator call deferred until the lock is released.
type effect func(Actuator) error

// Step advances the executor one tick. It returns the command dequeued this
// tick, if any.
func (q *Queue) Step() (Command, bool) {
	q.mu.Lock()
	cmd, ok, effects := q.step()
	q.mu.Unlock()

	q.run(effects)
	return cmd, ok
}

func (q *Queue) step() (Command, bool, []effect) {
	q.tick++
	q.fidgets()

	if q.slot.running() {
		q.idle = 0
		q.slot.remaining--
		if q.slot.remaining > 0 {
			return Command{}, false, nil
		}
		done := q.slot.cmd
		q.slot = slot{}
		return Command{}, false, q.finish(done)
	}

	if len(q.pending) == 0 {
		q.idle++
		return Command{}, false, nil
	}
	cmd := q.pending[0]
	q.pending[0] = Command{}
	q.pending = q.pending[1:]
	q.executed++
	q.idle = 0

	return cmd, true, q.start(cmd)
}

// start applies cmd's immediate effect and installs timed commands.
func (q *Queue) start(cmd Command) []effect {
	install := func(c Command) {
		q.slot = slot{state: slotRunning, cmd: c, remaining: max(c.Ticks, 1)}
	}

	switch cmd.Kind {
	case CmdChat:
		text := cmd.Text
		return []effect{func(a Actuator) error { return a.Chat(text) }}

	case CmdLookAt:
		q.yaw, q.pitch = cmd.Yaw, clamp32(cmd.Pitch, -90, 90)
		return []effect{q.lookEffect()}

	case CmdRandomLook:
		dy, dp := q.look.Glance(q.rng)
		q.yaw += dy
		q.pitch = clamp32(q.pitch+dp, -pitchLimit, pitchLimit)
		return []effect{q.lookEffect()}

	case CmdJump:
		return []effect{Actuator.Jump}

	case CmdSprint:
		install(cmd)
		q.sprinting = true
		return []effect{func(a Actuator) error { return a.SetSprint(true) }}

	case CmdSneakPulse:
		install(cmd)
		q.sneaking = true
		return []effect{func(a Actuator) error { return a.SetSneak(true) }}

	case CmdWalkForward:
		install(cmd)
		q.walking = true
		return []effect{func(a Actuator) error { return a.Walk(true) }}

	case CmdFlee:
		install(Sprint(cmd.Ticks))
		q.yaw, q.pitch = cmd.Yaw, 0
		q.sprinting = true
		slog.Info("fleeing", "yaw", cmd.Yaw)
		return []effect{q.lookEffect(), func(a Actuator) error { return a.SetSprint(true) }}

	case CmdGoto:
		return q.gotoEffect(cmd.Target)

	case CmdWander:
		b := q.position.Block()
		target := b.Offset(
			entropy.IntBetween(q.rng, -wanderRadius, wanderRadius), 0,
			entropy.IntBetween(q.rng, -wanderRadius, wanderRadius))
		return q.gotoEffect(target)

	case CmdLog:
		slog.Info("motor", "msg", cmd.Text)
	}
	return nil
}

// finish runs the completion side effect of a timed command.
func (q *Queue) finish(cmd Command) []effect {
	switch cmd.Kind {
	case CmdSprint:
		q.sprinting = false
		return []effect{func(a Actuator) error { return a.SetSprint(false) }}
	case CmdSneakPulse:
		q.sneaking = false
		return []effect{func(a Actuator) error { return a.SetSneak(false) }}
	case CmdWalkForward:
		q.walking = false
		return []effect{func(a Actuator) error { return a.Walk(false) }}
	}
	return nil
}

// release turns off every held key.
func (q *Queue) release() []effect {
	var out []effect
	if q.sprinting {
		q.sprinting = false
		out = append(out, func(a Actuator) error { return a.SetSprint(false) })
	}
	if q.sneaking {
		q.sneaking = false
		out = append(out, func(a Actuator) error { return a.SetSneak(false) })
	}
	if q.walking {
		q.walking = false
		out = append(out, func(a Actuator) error { return a.Walk(false) })
	}
	return out
}

func (q *Queue) lookEffect() effect {
	yaw, pitch := q.yaw, q.pitch
	return func(a Actuator) error { return a.SetLook(yaw, pitch) }
}

func (q *Queue) gotoEffect(target world.BlockPos) []effect {
	q.walking = true
	return []effect{func(a Actuator) error { return a.BeginGoto(target) }}
}

func (q *Queue) run(effects []effect) {
	for _, e := range effects {
		if err := e(q.act); err != nil {
			slog.Warn("actuator failed", "error", err)
		}
	}
}

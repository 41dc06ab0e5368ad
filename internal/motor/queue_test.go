package motor

import (
	"fmt"
	"sync"
	"testing"

	"github.com/talgya/sentinel/internal/entropy"
	"github.com/talgya/sentinel/internal/world"
)

type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(format string, args ...any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
	return nil
}

func (r *recorder) Chat(text string) error           { return r.add("chat %s", text) }
func (r *recorder) SetLook(yaw, pitch float32) error { return r.add("look %.0f %.0f", yaw, pitch) }
func (r *recorder) Jump() error                      { return r.add("jump") }
func (r *recorder) SetSprint(on bool) error          { return r.add("sprint %v", on) }
func (r *recorder) SetSneak(on bool) error           { return r.add("sneak %v", on) }
func (r *recorder) Walk(on bool) error               { return r.add("walk %v", on) }
func (r *recorder) BeginGoto(t world.BlockPos) error { return r.add("goto %d %d %d", t.X, t.Y, t.Z) }

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// quiet never fidgets.
func quiet() FidgetConfig {
	return FidgetConfig{Cap: 5}
}

func newTestQueue() (*Queue, *recorder) {
	rec := &recorder{}
	return NewQueue(rec, entropy.NewSeeded(1), quiet()), rec
}

func TestOneCommandPerStepFIFO(t *testing.T) {
	q, rec := newTestQueue()
	q.Queue(Chat("first"))
	q.Queue(Chat("second"))

	cmd, ok := q.Step()
	if !ok || cmd.Text != "first" {
		t.Fatalf("step 1 = %v, %v", cmd, ok)
	}
	if got := rec.list(); len(got) != 1 || got[0] != "chat first" {
		t.Fatalf("after step 1 calls = %v", got)
	}
	cmd, _ = q.Step()
	if cmd.Text != "second" {
		t.Errorf("step 2 = %v", cmd)
	}
	if _, ok := q.Step(); ok {
		t.Error("step 3 dequeued from an empty queue")
	}
}

func TestUrgentJumpsAhead(t *testing.T) {
	q, _ := newTestQueue()
	q.Queue(Chat("a"))
	q.Queue(Chat("b"))
	q.Step()
	q.QueueUrgent(Chat("urgent"))

	cmd, _ := q.Step()
	if cmd.Text != "urgent" {
		t.Errorf("step 2 = %v, want urgent", cmd)
	}
	cmd, _ = q.Step()
	if cmd.Text != "b" {
		t.Errorf("step 3 = %v, want b", cmd)
	}
}

func TestTimedActionBlocksQueue(t *testing.T) {
	q, rec := newTestQueue()
	q.Queue(Sprint(40))
	q.Queue(Chat("after"))

	if cmd, ok := q.Step(); !ok || cmd.Kind != CmdSprint {
		t.Fatalf("install step = %v, %v", cmd, ok)
	}
	for i := 1; i <= 39; i++ {
		if cmd, ok := q.Step(); ok {
			t.Fatalf("step %d dequeued %v while sprint active", i, cmd)
		}
		if !q.Busy() {
			t.Fatalf("sprint ended early at step %d", i)
		}
	}
	if _, ok := q.Step(); ok {
		t.Fatal("completion step dequeued a command")
	}
	if q.Busy() {
		t.Fatal("sprint still active after 40 steps")
	}
	if q.Stats().Sprinting {
		t.Error("sprinting flag not cleared on completion")
	}
	if cmd, ok := q.Step(); !ok || cmd.Text != "after" {
		t.Errorf("next step = %v, %v; want chat after", cmd, ok)
	}

	got := rec.list()
	want := []string{"sprint true", "sprint false", "chat after"}
	if len(got) != len(want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("call %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestFleeInstallsSprint(t *testing.T) {
	q, rec := newTestQueue()
	q.Queue(Flee(90))
	q.Step()
	st := q.Stats()
	if st.Active != "sprint(40)" || st.Remaining != FleeTicks || !st.Sprinting {
		t.Errorf("stats after flee = %+v", st)
	}
	if got := rec.list(); len(got) != 2 || got[0] != "look 90 0" {
		t.Errorf("calls = %v", got)
	}
}

func TestLookAtClampsPitch(t *testing.T) {
	q, rec := newTestQueue()
	q.Queue(LookAt(10, 120))
	q.Step()
	if got := rec.list(); got[0] != "look 10 90" {
		t.Errorf("calls = %v", got)
	}
}

func TestRandomLookStaysInRange(t *testing.T) {
	q, _ := newTestQueue()
	for i := 0; i < 200; i++ {
		q.Queue(RandomLook())
		q.Step()
		q.mu.Lock()
		p := q.pitch
		q.mu.Unlock()
		if p < -pitchLimit || p > pitchLimit {
			t.Fatalf("pitch %v out of range after %d looks", p, i)
		}
	}
}

func TestWanderTargetsNearby(t *testing.T) {
	q, rec := newTestQueue()
	q.UpdateContext(world.Vec3{X: 100, Y: 64, Z: -50}, 0, 0, false)
	q.Queue(Wander())
	q.Step()
	var x, y, z int
	if _, err := fmt.Sscanf(rec.list()[0], "goto %d %d %d", &x, &y, &z); err != nil {
		t.Fatal(err)
	}
	if x < 75 || x >= 125 || y != 64 || z < -75 || z >= -25 {
		t.Errorf("wander target = %d %d %d", x, y, z)
	}
}

func TestFidgetsFire(t *testing.T) {
	q := NewQueue(&recorder{}, entropy.Constant(0), DefaultFidget())
	q.UpdateContext(world.Vec3{}, 0, 0, true)
	q.Step()
	// RandomLook dequeued this tick; sneak pulse and jump remain.
	if n := q.Len(); n != 2 {
		t.Errorf("pending after fidget tick = %d, want 2", n)
	}
}

func TestFidgetsSuppressed(t *testing.T) {
	t.Run("over cap", func(t *testing.T) {
		q := NewQueue(&recorder{}, entropy.Constant(0), FidgetConfig{LookRate: 1, JumpRate: 1, Cap: 5})
		for i := 0; i < 6; i++ {
			q.Queue(Log("x"))
		}
		q.Step()
		if n := q.Len(); n != 5 {
			t.Errorf("pending = %d, want 5 (no fidgets added)", n)
		}
	})
	t.Run("action active", func(t *testing.T) {
		q := NewQueue(&recorder{}, entropy.Constant(0), FidgetConfig{LookRate: 1, Cap: 5})
		q.Queue(Sprint(10))
		q.Step() // fidget then install: queue holds RandomLook
		before := q.Len()
		for i := 0; i < 5; i++ {
			q.Step()
		}
		if n := q.Len(); n != before {
			t.Errorf("pending grew from %d to %d while sprinting", before, n)
		}
	})
}

func TestAntiAFKJump(t *testing.T) {
	q, rec := newTestQueue()
	q.SetFidget(FidgetConfig{Cap: 5, AFKTicks: 10})
	for i := 0; i < 12; i++ {
		q.Step()
	}
	found := false
	for _, c := range rec.list() {
		if c == "jump" {
			found = true
		}
	}
	if !found {
		t.Errorf("no anti-AFK jump, calls = %v", rec.list())
	}
}

func TestClearReleasesKeys(t *testing.T) {
	q, rec := newTestQueue()
	q.Queue(SneakPulse(10))
	q.Queue(Chat("never"))
	q.Step()
	q.Clear()
	if q.Len() != 0 || q.Busy() {
		t.Error("Clear left state behind")
	}
	got := rec.list()
	if got[len(got)-1] != "sneak false" {
		t.Errorf("calls = %v", got)
	}
}

func TestConcurrentProducers(t *testing.T) {
	q, _ := newTestQueue()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if j%2 == 0 {
					q.Queue(Log("n"))
				} else {
					q.QueueUrgent(Log("u"))
				}
			}
		}(i)
	}
	wg.Wait()
	if n := q.Len(); n != 400 {
		t.Errorf("Len = %d, want 400", n)
	}
}

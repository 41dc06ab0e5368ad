package world

import "testing"

func TestPhaseOf(t *testing.T) {
	tests := []struct {
		ticks int64
		want  TimeOfDay
	}{
		{0, Morning},
		{6000, Morning},
		{6001, Afternoon},
		{12500, Evening},
		{18000, Night},
		{23500, Dawn},
		{24000 + 18000, Night},
	}
	for _, tt := range tests {
		if got := PhaseOf(tt.ticks); got != tt.want {
			t.Errorf("PhaseOf(%d) = %v, want %v", tt.ticks, got, tt.want)
		}
	}
}

func TestDangerLevel(t *testing.T) {
	s := Snapshot{
		DayTime: 18000,
		Light:   3,
		Raining: true,
		Entities: []Entity{
			{Name: "zombie", Kind: EntityHostile},
			{Name: "creeper", Kind: EntityExplosive},
			{Name: "Steve", Kind: EntityPlayer},
		},
	}
	// night 3 + hostiles 2 + dark 2 + rain 1
	if got := s.DangerLevel(); got != 8 {
		t.Errorf("DangerLevel() = %d, want 8", got)
	}

	for i := 0; i < 10; i++ {
		s.Entities = append(s.Entities, Entity{Kind: EntityHostile})
	}
	if got := s.DangerLevel(); got != 10 {
		t.Errorf("DangerLevel() = %d, want capped at 10", got)
	}
}

func TestNearestExplosive(t *testing.T) {
	s := Snapshot{Entities: []Entity{
		{Name: "creeper", Kind: EntityExplosive, Distance: 7},
		{Name: "zombie", Kind: EntityHostile, Distance: 1},
		{Name: "creeper", Kind: EntityExplosive, Distance: 2.5},
	}}
	e, ok := s.NearestExplosive()
	if !ok || e.Distance != 2.5 {
		t.Fatalf("NearestExplosive() = %+v, %v", e, ok)
	}

	empty := Snapshot{}
	if _, ok := empty.NearestExplosive(); ok {
		t.Error("expected no explosive in empty snapshot")
	}
}

func TestBlock(t *testing.T) {
	got := Vec3{X: -0.5, Y: 64.9, Z: 3.2}.Block()
	want := BlockPos{X: -1, Y: 64, Z: 3}
	if got != want {
		t.Errorf("Block() = %v, want %v", got, want)
	}
}

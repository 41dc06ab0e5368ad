package motor

import (
	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/sentinel/internal/entropy"
)

const (
	glanceYaw   = 60 // Max yaw swing of a random look, degrees
	glancePitch = 20 // Max pitch swing of a random look, degrees
	pitchLimit  = 70 // Heads don't tilt further than this during fidgets
	lookStep    = 0.37
)

// Look produces smooth head movements. Consecutive glances follow a noise
// field so the head drifts instead of snapping between unrelated angles.
type Look struct {
	noise opensimplex.Noise
	t     float64
}

// NewLook creates a head-movement generator for the given seed.
func NewLook(seed int64) *Look {
	return &Look{noise: opensimplex.NewNormalized(seed)}
}

// Glance returns a yaw and pitch delta within ±60° and ±20°.
func (l *Look) Glance(src entropy.Source) (dyaw, dpitch float32) {
	l.t += lookStep
	// NewNormalized yields [0, 1); shift to [-1, 1).
	ny := l.noise.Eval2(l.t, 0)*2 - 1
	np := l.noise.Eval2(0, l.t)*2 - 1
	jy := entropy.Between(src, -1, 1)
	jp := entropy.Between(src, -1, 1)

	dyaw = float32(clamp(0.6*ny+0.4*jy, -1, 1) * glanceYaw)
	dpitch = float32(clamp(0.6*np+0.4*jp, -1, 1) * glancePitch)
	return dyaw, dpitch
}

func clamp(v, lo, hi float64) float64 {
	return max(lo, min(hi, v))
}

func clamp32(v, lo, hi float32) float32 {
	return max(lo, min(hi, v))
}

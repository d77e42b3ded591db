package particle

// maxPrealloc bounds the initial slice allocation for very large pools.
const maxPrealloc = 4096

// Pool is the bounded collection of live particles owned by one engine.
// It is not safe for concurrent use; the Engine serialises access.
type Pool struct {
	max       int
	particles []Particle
	nextID    uint64
}

// NewPool creates a pool holding at most max particles. A non-positive max
// yields a pool that accepts nothing.
func NewPool(max int) *Pool {
	if max < 0 {
		max = 0
	}
	return &Pool{
		max:       max,
		particles: make([]Particle, 0, min(max, maxPrealloc)),
	}
}

// Cap returns the maximum number of live particles.
func (p *Pool) Cap() int {
	return p.max
}

// Count returns the number of live particles.
func (p *Pool) Count() int {
	return len(p.particles)
}

// Full reports whether the pool is at capacity.
func (p *Pool) Full() bool {
	return len(p.particles) >= p.max
}

// Add inserts a particle and assigns it a fresh ID. When the pool is full the
// particle is dropped and Add returns false.
func (p *Pool) Add(pt Particle) bool {
	if p.Full() {
		return false
	}
	p.nextID++
	pt.ID = p.nextID
	p.particles = append(p.particles, pt)
	return true
}

// Integrate advances every particle by one tick and removes the ones whose
// life dropped to zero or below. It returns the number removed.
func (p *Pool) Integrate(gravity, friction float64) int {
	alive := p.particles[:0]
	for i := range p.particles {
		pt := &p.particles[i]
		pt.step(gravity, friction)
		if pt.Alive() {
			alive = append(alive, *pt)
		}
	}

	removed := len(p.particles) - len(alive)
	p.particles = alive
	return removed
}

// Clear removes every particle.
func (p *Pool) Clear() {
	p.particles = p.particles[:0]
}

// Each calls fn with a copy of every live particle.
func (p *Pool) Each(fn func(Particle)) {
	for _, pt := range p.particles {
		fn(pt)
	}
}

// Snapshot returns a copy of the live particles.
func (p *Pool) Snapshot() []Particle {
	out := make([]Particle, len(p.particles))
	copy(out, p.particles)
	return out
}

// Package seed derives the shared simulation seed of a session.
//
// The generator is NOT cryptographic. Its inputs (script length, script path
// length) are weak entropy sources; the output only needs to vary between
// casual sessions and repeat for identical inputs so replays can be
// reproduced. Nothing here should be used where unpredictability matters.
package seed

// Generator is a small xorshift-style generator whose state is perturbed,
// never replaced, by each Seed call.
type Generator struct {
	state uint64
}

const initialState = 0x853c49e6748fea9b

// New returns a generator in its fixed initial state.
func New() *Generator {
	return &Generator{state: initialState}
}

// Seed folds v into the current state.
func (g *Generator) Seed(v uint64) {
	g.state = mix(g.state ^ mix(v+0x9e3779b97f4a7c15))
}

// Uint64 advances the generator and returns the next value.
func (g *Generator) Uint64() uint64 {
	g.state += 0x9e3779b97f4a7c15
	return mix(g.state)
}

// Uint32 returns the high half of the next value.
func (g *Generator) Uint32() uint32 {
	return uint32(g.Uint64() >> 32)
}

// mix is the splitmix64 finalizer.
func mix(z uint64) uint64 {
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// DeriveSeed seeds a fresh generator with inputs in order and draws once.
func DeriveSeed(inputs ...uint64) uint32 {
	g := New()
	for _, v := range inputs {
		g.Seed(v)
	}
	return g.Uint32()
}

// ForSession derives the session seed from the script text and the path it was loaded from.
func ForSession(scriptText, scriptPath string) uint32 {
	return DeriveSeed(uint64(len(scriptText)), uint64(len(scriptPath)))
}

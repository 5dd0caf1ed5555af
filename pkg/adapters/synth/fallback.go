package synth

import "context"

// Fallback chains synthesizers and picks the first whose capability set
// covers the requested language. When none does, it degrades to a
// text-only result instead of failing.
type Fallback struct {
	chain []Synthesizer
}

func NewFallback(chain ...Synthesizer) *Fallback {
	out := make([]Synthesizer, 0, len(chain))
	for _, s := range chain {
		if s != nil {
			out = append(out, s)
		}
	}
	return &Fallback{chain: out}
}

func (f *Fallback) Name() string { return "fallback_chain" }

// Languages returns the union of the chain's capability sets.
func (f *Fallback) Languages() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, s := range f.chain {
		for _, l := range s.Languages() {
			if _, ok := seen[l]; ok {
				continue
			}
			seen[l] = struct{}{}
			out = append(out, l)
		}
	}
	return out
}

func (f *Fallback) Synthesize(ctx context.Context, text, lang string) (Result, error) {
	for _, s := range f.chain {
		if !Supports(s, lang) {
			continue
		}
		res, err := s.Synthesize(ctx, text, lang)
		if err != nil {
			// Try the next capable adapter before degrading.
			continue
		}
		return res, nil
	}
	return Result{TextOnly: true}, nil
}

var _ Synthesizer = (*Fallback)(nil)

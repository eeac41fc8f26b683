package cycles

import (
	"github.com/somnolab/hypnocycle/pkg/hypnogram"
)

// AnnotatedRecord is a stage record plus the index of the cycle it
// falls within, nil when it lies outside every cycle.
type AnnotatedRecord struct {
	hypnogram.Record
	Cycle *int `json:"cycle,omitempty"`
}

// Annotated is a stage sequence carrying the auxiliary cycle-index
// channel. Stage values are never altered by annotation.
type Annotated []AnnotatedRecord

// Sequence strips the cycle channel, returning the plain stage sequence.
func (a Annotated) Sequence() hypnogram.Sequence {
	s := make(hypnogram.Sequence, len(a))
	for i, rec := range a {
		s[i] = rec.Record
	}
	return s
}

// Annotate attaches cycle indices to a copy of the sequence. A record
// belongs to the cycle whose span [onset, offset) contains its onset,
// so the record opening a long wake that closed a cycle stays outside
// it. Annotating with an empty cycle list yields all-nil indices, and
// re-annotating the stripped result with the same cycles reproduces
// the annotation exactly.
func Annotate(s hypnogram.Sequence, cycles []Cycle) (Annotated, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	out := make(Annotated, len(s))
	for i, rec := range s {
		out[i] = AnnotatedRecord{Record: rec}
		for _, c := range cycles {
			if rec.Onset >= c.Onset && rec.Onset < c.Offset {
				idx := c.Index
				out[i].Cycle = &idx
				break
			}
		}
	}
	return out, nil
}

package tracker

import "github.com/Temutjin2k/geo-tracker/internal/domain/models"

// pathBuffer is the traveled path of one participant.
// limit <= 0 keeps every sample; otherwise the oldest samples are overwritten.
type pathBuffer struct {
	buf   []models.Position
	start int
	size  int
	limit int
}

func newPathBuffer(limit int) *pathBuffer {
	p := &pathBuffer{limit: limit}
	if limit > 0 {
		p.buf = make([]models.Position, limit)
	}
	return p
}

func (p *pathBuffer) Append(pos models.Position) {
	if p.limit <= 0 {
		p.buf = append(p.buf, pos)
		p.size++
		return
	}

	if p.size < p.limit {
		p.buf[(p.start+p.size)%p.limit] = pos
		p.size++
		return
	}

	p.buf[p.start] = pos
	p.start = (p.start + 1) % p.limit
}

func (p *pathBuffer) Len() int {
	return p.size
}

// Samples returns the path oldest first as a new slice
func (p *pathBuffer) Samples() []models.Position {
	out := make([]models.Position, p.size)
	if p.limit <= 0 {
		copy(out, p.buf)
		return out
	}

	for i := range p.size {
		out[i] = p.buf[(p.start+i)%p.limit]
	}
	return out
}

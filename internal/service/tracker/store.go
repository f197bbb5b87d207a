package tracker

import (
	"context"
	"slices"

	"github.com/Temutjin2k/geo-tracker/internal/domain/models"
	"github.com/Temutjin2k/geo-tracker/internal/domain/types"
	"github.com/Temutjin2k/geo-tracker/pkg/logger"
	wrap "github.com/Temutjin2k/geo-tracker/pkg/logger/wrapper"
	"github.com/Temutjin2k/geo-tracker/pkg/metrics"
)

// Participant is a read-only copy of one participant record
type Participant struct {
	ID           string
	DisplayName  string
	LastPosition models.Position
	Path         []models.Position
	Marker       Handle
	PathLine     Handle
	IsLocal      bool
}

// record owns the marker and path line of one participant; both live and die with it
type record struct {
	displayName string
	last        models.Position
	path        *pathBuffer
	marker      Handle
	line        Handle
}

// Store maps participant ids to their last position, path and drawn objects.
// It is not safe for concurrent use; the Session owns it.
type Store struct {
	localID      string
	records      map[string]*record
	renderer     Renderer
	destinations DestinationProvider
	maxPath      int
	log          logger.Logger
}

// NewStore creates an empty store. maxPath <= 0 keeps whole paths.
func NewStore(renderer Renderer, destinations DestinationProvider, maxPath int, log logger.Logger) *Store {
	return &Store{
		records:      make(map[string]*record),
		renderer:     renderer,
		destinations: destinations,
		maxPath:      maxPath,
		log:          log,
	}
}

// SetLocalID sets the channel identifier of this participant
func (s *Store) SetLocalID(id string) {
	s.localID = id
}

func (s *Store) LocalID() string {
	return s.localID
}

func (s *Store) isLocal(id string) bool {
	return s.localID != "" && id == s.localID
}

// ApplyUpdate records a position received for id and reports whether a new record was created.
func (s *Store) ApplyUpdate(ctx context.Context, id string, pos models.Position, displayName string) bool {
	ctx = wrap.WithParticipantID(wrap.WithAction(ctx, types.ActionApplyUpdate), id)
	local := s.isLocal(id)

	rec, exists := s.records[id]
	if !exists {
		if displayName == "" {
			displayName = types.DefaultUserName
		}

		rec = &record{
			displayName: displayName,
			last:        pos,
			path:        newPathBuffer(s.maxPath),
		}
		rec.path.Append(pos)

		style := RemotePathStyle
		if local {
			style = LocalPathStyle
		}

		rec.marker = s.renderer.PlaceMarker(pos, s.popup(rec, local))
		rec.line = s.renderer.DrawPath(rec.path.Samples(), style)
		s.records[id] = rec

		metrics.ParticipantsGauge.Set(float64(len(s.records)))
		s.log.Debug(ctx, "participant first seen", "name", displayName, "position", pos.String())
	} else {
		rec.last = pos
		rec.path.Append(pos)

		s.renderer.UpdateMarker(rec.marker, pos)
		s.renderer.SetPopupContent(rec.marker, s.popup(rec, local))
		s.renderer.ExtendPath(rec.line, rec.path.Samples())
	}

	if local {
		s.renderer.Recenter(pos)
	}

	return !exists
}

// popup builds the marker label; the local participant also gets its distance to the destination
func (s *Store) popup(rec *record, local bool) Popup {
	p := Popup{Title: rec.displayName}
	if !local || s.destinations == nil {
		return p
	}

	if dest, ok := s.destinations.Destination(); ok {
		km := HaversineDistance(rec.last, dest)
		p.DistanceKm = &km
	}
	return p
}

// RemoveParticipant drops the record of id with its marker and path line.
// Unknown ids are ignored; the result reports whether anything was removed.
func (s *Store) RemoveParticipant(ctx context.Context, id string) bool {
	rec, ok := s.records[id]
	if !ok {
		return false
	}

	s.renderer.RemoveLayer(rec.marker)
	s.renderer.RemoveLayer(rec.line)
	delete(s.records, id)

	metrics.ParticipantsGauge.Set(float64(len(s.records)))
	s.log.Debug(wrap.WithParticipantID(wrap.WithAction(ctx, types.ActionRemoveParticipant), id), "participant removed")

	return true
}

// Participant returns a copy of the record for id
func (s *Store) Participant(id string) (Participant, bool) {
	rec, ok := s.records[id]
	if !ok {
		return Participant{}, false
	}

	return Participant{
		ID:           id,
		DisplayName:  rec.displayName,
		LastPosition: rec.last,
		Path:         rec.path.Samples(),
		Marker:       rec.marker,
		PathLine:     rec.line,
		IsLocal:      s.isLocal(id),
	}, true
}

// Participants returns copies of all records ordered by id
func (s *Store) Participants() []Participant {
	ids := make([]string, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	out := make([]Participant, 0, len(ids))
	for _, id := range ids {
		p, _ := s.Participant(id)
		out = append(out, p)
	}
	return out
}

func (s *Store) Len() int {
	return len(s.records)
}

// Package domain contains core concepts of the presence system.
// This file defines Participant entities and their travel modes.
// No runtime, network, or UI logic should be added here.
package domain

import "strings"

const DefaultName = "Anonymous"

type Mode string

const (
	ModeCar  Mode = "car"
	ModeWalk Mode = "walk"
)

// ParseMode maps a raw mode to a known one.
// An empty mode silently means car, an unknown one also falls back to car but reports false.
func ParseMode(raw string) (Mode, bool) {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case ModeCar, "":
		return ModeCar, true
	case ModeWalk:
		return ModeWalk, true
	default:
		return ModeCar, false
	}
}

// Participant is the presence record of one live connection inside a room.
// Distance and Eta are relative to the participant who reported last.
type Participant struct {
	ID       string
	Name     string
	Mode     Mode
	Position *Point
	Heading  *float64
	Distance *string
	Eta      *string
	Route    [][2]float64
}

func NewParticipant(id, name string, mode Mode) *Participant {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultName
	}
	return &Participant{ID: id, Name: name, Mode: mode}
}

// ResetQuote forgets the values computed in a previous round.
func (p *Participant) ResetQuote() {
	p.Distance = nil
	p.Eta = nil
	p.Route = nil
}

// ApplyQuote stores a successful quote for this participant.
func (p *Participant) ApplyQuote(q RouteQuote) {
	distance, eta := q.Distance(), q.Eta()
	p.Distance = &distance
	p.Eta = &eta
	p.Route = q.Geometry
}

// ApplyFailure marks the pairwise value as not available.
func (p *Participant) ApplyFailure() {
	na := NotAvailable
	p.Distance = &na
	p.Eta = &na
	p.Route = nil
}

// MarkSelf sets the zero distance of the reporting participant.
func (p *Participant) MarkSelf() {
	distance, eta := ZeroDistance, ZeroEta
	p.Distance = &distance
	p.Eta = &eta
	p.Route = nil
}

// ParticipantView is the immutable broadcast form of a Participant.
type ParticipantView struct {
	UserID   string       `json:"userId"`
	Name     string       `json:"name"`
	Lat      *float64     `json:"lat"`
	Lng      *float64     `json:"lng"`
	Heading  *float64     `json:"heading,omitempty"`
	Mode     Mode         `json:"mode"`
	Distance *string      `json:"distance"`
	Eta      *string      `json:"eta"`
	Route    [][2]float64 `json:"route,omitempty"`
}

// View copies the participant so that later rounds can't alter a broadcast value.
func (p *Participant) View() ParticipantView {
	v := ParticipantView{
		UserID: p.ID,
		Name:   p.Name,
		Mode:   p.Mode,
	}
	if p.Position != nil {
		lat, lng := p.Position.Lat, p.Position.Lng
		v.Lat, v.Lng = &lat, &lng
	}
	if p.Heading != nil {
		h := *p.Heading
		v.Heading = &h
	}
	if p.Distance != nil {
		d := *p.Distance
		v.Distance = &d
	}
	if p.Eta != nil {
		e := *p.Eta
		v.Eta = &e
	}
	if len(p.Route) > 0 {
		v.Route = append([][2]float64(nil), p.Route...)
	}
	return v
}

package wave

import (
	"time"

	"wavescope/pkg/model"
)

// MaxPoints is the number of pivots a chart accepts. Confirming a pivot once
// the list is full is a no-op; the user must clear and start over.
const MaxPoints = 3

// Role identifies which leg boundary a pivot marks. Roles are never chosen by
// the user: they are implied by position in the confirmation sequence, so the
// first confirmed point is always the wave start, the second the wave-1 top
// and the third the wave-2 bottom.
type Role int

const (
	RoleStart Role = iota
	RoleWave1Top
	RoleWave2Bottom
)

func (r Role) String() string {
	switch r {
	case RoleStart:
		return "P0"
	case RoleWave1Top:
		return "P1"
	case RoleWave2Bottom:
		return "P2"
	}
	return "P?"
}

// wantsHigh reports whether the role marks a swing high; the other roles take
// the candle's low.
func (r Role) wantsHigh() bool {
	return r == RoleWave1Top
}

// Point is one user-confirmed pivot. Date is the stable identity across data
// mutations; Index is a convenience recomputed by Reindex whenever the
// underlying candle sequence changes.
type Point struct {
	Date  time.Time `json:"date"`
	Index int       `json:"index"`
	Price float64   `json:"price"`
	Role  Role      `json:"role"`
}

// Points is the ordered pivot list of a chart, at most MaxPoints long.
type Points []Point

// Confirm appends the next pivot in role order, reading the candle's high or
// low as the role demands. The second return is false when the list was
// already full and the confirm was ignored.
func (ps Points) Confirm(index int, c model.Candle) (Points, bool) {
	if len(ps) >= MaxPoints {
		return ps, false
	}
	role := Role(len(ps))
	price := c.Low
	if role.wantsHigh() {
		price = c.High
	}
	next := make(Points, len(ps), len(ps)+1)
	copy(next, ps)
	return append(next, Point{Date: c.Time, Index: index, Price: price, Role: role}), true
}

// Complete reports whether all pivots needed for a projection are set.
func (ps Points) Complete() bool {
	return len(ps) == MaxPoints
}

// Input assembles a projection Input from a complete pivot list. The second
// return is false while pivots are still missing.
func (ps Points) Input(ratio Ratio) (Input, bool) {
	if !ps.Complete() {
		return Input{}, false
	}
	return Input{
		P0:    ps[RoleStart].Price,
		P1:    ps[RoleWave1Top].Price,
		P2:    ps[RoleWave2Bottom].Price,
		Ratio: ratio,
	}, true
}

// Reindex recomputes pivot indices against a changed candle sequence.
//
// The calendar day is the stable key: a pivot keeps following its candle no
// matter how much history was prepended in front of it. When a pivot's day is
// absent from the new sequence (the data was replaced rather than extended)
// the index is shifted by the length delta as a best effort, and pivots that
// land outside the sequence are dropped. Pure function; the inputs are never
// mutated.
func Reindex(ps Points, candles []model.Candle, prevLen int) Points {
	if len(ps) == 0 {
		return nil
	}

	byDay := make(map[string]int, len(candles))
	for i, c := range candles {
		byDay[c.Day()] = i
	}
	shift := len(candles) - prevLen

	out := make(Points, 0, len(ps))
	for _, p := range ps {
		if idx, ok := byDay[p.Date.UTC().Format("2006-01-02")]; ok {
			p.Index = idx
		} else {
			p.Index += shift
		}
		if p.Index < 0 || p.Index >= len(candles) {
			continue
		}
		out = append(out, p)
	}

	// A partial survival breaks the role ordering contract, so a pivot set
	// that lost any member is discarded entirely.
	if len(out) != len(ps) {
		return nil
	}
	return out
}

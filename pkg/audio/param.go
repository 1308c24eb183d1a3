package audio

import (
	"math"
	"sort"
)

type eventKind int

const (
	eventSetValue eventKind = iota
	eventLinearRamp
	eventExponentialRamp
	eventSetTarget
)

type paramEvent struct {
	kind  eventKind
	time  float64
	value float64
	tau   float64
}

// Param is an automatable value such as a gain or a frequency. Changes are
// scheduled on the mixer clock (seconds) and evaluated per sample.
//
// Ramps end at their event time and start from the previous event. A ramp
// with no previous event jumps to its value when it is reached.
type Param struct {
	base   float64
	events []paramEvent
}

func NewParam(value float64) *Param {
	return &Param{base: value}
}

func (p *Param) SetValueAtTime(v, t float64) {
	p.insert(paramEvent{kind: eventSetValue, time: t, value: v})
}

func (p *Param) LinearRampToValueAtTime(v, t float64) {
	p.insert(paramEvent{kind: eventLinearRamp, time: t, value: v})
}

// ExponentialRampToValueAtTime ramps geometrically. Both ends must be non-zero
// and of the same sign, otherwise the start value is held until t.
func (p *Param) ExponentialRampToValueAtTime(v, t float64) {
	p.insert(paramEvent{kind: eventExponentialRamp, time: t, value: v})
}

// SetTargetAtTime approaches v exponentially from t with time constant tau.
func (p *Param) SetTargetAtTime(v, t, tau float64) {
	if tau <= 0 {
		p.SetValueAtTime(v, t)
		return
	}
	p.insert(paramEvent{kind: eventSetTarget, time: t, value: v, tau: tau})
}

// CancelAndHoldAtTime drops every event at or after t and holds the value
// the param had at t.
func (p *Param) CancelAndHoldAtTime(t float64) {
	v := p.ValueAt(t)
	n := sort.Search(len(p.events), func(i int) bool { return p.events[i].time >= t })
	p.events = p.events[:n]
	p.SetValueAtTime(v, t)
}

// insert keeps events ordered by time; equal times keep call order.
func (p *Param) insert(e paramEvent) {
	i := sort.Search(len(p.events), func(i int) bool { return p.events[i].time > e.time })
	p.events = append(p.events, paramEvent{})
	copy(p.events[i+1:], p.events[i:])
	p.events[i] = e
}

// ValueAt evaluates the automation timeline at time t.
func (p *Param) ValueAt(t float64) float64 {
	v := p.base
	start := math.Inf(-1)
	var target *paramEvent

	for i := range p.events {
		e := &p.events[i]
		if e.time > t {
			if target != nil {
				// a target curve runs until the next event starts
				return approach(v, target, start, t)
			}
			switch e.kind {
			case eventLinearRamp:
				if math.IsInf(start, -1) {
					return v
				}
				return linear(v, start, e.value, e.time, t)
			case eventExponentialRamp:
				if math.IsInf(start, -1) {
					return v
				}
				return exponential(v, start, e.value, e.time, t)
			}
			return v
		}

		switch e.kind {
		case eventSetTarget:
			if target != nil {
				v = approach(v, target, start, e.time)
			}
			target = e
		default:
			v = e.value
			target = nil
		}
		start = e.time
	}

	if target != nil {
		return approach(v, target, start, t)
	}
	return v
}

// Prune folds settled automation into the base value so long-lived params
// such as the master gain do not accumulate events.
func (p *Param) Prune(now float64) {
	if len(p.events) == 0 {
		return
	}
	last := p.events[len(p.events)-1]
	if last.time > now {
		return
	}
	if last.kind == eventSetTarget && now-last.time < 10*last.tau {
		return
	}
	p.base = p.ValueAt(now)
	if last.kind == eventSetTarget {
		p.base = last.value
	}
	p.events = p.events[:0]
}

func linear(v0, t0, v1, t1, t float64) float64 {
	if t1 <= t0 {
		return v1
	}
	return v0 + (v1-v0)*(t-t0)/(t1-t0)
}

func exponential(v0, t0, v1, t1, t float64) float64 {
	if t1 <= t0 {
		return v1
	}
	if v0 == 0 || v1 == 0 || (v0 < 0) != (v1 < 0) {
		return v0
	}
	return v0 * math.Pow(v1/v0, (t-t0)/(t1-t0))
}

func approach(v0 float64, target *paramEvent, t0, t float64) float64 {
	if t <= t0 {
		return v0
	}
	return target.value + (v0-target.value)*math.Exp(-(t-t0)/target.tau)
}

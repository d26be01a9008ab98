package room

import (
	"github.com/mcdev12/placepick/go/internal/apperr"
	"github.com/mcdev12/placepick/go/internal/models"
)

// DefaultCardSeconds is the per-card countdown window.
const DefaultCardSeconds = 30

// Phase is the carousel lifecycle state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseActive
	PhaseFinished
)

func (p Phase) String() string {
	switch p {
	case PhaseActive:
		return "active"
	case PhaseFinished:
		return "finished"
	}
	return "idle"
}

// VotingOptions configure a carousel run.
type VotingOptions struct {
	Mode models.CarouselMode
	// AutoVote synthesizes a like for online members who let a card time out.
	AutoVote bool
	// AutoAdvance runs the countdown. Always on in strict timed mode.
	AutoAdvance bool
	CardSeconds int
}

func (o VotingOptions) normalize() VotingOptions {
	if o.Mode == "" {
		o.Mode = models.CarouselStrictTimed
	}
	if o.Mode == models.CarouselStrictTimed {
		o.AutoAdvance = true
	}
	if o.CardSeconds <= 0 {
		o.CardSeconds = DefaultCardSeconds
	}
	return o
}

// Voting is the carousel state machine. It only tracks position and time;
// the owning Session records votes and emits events. Not safe for concurrent
// use.
type Voting struct {
	phase     Phase
	index     int
	remaining int
	opts      VotingOptions
}

// NewVoting returns an idle carousel.
func NewVoting(opts VotingOptions) *Voting {
	return &Voting{opts: opts.normalize()}
}

func (v *Voting) Phase() Phase           { return v.phase }
func (v *Voting) Index() int             { return v.index }
func (v *Voting) Remaining() int         { return v.remaining }
func (v *Voting) Options() VotingOptions { return v.opts }

// Ticking reports whether the countdown should be driven.
func (v *Voting) Ticking() bool {
	return v.phase == PhaseActive && v.opts.AutoAdvance
}

// Configure replaces the options used by the next Start.
func (v *Voting) Configure(opts VotingOptions) {
	v.opts = opts.normalize()
}

// Start begins a run at the first card. A redundant Start while active is a
// no-op and returns false.
func (v *Voting) Start(catalogLen int) (bool, error) {
	if v.phase == PhaseActive {
		return false, nil
	}
	if catalogLen == 0 {
		return false, apperr.InvalidState("no candidates to vote on")
	}
	v.phase = PhaseActive
	v.index = 0
	v.remaining = v.opts.CardSeconds
	return true, nil
}

// Tick moves the countdown one second. It returns true when the current card
// has just run out of time; the caller then applies the timeout policy and
// calls Advance.
func (v *Voting) Tick() bool {
	if !v.Ticking() || v.remaining <= 0 {
		return false
	}
	v.remaining--
	return v.remaining == 0
}

// Advance moves to the next card, finishing when there is none. It returns
// true when the run finished.
func (v *Voting) Advance(catalogLen int) bool {
	if v.phase != PhaseActive {
		return false
	}
	if v.index+1 >= catalogLen {
		v.finish()
		return true
	}
	v.index++
	v.remaining = v.opts.CardSeconds
	return false
}

// Next is manual forward navigation. On the last card strict timed mode
// finishes and manual browse stays put.
func (v *Voting) Next(catalogLen int) (moved, finished bool, err error) {
	if v.phase != PhaseActive {
		return false, false, apperr.InvalidState("voting is not active")
	}
	if v.index+1 >= catalogLen && v.opts.Mode == models.CarouselManualBrowse {
		return false, false, nil
	}
	finished = v.Advance(catalogLen)
	return !finished, finished, nil
}

// Prev is manual backward navigation, a no-op on the first card.
func (v *Voting) Prev() (bool, error) {
	if v.phase != PhaseActive {
		return false, apperr.InvalidState("voting is not active")
	}
	if v.index == 0 {
		return false, nil
	}
	v.index--
	v.remaining = v.opts.CardSeconds
	return true, nil
}

// End forces the run to finish. Ending a finished run is a no-op.
func (v *Voting) End() (bool, error) {
	switch v.phase {
	case PhaseFinished:
		return false, nil
	case PhaseIdle:
		return false, apperr.InvalidState("voting has not started")
	}
	v.finish()
	return true, nil
}

func (v *Voting) finish() {
	v.phase = PhaseFinished
	v.remaining = 0
}

// State renders the carousel for a snapshot. Nil while idle.
func (v *Voting) State() *models.VotingState {
	if v.phase == PhaseIdle {
		return nil
	}
	return &models.VotingState{
		Active:            v.phase == PhaseActive,
		CurrentPlaceIndex: v.index,
		SecondsRemaining:  v.remaining,
		CardSeconds:       v.opts.CardSeconds,
		AutoAdvance:       v.opts.AutoAdvance,
		AutoVote:          v.opts.AutoVote,
		Mode:              v.opts.Mode,
	}
}

// votingFrom restores a carousel from a snapshot.
func votingFrom(status models.RoomStatus, st *models.VotingState, defaults VotingOptions) *Voting {
	if st == nil {
		return NewVoting(defaults)
	}
	v := NewVoting(VotingOptions{
		Mode:        st.Mode,
		AutoVote:    st.AutoVote,
		AutoAdvance: st.AutoAdvance,
		CardSeconds: st.CardSeconds,
	})
	v.index = st.CurrentPlaceIndex
	v.remaining = st.SecondsRemaining
	switch {
	case st.Active && status == models.RoomStatusVoting:
		v.phase = PhaseActive
		if v.remaining <= 0 {
			v.remaining = v.opts.CardSeconds
		}
	case status == models.RoomStatusResults:
		v.phase = PhaseFinished
	}
	return v
}

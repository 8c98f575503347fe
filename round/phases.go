package round

const (
	phaseWaiting = "waiting"
	phaseActive  = "active"
)

type waitingPhase struct{}

func (p *waitingPhase) OnEnter()      {}
func (p *waitingPhase) OnExit()       {}
func (p *waitingPhase) GetID() string { return phaseWaiting }

// activePhase owns the round-end timer and the periodic tick. Entering it
// always cancels whatever was armed before scheduling, so at most one end
// timer is ever live.
type activePhase struct {
	c        *Controller
	endTimer int64
	tickerID int64
}

func (p *activePhase) OnEnter() {
	p.cancelTimers()

	c := p.c
	number := c.number
	delay := c.endTime.Sub(c.clock.Now())
	if delay < 0 {
		delay = 0
	}
	p.endTimer = c.sched.AddTimer(delay, 0, func() { c.expire(number) })
	p.tickerID = c.sched.AddTimer(c.settings.TickInterval, c.settings.TickInterval, func() { c.tick(number) })
}

func (p *activePhase) OnExit() {
	p.cancelTimers()
}

func (p *activePhase) GetID() string { return phaseActive }

func (p *activePhase) cancelTimers() {
	if p.endTimer != 0 {
		p.c.sched.RemoveTimer(p.endTimer)
		p.endTimer = 0
	}
	if p.tickerID != 0 {
		p.c.sched.RemoveTimer(p.tickerID)
		p.tickerID = 0
	}
}

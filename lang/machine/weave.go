package machine

import "math"

// A weave is a strand plus two internal channels (yield and resume) that
// travel as values; there is no global registry. The body receives a
// WeaveCtx on its stack and must thread it through every weave.yield; the
// driver resumes it with strand.resume and receives yielded values until
// the completion sentinel.
const doneSentinel = math.MinInt64

// Weave implements strand.weave: ( quotation -- handle ). The woven strand
// is initially suspended, waiting for the first resume value.
func Weave(s *Stack) *Stack {
	v := s.Pop()

	ctx := &WeaveCtx{YieldChan: NewChannel(), ResumeChan: NewChannel()}

	var run func(*Stack) *Stack
	switch v.Kind {
	case KindQuotation:
		run = v.Ref.(*Quotation).Wrapper
	case KindClosure:
		cl := v.Ref.(*Closure)
		env := append([]Value(nil), cl.Env...)
		run = func(st *Stack) *Stack { return cl.Fn(st, env) }
	default:
		panic("strand.weave: expected Quotation or Closure, got " + v.Kind.String())
	}

	SchedulerInit()
	st := NewStack(sched.cfg.StackSlots, sched.cfg.ArenaBlock)
	spawnWith(st, func(st *Stack) {
		// wait for the first resume before executing
		first, ok := ctx.ResumeChan.Receive()
		if !ok {
			return
		}
		st.Push(Value{Kind: KindWeaveCtx, Ref: ctx})
		st.Push(first)
		run(st)
		// completion: sentinel, then close so later resumes see EOF
		ctx.YieldChan.Send(IntValue(doneSentinel))
		ctx.YieldChan.Close()
	})

	s.Push(Value{Kind: KindWeaveCtx, Ref: ctx})
	return s
}

// Resume implements strand.resume: ( handle a -- handle b more? ). It sends
// a to the weave and waits for it to yield; more? is false once the weave
// has completed.
func Resume(s *Stack) *Stack {
	v := s.Pop()
	h := s.Pop()
	if h.Kind != KindWeaveCtx {
		panic("strand.resume: expected WeaveHandle, got " + h.Kind.String())
	}
	ctx := h.Ref.(*WeaveCtx)

	ctx.ResumeChan.Send(v)
	yielded, ok := ctx.YieldChan.Receive()
	s.Push(h)
	if !ok || (yielded.Kind == KindInt && yielded.Int == doneSentinel) {
		s.Push(IntValue(0))
		s.Push(BoolValue(false))
		return s
	}
	s.Push(yielded)
	s.Push(BoolValue(true))
	return s
}

// WeaveYield implements weave.yield: ( ctx a -- ctx b ). Only valid inside
// a woven strand with the context threaded through.
func WeaveYield(s *Stack) *Stack {
	v := s.Pop()
	c := s.Pop()
	if c.Kind != KindWeaveCtx {
		panic("weave.yield: expected WeaveCtx on stack; yield is only valid inside strand.weave")
	}
	ctx := c.Ref.(*WeaveCtx)

	ctx.YieldChan.Send(v)
	resumed, ok := ctx.ResumeChan.Receive()
	if !ok {
		panic("weave.yield: resume channel closed")
	}
	s.Push(c)
	s.Push(resumed)
	return s
}

package internal

import (
	"fmt"
	"io"
	"strings"
)

// Show writes a human readable dump of the scheduler, its chains and their
// members.
func (s *Scheduler) Show(w io.Writer) error {
	var b strings.Builder

	cothreads := 0
	if s.ctx != nil {
		cothreads = s.ctx.Count()
	}

	fmt.Fprintf(&b, "scheduler %q state=%s elements=%d cothreads=%d\n", s.cfg.name, s.state, s.elementCount, cothreads)
	fmt.Fprintf(&b, "  iterations=%d max_recursion=%d max_cothreads=%d\n", s.cfg.iterations, s.cfg.maxRecursion, s.cfg.maxCothreads)
	if s.err != nil {
		fmt.Fprintf(&b, "  error: %v\n", s.err)
	}

	fmt.Fprintf(&b, "  chains: %d\n", len(s.chains))
	for _, c := range s.chains {
		entry := "-"
		if e := c.element(c.entry); e != nil {
			entry = e.name
		}

		fmt.Fprintf(&b, "  chain %s active=%d disabled=%d cothreaded=%d entry=%s\n",
			c.id, len(c.active), len(c.disabled), c.cothreaded, entry)

		for _, id := range c.Members() {
			e := c.element(id)

			flags := make([]string, 0, 4)
			if e.IsLoopDriven() {
				flags = append(flags, "loop")
			}
			if e.decoupled {
				flags = append(flags, "decoupled")
			}
			if e.priv.enabled {
				flags = append(flags, "enabled")
			} else {
				flags = append(flags, "disabled")
			}
			if e.priv.finished {
				flags = append(flags, "finished")
			}
			if e.priv.cothread != nil {
				flags = append(flags, fmt.Sprintf("cothread=%d", e.priv.cothread.id))
			}

			fmt.Fprintf(&b, "    element %s [%s]\n", e.name, strings.Join(flags, " "))
			for p := range e.Ports() {
				peer := "-"
				if pp := p.Peer(); pp != nil {
					peer = pp.String()
				}
				pending := ""
				if p.slot != nil && p.slot.full {
					pending = " pending"
				}
				fmt.Fprintf(&b, "      %s %s -> %s%s\n", p.dir, p.name, peer, pending)
			}
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

package elements

import (
	"fmt"
	"log/slog"

	"github.com/AnatoleLucet/cosched"
	"github.com/AnatoleLucet/cosched/internal/config"
)

type kind struct {
	srcs  []string
	sinks []string
	make  func(ec config.ElementConfig) (any, error)
}

var kinds = map[string]kind{
	"loopsrc": {
		srcs: []string{"src"},
		make: func(ec config.ElementConfig) (any, error) {
			count, err := ec.Int("count", 0)
			return &LoopSource{Count: count}, err
		},
	},
	"getsrc": {
		srcs: []string{"src"},
		make: func(ec config.ElementConfig) (any, error) {
			count, err := ec.Int("count", 0)
			return &GetSource{Count: count}, err
		},
	},
	"identity": {
		srcs:  []string{"src"},
		sinks: []string{"sink"},
		make: func(ec config.ElementConfig) (any, error) {
			return Identity{}, nil
		},
	},
	"loopfilter": {
		srcs:  []string{"src"},
		sinks: []string{"sink"},
		make: func(ec config.ElementConfig) (any, error) {
			scale, err := ec.Int("scale", 1)
			if err != nil {
				return nil, err
			}
			return &LoopFilter{Fn: func(item any) any {
				if n, ok := item.(int); ok {
					return n * scale
				}
				return item
			}}, nil
		},
	},
	"sink": {
		sinks: []string{"sink"},
		make: func(ec config.ElementConfig) (any, error) {
			return &Sink{}, nil
		},
	},
	"queue": {
		srcs:  []string{"src"},
		sinks: []string{"sink"},
		make: func(ec config.ElementConfig) (any, error) {
			capacity, err := ec.Int("capacity", 0)
			return &Queue{Capacity: capacity}, err
		},
	},
}

// Kinds lists the element kinds Build knows about.
func Kinds() []string {
	names := make([]string, 0, len(kinds))
	for name := range kinds {
		names = append(names, name)
	}
	return names
}

// Pipeline is a built pipeline description.
type Pipeline struct {
	Arena     *cosched.Arena
	Scheduler *cosched.Scheduler

	Elements  map[string]*cosched.Element
	Behaviors map[string]any
}

// Build creates the elements of p in a fresh arena, hands them to a new
// scheduler and links them.
func Build(p *config.Pipeline, handler slog.Handler, opts ...cosched.Option) (*Pipeline, error) {
	arena := cosched.NewArena()

	sched, err := cosched.NewScheduler(arena, append(p.Scheduler.Options(handler), opts...)...)
	if err != nil {
		return nil, err
	}

	built := &Pipeline{
		Arena:     arena,
		Scheduler: sched,
		Elements:  make(map[string]*cosched.Element, len(p.Elements)),
		Behaviors: make(map[string]any, len(p.Elements)),
	}

	for _, ec := range p.Elements {
		k, ok := kinds[ec.Kind]
		if !ok {
			return nil, fmt.Errorf("elements: unknown kind %q for %s", ec.Kind, ec.Name)
		}

		behavior, err := k.make(ec)
		if err != nil {
			return nil, err
		}

		var elemOpts []cosched.ElementOption
		if ec.Decoupled || ec.Kind == "queue" {
			elemOpts = append(elemOpts, cosched.Decoupled())
		}

		e := arena.NewElement(ec.Name, behavior, elemOpts...)
		for _, name := range k.sinks {
			e.AddSink(name)
		}
		for _, name := range k.srcs {
			e.AddSrc(name)
		}

		if err := sched.Add(e); err != nil {
			return nil, err
		}

		built.Elements[ec.Name] = e
		built.Behaviors[ec.Name] = behavior
	}

	for _, l := range p.Links {
		src, err := built.port(l.From)
		if err != nil {
			return nil, err
		}
		sink, err := built.port(l.To)
		if err != nil {
			return nil, err
		}

		if err := sched.Connect(src, sink); err != nil {
			return nil, fmt.Errorf("elements: link %s -> %s: %w", l.From, l.To, err)
		}
	}

	return built, nil
}

func (p *Pipeline) port(endpoint string) (*cosched.Port, error) {
	elem, name, err := config.SplitEndpoint(endpoint)
	if err != nil {
		return nil, err
	}

	e, ok := p.Elements[elem]
	if !ok {
		return nil, fmt.Errorf("elements: unknown element %q", elem)
	}

	port := e.Port(name)
	if port == nil {
		return nil, fmt.Errorf("elements: %s has no port %q", elem, name)
	}
	return port, nil
}

// Sinks returns what every sink of the pipeline received so far.
func (p *Pipeline) Sinks() map[string][]any {
	out := make(map[string][]any)
	for name, b := range p.Behaviors {
		if sink, ok := b.(*Sink); ok {
			out[name] = sink.Items()
		}
	}
	return out
}

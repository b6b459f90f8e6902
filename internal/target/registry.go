package target

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/samber/lo"

	cg "github.com/roach88/mlcg/internal/codegen"
	"github.com/roach88/mlcg/internal/ir"
)

// Root is the name of the abstract marker every built-in target descends
// from.
const Root = "abstract"

var (
	// ErrUnknownTarget reports a lookup or parent reference to a name that
	// was never registered.
	ErrUnknownTarget = errors.New("unknown target")

	// ErrDuplicateTarget reports a second registration under one name.
	ErrDuplicateTarget = errors.New("duplicate target")

	// ErrTargetCycle reports descriptions whose parents reference each
	// other.
	ErrTargetCycle = errors.New("cyclic target parents")
)

// Registry holds processors by name, in registration order.
type Registry struct {
	logger *slog.Logger
	byName map[string]*cg.Processor
	order  []string
}

// NewRegistry creates a registry holding the abstract root and the built-in
// targets: generic, x86_sse2, x86_avx2 and vhdl.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{logger: logger, byName: make(map[string]*cg.Processor)}

	log := cg.WithLogger(logger)
	root := cg.NewProcessor(Root, cg.WithAbstract(), log)
	generic := NewGeneric(cg.WithParents(root), log)
	sse2 := NewX86SSE2(generic, log)
	avx2 := NewX86AVX2(sse2, log)
	vhdl := NewVHDL(cg.WithParents(root), log)

	for _, p := range []*cg.Processor{root, generic, sse2, avx2, vhdl} {
		if err := r.Add(p); err != nil {
			panic(fmt.Sprintf("target: built-in registry: %v", err))
		}
	}
	return r
}

// Add registers p under its name.
func (r *Registry) Add(p *cg.Processor) error {
	if _, ok := r.byName[p.Name()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateTarget, p.Name())
	}
	r.byName[p.Name()] = p
	r.order = append(r.order, p.Name())
	r.logger.Debug("target registered",
		"target", p.Name(),
		"ancestors", strings.Join(p.AncestorNames(), ","),
	)
	return nil
}

// Lookup returns the processor registered under name.
func (r *Registry) Lookup(name string) (*cg.Processor, error) {
	p, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTarget, name)
	}
	return p, nil
}

// Names returns the registered names in registration order.
func (r *Registry) Names() []string {
	return slices.Clone(r.order)
}

// Processors returns the registered processors in registration order.
func (r *Registry) Processors() []*cg.Processor {
	return lo.Map(r.order, func(name string, _ int) *cg.Processor {
		return r.byName[name]
	})
}

// Concrete returns the processors that are not abstract markers.
func (r *Registry) Concrete() []*cg.Processor {
	return lo.Reject(r.Processors(), func(p *cg.Processor, _ int) bool {
		return p.IsAbstract()
	})
}

// Register builds and adds the described targets. A description may name
// registered targets or other descriptions of the batch as parents; the
// batch is built parents first.
//
// Nothing is registered when any description fails.
func (r *Registry) Register(specs []ir.TargetSpec) ([]*cg.Processor, error) {
	names := lo.Map(specs, func(s ir.TargetSpec, _ int) string { return s.Name })
	if dups := lo.FindDuplicates(names); len(dups) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateTarget, strings.Join(dups, ", "))
	}
	for _, name := range names {
		if _, ok := r.byName[name]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTarget, name)
		}
	}

	var errs []error
	for _, s := range specs {
		for _, parent := range s.Parents {
			if _, ok := r.byName[parent]; !ok && !lo.Contains(names, parent) {
				errs = append(errs, fmt.Errorf("%w: %s (parent of %s)", ErrUnknownTarget, parent, s.Name))
			}
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	built := make(map[string]*cg.Processor, len(specs))
	find := func(name string) (*cg.Processor, bool) {
		if p, ok := built[name]; ok {
			return p, true
		}
		p, ok := r.byName[name]
		return p, ok
	}

	var out []*cg.Processor
	pending := specs
	for len(pending) > 0 {
		ready, blocked := lo.FilterReject(pending, func(s ir.TargetSpec, _ int) bool {
			return lo.EveryBy(s.Parents, func(parent string) bool {
				_, ok := find(parent)
				return ok
			})
		})
		if len(ready) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrTargetCycle,
				strings.Join(lo.Map(blocked, func(s ir.TargetSpec, _ int) string { return s.Name }), ", "))
		}
		for _, s := range ready {
			parents := lo.Map(s.Parents, func(name string, _ int) *cg.Processor {
				p, _ := find(name)
				return p
			})
			p, err := Build(s, parents, cg.WithLogger(r.logger))
			if err != nil {
				errs = append(errs, err)
				continue
			}
			built[s.Name] = p
			out = append(out, p)
		}
		if len(errs) > 0 {
			return nil, errors.Join(errs...)
		}
		pending = blocked
	}

	for _, p := range out {
		if err := r.Add(p); err != nil {
			return nil, err
		}
	}
	return out, nil
}

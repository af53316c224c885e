package engine

import (
	"fmt"
	"sync"

	"github.com/kahoon/engine/accessqueue"
	"github.com/kahoon/engine/errs"
	"github.com/kahoon/engine/telemetry"
)

// Resolver is a host-wide registry of named services, keyed by an arbitrary
// comparable key rather than by type, so callers in different packages can
// look up the same queue without sharing a typed reference (§6: "lookup a
// previously registered queue by name").
type Resolver interface {
	Resolve(key any) (any, error)
}

// registrar is satisfied by Resolver implementations that also accept new
// registrations. It is unexported since registration is only ever driven
// through RegisterAccessQueue, not called directly by hosts.
type registrar interface {
	Resolver
	register(key any, svc any) error
}

// MapResolver is the default Resolver, a sync.Map-backed keyed registry
// generalizing the teacher's `pending.go` mutex+map idiom from "tasks keyed
// by ID" to "services keyed by an arbitrary key".
type MapResolver struct {
	services sync.Map
}

// NewMapResolver builds an empty MapResolver.
func NewMapResolver() *MapResolver {
	return &MapResolver{}
}

func (r *MapResolver) register(key any, svc any) error {
	if _, loaded := r.services.LoadOrStore(key, svc); loaded {
		return errs.New(errs.KindDuplicateRegistration, fmt.Sprintf("service %v already registered", key))
	}
	return nil
}

func (r *MapResolver) Resolve(key any) (any, error) {
	svc, ok := r.services.Load(key)
	if !ok {
		return nil, errs.New(errs.KindNoServiceRegistered, fmt.Sprintf("no service registered under %v", key))
	}
	return svc, nil
}

// Engine is the host façade tying a Resolver and a StartupRunner together.
// A host embeds or holds an *Engine as its single point of contact with the
// task manager, argument processor, and scheduler subpackages.
type Engine struct {
	Resolver Resolver
	Startup  *StartupRunner
}

// New builds an Engine with a default MapResolver and a StartupRunner
// logging through sink.
func New(sink telemetry.Sink) *Engine {
	return &Engine{
		Resolver: NewMapResolver(),
		Startup:  newStartupRunner(sink),
	}
}

// NewEngine builds an Engine from an already-constructed Resolver and
// StartupRunner, for hosts that supply their own Resolver implementation.
func NewEngine(resolver Resolver, startup *StartupRunner) *Engine {
	return &Engine{Resolver: resolver, Startup: startup}
}

func asRegistrar(r Resolver) (registrar, error) {
	reg, ok := r.(registrar)
	if !ok {
		return nil, errs.New(errs.KindDuplicateRegistration, "resolver does not support registration")
	}
	return reg, nil
}

// RegisterAccessQueue registers q under key on host's resolver. It is a
// package-level generic function rather than an Engine method, since Go does
// not allow a generic method on a non-generic receiver type.
func RegisterAccessQueue[R, S any](host *Engine, key any, q *accessqueue.Queue[R, S]) error {
	reg, err := asRegistrar(host.Resolver)
	if err != nil {
		return err
	}
	return reg.register(key, q)
}

// LookupAccessQueue retrieves a queue previously registered under key. A key
// registered with different type parameters reports KindNoServiceRegistered,
// same as an absent key — from the caller's perspective, a queue of the
// wrong shape isn't there at all.
func LookupAccessQueue[R, S any](host *Engine, key any) (*accessqueue.Queue[R, S], error) {
	svc, err := host.Resolver.Resolve(key)
	if err != nil {
		return nil, err
	}
	q, ok := svc.(*accessqueue.Queue[R, S])
	if !ok {
		return nil, errs.New(errs.KindNoServiceRegistered, fmt.Sprintf("service %v is not an access queue of the requested type", key))
	}
	return q, nil
}

// Package engine is the host-facing façade over the task manager, argument
// processor, and scheduler subpackages. An Engine combines a Resolver, for
// registering and looking up typed queues by key, with a StartupRunner, for
// running a set of named boot-time hooks in order with bounded deadlines.
package engine

// Command enginedemo wires up a small host exercising every subsystem of
// the engine module: a priority work queue, a single-connection access
// queue, and a cron schedule, all sharing one telemetry sink; the access
// queue is registered in and looked up from the host's Resolver.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joeycumines/logiface"

	"github.com/kahoon/engine"
	"github.com/kahoon/engine/accessqueue"
	"github.com/kahoon/engine/scheduler"
	"github.com/kahoon/engine/telemetry"
	"github.com/kahoon/engine/workqueue"
)

// demoEvent is a minimal logiface.Event: just a level and a flat field list,
// enough to drive a line-oriented writer without pulling in a backend
// adapter module.
type demoEvent struct {
	logiface.UnimplementedEvent
	level  logiface.Level
	fields []demoField
}

type demoField struct {
	key string
	val any
}

func newDemoEvent(level logiface.Level) *demoEvent { return &demoEvent{level: level} }

func (e *demoEvent) Level() logiface.Level { return e.level }

func (e *demoEvent) AddField(key string, val any) {
	e.fields = append(e.fields, demoField{key: key, val: val})
}

type demoWriter struct{}

func (demoWriter) Write(e *demoEvent) error {
	fmt.Fprintf(os.Stdout, "[%s]", e.level)
	for _, f := range e.fields {
		fmt.Fprintf(os.Stdout, " %s=%v", f.key, f.val)
	}
	fmt.Fprintln(os.Stdout)
	return nil
}

type apiClient struct {
	calls int
}

func (c *apiClient) Activate(ctx context.Context) error   { return nil }
func (c *apiClient) Deactivate(ctx context.Context) error { return nil }
func (c *apiClient) ThrottleInterval() time.Duration      { return 200 * time.Millisecond }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := logiface.New(
		logiface.WithEventFactory[*demoEvent](logiface.EventFactoryFunc[*demoEvent](newDemoEvent)),
		logiface.WithWriter[*demoEvent](demoWriter{}),
	)
	sink := telemetry.NewLogiface(logger)

	host := engine.New(sink)

	wq, err := workqueue.New[string](workqueue.Config{MaxConcurrent: 4, MaxPriority: 2, Sink: sink})
	if err != nil {
		fmt.Fprintln(os.Stderr, "build workqueue:", err)
		os.Exit(1)
	}

	aq, err := accessqueue.New[*apiClient, int](accessqueue.Config[*apiClient]{
		Strategy:      accessqueue.StrategyReuse,
		MaxConcurrent: 1,
		Factory:       func(ctx context.Context) (*apiClient, error) { return &apiClient{}, nil },
		Sink:          sink,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "build accessqueue:", err)
		os.Exit(1)
	}
	if err := engine.RegisterAccessQueue[*apiClient, int](host, "api", aq); err != nil {
		fmt.Fprintln(os.Stderr, "register accessqueue:", err)
		os.Exit(1)
	}

	sched := scheduler.New(scheduler.WithTelemetry(sink))

	host.Startup.Register("workqueue", true, func(ctx context.Context) error {
		wq.Start(ctx)
		return nil
	})
	host.Startup.Register("accessqueue", true, func(ctx context.Context) error {
		aq.Start(ctx)
		return nil
	})
	host.Startup.Register("scheduler", true, func(ctx context.Context) error {
		sched.Start(ctx)
		return nil
	})

	bootCtx, bootCancel := context.WithTimeout(ctx, 5*time.Second)
	defer bootCancel()
	if err := host.Startup.Run(bootCtx); err != nil {
		fmt.Fprintln(os.Stderr, "startup:", err)
		os.Exit(1)
	}

	if _, err := wq.Submit(ctx, 1, 3, func(ctx context.Context) (string, error) {
		return "hello from the work queue", nil
	}); err != nil {
		sink.Error("submit work item", err)
	}

	if aq2, err := engine.LookupAccessQueue[*apiClient, int](host, "api"); err == nil {
		if _, err := aq2.Submit(ctx, 0, 1, func(ctx context.Context, client *apiClient) (int, error) {
			client.calls++
			return client.calls, nil
		}); err != nil {
			sink.Error("submit access item", err)
		}
	}

	if stream, err := scheduler.AddCron[string](sched, ctx, "0 */5 * * * *", -1, func(ctx context.Context) (string, error) {
		return "cron tick", nil
	}); err != nil {
		sink.Error("add cron schedule", err)
	} else {
		go func() {
			for range stream.Outcomes() {
			}
		}()
	}

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = wq.Stop(shutdownCtx)
	_ = aq.Stop(shutdownCtx)
	_ = sched.Stop(shutdownCtx)
}

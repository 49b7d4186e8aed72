// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package sensor

import (
	"context"
	"errors"

	"github.com/monitorizapt/sensorfleet/internal/container"
	"github.com/monitorizapt/sensorfleet/internal/wallclock"
)

var errStopped = errors.New("sensor loop stopped")

// Start spawns the polling loop. Calls while the loop is running are no-ops.
// A loop started after Stop does not tick until the previous loop has exited.
func (u *Unit) Start() {
	u.mu.Lock()
	defer u.mu.Unlock()

	if !u.running.CompareAndSwap(false, true) {
		return
	}

	prev := u.exited
	u.stop = container.NewBackground(errStopped)
	u.exited = make(chan struct{})

	u.log.started(context.Background(), u.Interval())
	go u.run(prev, u.stop, u.exited)
}

// Stop signals the loop to exit and waits until it has. A sleeping loop is
// woken at once; a tick in progress is allowed to finish. Stop is safe to
// call repeatedly and before Start, but must not be called from a Listener.
func (u *Unit) Stop() {
	u.mu.Lock()
	if !u.running.CompareAndSwap(true, false) {
		u.mu.Unlock()
		return
	}
	stop, exited := u.stop, u.exited
	u.mu.Unlock()

	stop.Close()
	<-exited
	u.log.stopped(context.Background())
}

func (u *Unit) run(
	prev <-chan struct{},
	stop *container.Background,
	exited chan<- struct{},
) {
	defer close(exited)

	if prev != nil {
		select {
		case <-prev:
		case <-stop.Done():
			return
		}
	}

	ctx, cancel := stop.With(context.Background())
	defer cancel()

	for ctx.Err() == nil {
		u.tick(ctx)
		if err := wallclock.Sleep(ctx, u.Interval()); err != nil {
			return
		}
	}
}

// One iteration of the loop. Nothing that happens here may end the loop.
func (u *Unit) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			u.log.tickPanic(ctx, r)
		}
	}()

	if !u.active.Load() {
		return
	}

	r := u.Read()
	data, err := u.builder.Build(u, r)
	if err != nil {
		u.log.Err(ctx, err)
		return
	}

	u.pub.Publish(ctx, u.loc.DataTopic(), data)
	for fn := range u.listeners.All() {
		fn(u, r, data)
	}
}

package crawler

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/storageapi"
)

// gracePeriod is how long an interrupt gets to drain in-flight requests
// before the crawler force-stops, the pause-then-abort shape spec §4.9
// describes for SIGINT/SIGTERM.
const gracePeriod = 20 * time.Second

// registerSignalHooks wires SIGINT/SIGTERM (pause, wait out the grace
// period, then abort; a second signal forces it immediately) and SIGUSR1
// (treated as a migration notice: pause and persist state) the way
// cmd/webstalk/main.go hands a single signal channel to one goroutine,
// generalized here to two distinct signal meanings and a grace period.
// The returned func stops listening and must be called once Run returns.
func (c *Crawler) registerSignalHooks() func() {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1)

	done := make(chan struct{})
	go func() {
		for {
			select {
			case sig, ok := <-sigCh:
				if !ok {
					return
				}
				c.handleSignal(sig, sigCh)
			case <-done:
				return
			}
		}
	}()

	return func() {
		signal.Stop(sigCh)
		close(done)
	}
}

func (c *Crawler) handleSignal(sig os.Signal, sigCh <-chan os.Signal) {
	if sig == syscall.SIGUSR1 {
		c.log.Info("migration signal received, persisting state")
		c.Pause()
		c.events.Emit(storageapi.Event{Type: storageapi.EventMigrating})
		c.events.Emit(storageapi.Event{Type: storageapi.EventPersistState, IsMigrating: true})
		c.persistState()
		c.Resume()
		return
	}

	c.log.Info("interrupt received, pausing before abort", "signal", sig, "grace_period", gracePeriod)
	c.Pause()

	select {
	case second := <-sigCh:
		c.log.Warn("second interrupt received, forcing shutdown", "signal", second)
	case <-time.After(gracePeriod):
		c.log.Info("grace period elapsed, aborting")
	}
	c.Stop()
}

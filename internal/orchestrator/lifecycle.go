package orchestrator

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// LifecycleSignal models the application foreground/background transitions
// spec §4.6 subscribes to. No mobile OS lifecycle exists on this platform,
// so the concrete implementation below stands in for it with process
// signals, the way a headless daemon would be driven by an operator or a
// supervising process.
type LifecycleSignal interface {
	Foreground() <-chan struct{}
	Background() <-chan struct{}
}

// OSLifecycleSignal maps SIGUSR1/SIGUSR2 onto the foreground/background
// transitions spec §4.6 reacts to.
type OSLifecycleSignal struct {
	fg chan struct{}
	bg chan struct{}
}

func NewOSLifecycleSignal() *OSLifecycleSignal {
	l := &OSLifecycleSignal{
		fg: make(chan struct{}, 1),
		bg: make(chan struct{}, 1),
	}
	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, syscall.SIGUSR1, syscall.SIGUSR2)
	go func() {
		for sig := range sigs {
			switch sig {
			case syscall.SIGUSR1:
				select {
				case l.fg <- struct{}{}:
				default:
				}
			case syscall.SIGUSR2:
				select {
				case l.bg <- struct{}{}:
				default:
				}
			}
		}
	}()
	return l
}

func (l *OSLifecycleSignal) Foreground() <-chan struct{} { return l.fg }
func (l *OSLifecycleSignal) Background() <-chan struct{} { return l.bg }

// BackgroundExtender requests a finite background-execution window from
// the host when a sync is in flight at the moment the application
// backgrounds, per spec §4.6/§5. The concrete implementation below is a
// plain deadline timer; a real mobile host would wrap UIApplication's
// background task API instead.
type BackgroundExtender interface {
	BeginExtension(d time.Duration)
	EndExtension()
}

// TimedExtender runs onExpire once d elapses without EndExtension being
// called first.
type TimedExtender struct {
	mu       sync.Mutex
	timer    *time.Timer
	onExpire func()
}

func NewTimedExtender(onExpire func()) *TimedExtender {
	return &TimedExtender{onExpire: onExpire}
}

func (e *TimedExtender) BeginExtension(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.timer != nil {
		e.timer.Stop()
	}
	e.timer = time.AfterFunc(d, e.onExpire)
}

func (e *TimedExtender) EndExtension() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

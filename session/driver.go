package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/philtim/timearchitect/logger"
)

// DefaultInterval is the polling period
const DefaultInterval = time.Second

// Driver ticks a Session on a fixed interval.
type Driver struct {
	session  *Session
	interval time.Duration
	onTick   func(Snapshot)
	cron     *cron.Cron

	mu      sync.Mutex
	running bool
}

// NewDriver creates a driver that calls onTick with every snapshot. onTick
// may be nil.
func NewDriver(s *Session, interval time.Duration, onTick func(Snapshot)) *Driver {
	if interval < time.Second {
		interval = DefaultInterval
	}
	l := cronLogger{}
	return &Driver{
		session:  s,
		interval: interval,
		onTick:   onTick,
		cron:     cron.New(cron.WithLogger(l), cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l))),
	}
}

// Start schedules the tick job and starts the cron runner.
func (d *Driver) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return
	}
	d.cron.Schedule(cron.Every(d.interval), cron.FuncJob(d.Tick))
	d.cron.Start()
	d.running = true
	logger.Infof("Tick driver started (every %s)", d.interval)
}

// Stop halts the runner and waits for a running tick to finish.
func (d *Driver) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	d.mu.Unlock()

	<-d.cron.Stop().Done()
	for _, e := range d.cron.Entries() {
		d.cron.Remove(e.ID)
	}
	logger.Infof("Tick driver stopped")
}

// Tick runs one tick now.
func (d *Driver) Tick() {
	snap := d.session.Tick(d.session.Now())
	if d.onTick != nil {
		d.onTick(snap)
	}
}

// cronLogger routes cron's own messages through logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logger.Debugf("cron: %s %s", msg, formatKV(keysAndValues))
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logger.Errorf("cron: %s: %v %s", msg, err, formatKV(keysAndValues))
}

func formatKV(kv []interface{}) string {
	out := ""
	for i := 0; i+1 < len(kv); i += 2 {
		if out != "" {
			out += " "
		}
		out += fmt.Sprintf("%v=%v", kv[i], kv[i+1])
	}
	return out
}

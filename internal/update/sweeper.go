package update

import (
	"log"

	"github.com/robfig/cron/v3"
)

// Sweeper periodically clears stale staged binaries from the updates
// directory, so a long-lived dashboard process sharing the staging
// dir with the CLI doesn't accumulate old downloads between runs.
type Sweeper struct {
	cron        *cron.Cron
	keepVersion string
}

// NewSweeper builds a Sweeper that, once Start is called, sweeps the
// updates directory on schedule, retaining keepVersion's staged file
// if non-empty.
func NewSweeper(schedule, keepVersion string) (*Sweeper, error) {
	c := cron.New()
	s := &Sweeper{cron: c, keepVersion: keepVersion}
	if _, err := c.AddFunc(schedule, s.sweepOnce); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Sweeper) sweepOnce() {
	if err := CleanupOldUpdates(s.keepVersion); err != nil {
		log.Printf("update sweeper: cleanup failed: %v", err)
	}
}

// Start begins the cron schedule in the background.
func (s *Sweeper) Start() {
	s.cron.Start()
}

// Stop halts the schedule, waiting for any in-flight sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

package slonikpool

import (
	"time"

	"github.com/jackc/puddle/v2"
)

// Stat reports point-in-time pool occupancy, grounded on the teacher's
// pgxpool.Stat (pgxpool/stat.go) wrapping the same puddle.Stat type,
// upgraded from puddle v1's non-generic Stat to v2's.
type Stat struct {
	s *puddle.Stat
}

func (s *Stat) AcquireCount() int64 { return s.s.AcquireCount() }

func (s *Stat) AcquireDuration() time.Duration { return s.s.AcquireDuration() }

func (s *Stat) AcquiredConns() int32 { return s.s.AcquiredResources() }

func (s *Stat) CanceledAcquireCount() int64 { return s.s.CanceledAcquireCount() }

func (s *Stat) ConstructingConns() int32 { return s.s.ConstructingResources() }

func (s *Stat) EmptyAcquireCount() int64 { return s.s.EmptyAcquireCount() }

func (s *Stat) IdleConns() int32 { return s.s.IdleResources() }

func (s *Stat) MaxConns() int32 { return s.s.MaxResources() }

func (s *Stat) TotalConns() int32 { return s.s.TotalResources() }

// PoolState is the point-in-time snapshot spec §3 and §4.E name:
// {active, idle, waiting, ended}. Active+Idle never exceeds the pool's
// maximumPoolSize; Waiting > 0 implies Active has reached that cap; Ended
// is true once End has been called, after which Provide always fails.
type PoolState struct {
	Active  int32
	Idle    int32
	Waiting int32
	Ended   bool
}

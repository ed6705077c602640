package broadcast

import (
	"time"

	"puzzle-quiz-service/internal/domain"
	"puzzle-quiz-service/internal/quiz"
)

// Test-only accessors so the external test package can reach unexported
// state without importing puzzle-quiz-service/internal/infra/memory from
// inside package broadcast (which would be an import cycle).

func (s *Scheduler) Store() StateStore { return s.store }

func (s *Scheduler) Outstanding() []domain.MessageRef { return s.outstanding }

func (s *Scheduler) Kernel() *quiz.Session { return s.kernel }

func (s *Scheduler) UntilNextTick(now time.Time) time.Duration { return s.untilNextTick(now) }

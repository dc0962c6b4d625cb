package engine

import "fmt"

// Milestone is one entry of the fixed reward schedule: reaching Threshold
// consecutive days grants CoinReward once, ever.
type Milestone struct {
	Threshold  int    `json:"threshold"`
	Name       string `json:"name"`
	Icon       string `json:"icon"`
	CoinReward int64  `json:"coin_reward"`
}

// DefaultMilestones is the product reward schedule.
var DefaultMilestones = []Milestone{
	{Threshold: 3, Name: "Kickoff", Icon: "spark", CoinReward: 25},
	{Threshold: 7, Name: "One Week", Icon: "flame", CoinReward: 100},
	{Threshold: 14, Name: "Fortnight", Icon: "bolt", CoinReward: 150},
	{Threshold: 30, Name: "One Month", Icon: "medal", CoinReward: 300},
	{Threshold: 60, Name: "Two Months", Icon: "trophy", CoinReward: 500},
	{Threshold: 100, Name: "Century", Icon: "crown", CoinReward: 750},
	{Threshold: 180, Name: "Half Year", Icon: "diamond", CoinReward: 1200},
	{Threshold: 365, Name: "One Year", Icon: "star", CoinReward: 2500},
}

// Schedule answers milestone lookups against an immutable ordered table.
type Schedule struct {
	milestones []Milestone
}

// NewSchedule validates the table once at construction so lookups never fail.
// Thresholds must be positive and strictly increasing.
func NewSchedule(milestones []Milestone) (*Schedule, error) {
	if len(milestones) == 0 {
		return nil, ErrEmptyMilestoneTable
	}
	prev := 0
	for _, m := range milestones {
		if m.Threshold <= prev {
			return nil, fmt.Errorf("milestone thresholds must be strictly increasing, got %d after %d", m.Threshold, prev)
		}
		prev = m.Threshold
	}
	table := make([]Milestone, len(milestones))
	copy(table, milestones)
	return &Schedule{milestones: table}, nil
}

// MilestoneAt returns the milestone whose threshold equals streak, if any.
func (s *Schedule) MilestoneAt(streak int) (Milestone, bool) {
	for _, m := range s.milestones {
		if m.Threshold == streak {
			return m, true
		}
		if m.Threshold > streak {
			break
		}
	}
	return Milestone{}, false
}

// NextMilestone returns the first milestone with a threshold strictly above
// streak, if any remains.
func (s *Schedule) NextMilestone(streak int) (Milestone, bool) {
	for _, m := range s.milestones {
		if m.Threshold > streak {
			return m, true
		}
	}
	return Milestone{}, false
}

// DaysUntilNext returns how many more consecutive days reach the next
// milestone, or 0 when the schedule is exhausted.
func (s *Schedule) DaysUntilNext(streak int) int {
	next, ok := s.NextMilestone(streak)
	if !ok {
		return 0
	}
	return next.Threshold - streak
}

// Milestones returns a copy of the schedule table.
func (s *Schedule) Milestones() []Milestone {
	out := make([]Milestone, len(s.milestones))
	copy(out, s.milestones)
	return out
}

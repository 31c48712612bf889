package domain

// Rating symbols map onto the five histogram buckets, worst to best.
var ratingSymbols = [5]string{"--", "-", "0", "+", "++"}

// RatingIndex resolves a rating symbol to its bucket index.
func RatingIndex(symbol string) (int, bool) {
	for i, s := range ratingSymbols {
		if s == symbol {
			return i, true
		}
	}
	return 0, false
}

// DayStats is one calendar day of a user's engagement in a subject.
type DayStats struct {
	Signals       int `json:"signals"`
	Calls         int `json:"calls"`
	ToiletSeconds int `json:"toiletSeconds"`
}

// StatsRecord accumulates a user's engagement in one subject. Counters
// never go below zero; every decrement clamps.
type StatsRecord struct {
	Signals       int                  `json:"signals"`
	Calls         int                  `json:"calls"`
	Ratings       [5]int               `json:"ratings"`
	ToiletSeconds int                  `json:"toiletSeconds"`
	Daily         map[string]*DayStats `json:"daily,omitempty"`
}

func NewStatsRecord() *StatsRecord {
	return &StatsRecord{Daily: make(map[string]*DayStats)}
}

// Day returns the bucket for a calendar date (YYYY-MM-DD), creating it
// on first access.
func (s *StatsRecord) Day(date string) *DayStats {
	if s.Daily == nil {
		s.Daily = make(map[string]*DayStats)
	}
	d, ok := s.Daily[date]
	if !ok {
		d = &DayStats{}
		s.Daily[date] = d
	}
	return d
}

func (s *StatsRecord) AddSignals(date string, n int) {
	s.Signals = clamp(s.Signals + n)
	d := s.Day(date)
	d.Signals = clamp(d.Signals + n)
}

func (s *StatsRecord) AddCalls(date string, n int) {
	s.Calls = clamp(s.Calls + n)
	d := s.Day(date)
	d.Calls = clamp(d.Calls + n)
}

func (s *StatsRecord) AddToiletSeconds(date string, n int) {
	s.ToiletSeconds = clamp(s.ToiletSeconds + n)
	d := s.Day(date)
	d.ToiletSeconds = clamp(d.ToiletSeconds + n)
}

func (s *StatsRecord) AddRating(bucket, n int) {
	if bucket < 0 || bucket >= len(s.Ratings) {
		return
	}
	s.Ratings[bucket] = clamp(s.Ratings[bucket] + n)
}

func clamp(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

package contracts

import "time"

// PoolTier distinguishes the two membership sets of the candidate pool.
type PoolTier string

const (
	// TierCore is the fundamentals-and-factor-ranked primary set.
	TierCore PoolTier = "core"

	// TierSupplement is the momentum-led secondary set with a lighter
	// fundamental filter.
	TierSupplement PoolTier = "supplement"
)

// PoolMember is one symbol's membership record in a pool snapshot.
// ExitDate is set only once and is never earlier than EntryDate.
type PoolMember struct {
	Code      string     `json:"code"`
	Tier      PoolTier   `json:"tier"`
	Rank      int        `json:"rank"` // 1-based within the tier
	Score     float64    `json:"score"`
	EntryDate time.Time  `json:"entry_date"`
	ExitDate  *time.Time `json:"exit_date,omitempty"`
}

// PoolChangeType tags one change-log entry.
type PoolChangeType string

const (
	ChangeNewEntry   PoolChangeType = "new_entry"
	ChangeExit       PoolChangeType = "exit"
	ChangeRankChange PoolChangeType = "rank_change"
)

// PoolChange records one membership or rank transition between two
// consecutive snapshots, carrying the prior and new rank/score.
type PoolChange struct {
	Code      string         `json:"code"`
	Type      PoolChangeType `json:"type"`
	Tier      PoolTier       `json:"tier"`
	PrevRank  int            `json:"prev_rank,omitempty"`
	NewRank   int            `json:"new_rank,omitempty"`
	PrevScore float64        `json:"prev_score,omitempty"`
	NewScore  float64        `json:"new_score,omitempty"`
	Date      time.Time      `json:"date"`
}

// CorePoolResult is the current pool snapshot. A symbol appears in at
// most one of core/supplement per snapshot; core takes precedence when
// a symbol qualifies for both.
type CorePoolResult struct {
	AsOf       time.Time    `json:"as_of"`
	Core       []PoolMember `json:"core"`
	Supplement []PoolMember `json:"supplement"`
	Changes    []PoolChange `json:"changes"`
	CreatedAt  time.Time    `json:"created_at"`
}

// Members returns core and supplement members as one slice.
func (p *CorePoolResult) Members() []PoolMember {
	out := make([]PoolMember, 0, len(p.Core)+len(p.Supplement))
	out = append(out, p.Core...)
	out = append(out, p.Supplement...)
	return out
}

// Contains reports whether the symbol is in either tier.
func (p *CorePoolResult) Contains(code string) bool {
	for _, m := range p.Members() {
		if m.Code == code {
			return true
		}
	}
	return false
}

// Codes returns all member codes, core first.
func (p *CorePoolResult) Codes() []string {
	members := p.Members()
	codes := make([]string, 0, len(members))
	for _, m := range members {
		codes = append(codes, m.Code)
	}
	return codes
}

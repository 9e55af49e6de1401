package circuits

// LikeStatus is the only value SubmitLike reveals.
type LikeStatus uint8

const (
	LikeNoOp           LikeStatus = 0
	LikeRecorded       LikeStatus = 1
	LikeMutualInterest LikeStatus = 2
)

func (s LikeStatus) String() string {
	switch s {
	case LikeNoOp:
		return "noop"
	case LikeRecorded:
		return "recorded"
	case LikeMutualInterest:
		return "mutual_interest"
	default:
		return "unknown"
	}
}

// MatchStatus is the revealed status of a mutual-match check. Its numeric
// codes overlap with LikeStatus but mean different things, hence a separate
// type.
type MatchStatus uint8

const (
	MatchPending   MatchStatus = 0
	MatchConfirmed MatchStatus = 1
	MatchNoAction  MatchStatus = 2
)

func (s MatchStatus) String() string {
	switch s {
	case MatchPending:
		return "pending"
	case MatchConfirmed:
		return "matched"
	case MatchNoAction:
		return "no_match"
	default:
		return "unknown"
	}
}

// ParseMatchStatus is the inverse of MatchStatus.String.
func ParseMatchStatus(s string) (MatchStatus, bool) {
	switch s {
	case "pending":
		return MatchPending, true
	case "matched":
		return MatchConfirmed, true
	case "no_match":
		return MatchNoAction, true
	default:
		return 0, false
	}
}

// MatchResult is revealed by CheckMutualMatch. MatchTimestamp is 0 unless the
// match is mutual.
type MatchResult struct {
	IsMutualMatch  bool
	Status         MatchStatus
	MatchTimestamp uint64
}

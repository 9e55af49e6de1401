package circuits

// InitSession creates the confidential state for a new pair.
func InitSession(userAID, userBID, now uint64) MatchSession {
	return MatchSession{
		UserAID:     userAID,
		UserBID:     userBID,
		CreatedAt:   now,
		LastUpdated: now,
	}
}

// SubmitLike applies one action to the session. Each side can be recorded at
// most once; a replay, a second decision or a wrong pairing leaves the session
// untouched and reports LikeNoOp.
func SubmitLike(session MatchSession, action UserLikeAction) (MatchSession, LikeStatus) {
	switch {
	case action.UserID == session.UserAID && action.TargetID == session.UserBID && !session.UserA.Acted():
		session.UserA = DecisionFrom(action.LikeAction)
	case action.UserID == session.UserBID && action.TargetID == session.UserAID && !session.UserB.Acted():
		session.UserB = DecisionFrom(action.LikeAction)
	default:
		return session, LikeNoOp
	}

	session.LastUpdated = action.Timestamp
	if session.UserA.Liked() && session.UserB.Liked() {
		return session, LikeMutualInterest
	}
	return session, LikeRecorded
}

// CheckMutualMatch reads the current decisions. It never mutates the session;
// finalization belongs to the caller.
func CheckMutualMatch(session MatchSession, now uint64) MatchResult {
	a, b := session.UserA.Liked(), session.UserB.Liked()
	switch {
	case a && b:
		return MatchResult{IsMutualMatch: true, Status: MatchConfirmed, MatchTimestamp: now}
	case a || b:
		return MatchResult{Status: MatchPending}
	default:
		return MatchResult{Status: MatchNoAction}
	}
}

package room

// ClaimTeacherIfUnclaimed hands out the teacher role exactly once per room.
// The first caller gets true; every later caller gets false.
func (r *Room) ClaimTeacherIfUnclaimed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.claimTeacherLocked()
}

// SetBoardLock changes the lock flag when requested by a teacher. Requests from
// anyone else are ignored and report false.
func (r *Room) SetBoardLock(requesterIsTeacher, locked bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.setBoardLockLocked(requesterIsTeacher, locked)
}

// BoardLocked reports whether the board is locked for students.
func (r *Room) BoardLocked() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.boardLocked
}

func (r *Room) claimTeacherLocked() bool {
	if r.teacherClaimed {
		return false
	}
	r.teacherClaimed = true
	return true
}

func (r *Room) setBoardLockLocked(requesterIsTeacher, locked bool) bool {
	if !requesterIsTeacher {
		return false
	}
	r.boardLocked = locked
	return true
}

package audit

// Turn is one exchange unit of a conversation. Stages is nil for user
// turns. Open is true only while the assistant turn's stream is active;
// once it is false the turn never changes again.
type Turn struct {
	Role    Role
	Content string
	Stages  []Stage
	Open    bool
}

// TurnHandle addresses the assistant turn a stream session populates.
type TurnHandle int

// Conversation is an immutable snapshot of the transcript. Every method
// returns a new snapshot; slices shared with earlier snapshots are never
// written to, so any snapshot can be rendered while newer ones are built.
type Conversation struct {
	Turns []Turn
}

// AppendUser adds an immutable user turn.
func (c Conversation) AppendUser(text string) Conversation {
	return c.with(Turn{Role: RoleUser, Content: text})
}

// BeginAssistant adds an open assistant turn with empty content and stages
// and returns the handle used to address it.
func (c Conversation) BeginAssistant() (Conversation, TurnHandle) {
	next := c.with(Turn{Role: RoleAssistant, Open: true})
	return next, TurnHandle(len(next.Turns) - 1)
}

// Turn returns the turn addressed by h.
func (c Conversation) Turn(h TurnHandle) (Turn, bool) {
	if h < 0 || int(h) >= len(c.Turns) {
		return Turn{}, false
	}
	return c.Turns[h], true
}

// ApplyStage upserts a stage on the open turn h.
func (c Conversation) ApplyStage(h TurnHandle, id StageID, state StageState) Conversation {
	return c.update(h, func(t *Turn) {
		t.Stages = UpsertStage(t.Stages, id, state)
	})
}

// ApplyFinal replaces the content of the open turn h with text.
func (c Conversation) ApplyFinal(h TurnHandle, text string) Conversation {
	return c.update(h, func(t *Turn) {
		t.Content = text
	})
}

// ApplyError replaces the content of the open turn h with msg and closes
// the turn. Stages are left as they were.
func (c Conversation) ApplyError(h TurnHandle, msg string) Conversation {
	return c.update(h, func(t *Turn) {
		t.Content = msg
		t.Open = false
	})
}

// Finalize closes turn h without altering its content. Empty content stays
// empty; renderers decide on a placeholder.
func (c Conversation) Finalize(h TurnHandle) Conversation {
	return c.update(h, func(t *Turn) {
		t.Open = false
	})
}

// Apply folds one session event into the snapshot. Events for a closed
// turn are ignored, so nothing arriving after an error or a cancellation
// can change what is already shown.
func (c Conversation) Apply(h TurnHandle, evt Event) Conversation {
	switch e := evt.(type) {
	case EventStage:
		return c.ApplyStage(h, e.Stage, e.State)
	case EventFinal:
		return c.ApplyFinal(h, e.Content)
	case EventState:
		if !e.State.Terminal() {
			return c
		}
		if e.State == SessionFailed && e.Err != nil {
			return c.ApplyError(h, ErrorMessage(e.Err))
		}
		return c.Finalize(h)
	default:
		return c
	}
}

// History returns the closed turns as role/content pairs, oldest first.
func (c Conversation) History() []HistoryEntry {
	history := make([]HistoryEntry, 0, len(c.Turns))
	for _, t := range c.Turns {
		if t.Open {
			continue
		}
		history = append(history, HistoryEntry{Role: t.Role, Content: t.Content})
	}
	return history
}

// Active reports whether any turn is still open.
func (c Conversation) Active() bool {
	for _, t := range c.Turns {
		if t.Open {
			return true
		}
	}
	return false
}

func (c Conversation) with(t Turn) Conversation {
	turns := make([]Turn, len(c.Turns), len(c.Turns)+1)
	copy(turns, c.Turns)
	return Conversation{Turns: append(turns, t)}
}

func (c Conversation) update(h TurnHandle, fn func(*Turn)) Conversation {
	if h < 0 || int(h) >= len(c.Turns) || !c.Turns[h].Open {
		return c
	}
	turns := make([]Turn, len(c.Turns))
	copy(turns, c.Turns)
	fn(&turns[h])
	return Conversation{Turns: turns}
}

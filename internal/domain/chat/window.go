package chat

import "github.com/hearthchat/hearth/internal/domain/conversation"

// Window computes the exact slice of history replayed to the backend.
//
// Divider trimming runs first: the most recent divider id still present in
// history cuts off everything at or before it. Round trimming then bounds the
// result to the last contextRounds rounds, where a round is one user message
// plus the assistant/system messages between it and the next user message.
// contextRounds < 0 (conversation.RoundsUnlimited) disables the bound;
// contextRounds == 0 yields an empty window.
//
// The order is load-bearing: a round limit always counts within the
// post-divider view, so a user can "forget" old context and independently
// bound how many recent rounds are replayed.
func Window(history []conversation.Message, dividerIDs []string, contextRounds int) []conversation.Message {
	trimmed := trimAtLastDivider(history, dividerIDs)

	if contextRounds < 0 {
		return trimmed
	}
	if contextRounds == 0 {
		return nil
	}
	return lastRounds(trimmed, contextRounds)
}

// trimAtLastDivider drops every message at or before the newest divider that
// still exists in history. Dangling divider ids are skipped, not errors.
func trimAtLastDivider(history []conversation.Message, dividerIDs []string) []conversation.Message {
	for i := len(dividerIDs) - 1; i >= 0; i-- {
		for j := len(history) - 1; j >= 0; j-- {
			if history[j].ID == dividerIDs[i] {
				return history[j+1:]
			}
		}
	}
	return history
}

// lastRounds keeps the suffix of history containing at most n user messages.
func lastRounds(history []conversation.Message, n int) []conversation.Message {
	rounds := 0
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == conversation.RoleUser {
			rounds++
			if rounds == n {
				return history[i:]
			}
		}
	}
	return history
}

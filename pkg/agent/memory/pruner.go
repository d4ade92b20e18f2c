package memory

import (
	"github.com/entrhq/pilot/pkg/types"
)

// MediaPlaceholder replaces the content of a turn whose only blocks were media.
const MediaPlaceholder = "An image or document was removed for brevity."

// RemoveMediaExceptLastTurn strips image and structured blocks from every turn
// before the last user turn. The last user turn and anything after it are left
// untouched. Text blocks are always kept; a turn whose only blocks were media
// gets a placeholder text block. Returns the number of blocks removed.
//
// Does nothing when the conversation has fewer than two turns or no user turn.
func RemoveMediaExceptLastTurn(c *Conversation) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.turns) < 2 {
		return 0
	}

	lastUser := -1
	for i := len(c.turns) - 1; i >= 0; i-- {
		if c.turns[i].Role == types.RoleUser {
			lastUser = i
			break
		}
	}
	if lastUser <= 0 {
		return 0
	}

	removed := 0
	for i := 0; i < lastUser; i++ {
		turn := c.turns[i]
		if !needsPruning(turn) {
			continue
		}

		kept := make([]types.ContentBlock, 0, len(turn.Content))
		for _, block := range turn.Content {
			if block.IsMedia() {
				removed++
				continue
			}
			kept = append(kept, block)
		}
		if len(kept) == 0 {
			kept = append(kept, types.TextBlock(MediaPlaceholder))
		}

		c.turns[i] = types.Turn{Role: turn.Role, Content: kept, CreatedAt: turn.CreatedAt}
	}

	if removed > 0 {
		c.recompute()
		debugLog.Debugf("Pruned %d media blocks before turn %d", removed, lastUser)
	}
	return removed
}

func needsPruning(turn types.Turn) bool {
	for _, block := range turn.Content {
		if block.IsMedia() {
			return true
		}
	}
	return false
}

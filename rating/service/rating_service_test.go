package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/TitanForge/ARENA-SERVICES/shared/models"
)

func completedRecord() *models.MatchRecord {
	return &models.MatchRecord{
		MatchID:   "match-1",
		SeasonID:  "season-1",
		PlayerIDs: []string{"alice", "bob"},
		State:     models.MatchCompleted,
		WinnerID:  "alice",
	}
}

func TestValidateRecord(t *testing.T) {
	assert.NoError(t, validateRecord(completedRecord()))

	draw := completedRecord()
	draw.WinnerID = ""
	draw.Draw = true
	assert.NoError(t, validateRecord(draw))

	missingID := completedRecord()
	missingID.MatchID = ""
	assert.ErrorIs(t, validateRecord(missingID), ErrInvalidMatchRecord)

	missingSeason := completedRecord()
	missingSeason.SeasonID = ""
	assert.ErrorIs(t, validateRecord(missingSeason), ErrInvalidMatchRecord)

	onePlayer := completedRecord()
	onePlayer.PlayerIDs = []string{"alice"}
	assert.ErrorIs(t, validateRecord(onePlayer), ErrInvalidMatchRecord)

	// Cancelled matches archive without a winner or deltas.
	cancelled := completedRecord()
	cancelled.State = models.MatchCancelled
	cancelled.WinnerID = ""
	cancelled.EndReason = models.EndSelectLapse
	assert.NoError(t, validateRecord(cancelled))

	active := completedRecord()
	active.State = models.MatchActive
	assert.ErrorIs(t, validateRecord(active), ErrInvalidMatchRecord)

	noWinner := completedRecord()
	noWinner.WinnerID = ""
	assert.ErrorIs(t, validateRecord(noWinner), ErrInvalidMatchRecord)
}

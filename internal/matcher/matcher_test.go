package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Qzero991/telegram-rpg-trade-client/internal/database"
)

func item(id uint, name, grade, duration string) database.Item {
	return database.Item{ID: id, Name: name, Kind: database.KindEquipment, Grade: grade, Duration: duration}
}

func TestMatch_ExactNameScores100(t *testing.T) {
	m := New([]database.Item{
		item(1, "Меч рыцаря", "[II]", "undefined"),
		item(2, "Щит стража", "[I]", "undefined"),
	})

	res, err := m.Match("меч рыцаря", "undefined", "undefined")
	require.NoError(t, err)
	assert.Equal(t, uint(1), res.Item.ID)
	assert.Equal(t, 100.0, res.Score)
}

func TestMatch_SingleGradedItemWithoutHint(t *testing.T) {
	// The catalog has only one entry for the name, so the missing grade
	// hint must not block resolution.
	m := New([]database.Item{
		item(1, "Меч рыцаря", "[II]", "undefined"),
	})

	res, err := m.Match("Меч рыцаря", "undefined", "undefined")
	require.NoError(t, err)
	assert.Equal(t, "Меч рыцаря", res.Item.Name)
	assert.GreaterOrEqual(t, res.Score, 80.0)
}

func TestMatch_AmbiguousWithoutGradeHint(t *testing.T) {
	m := New([]database.Item{
		item(1, "Меч рыцаря", "[I]", "undefined"),
		item(2, "Меч рыцаря", "[II]", "undefined"),
	})

	_, err := m.Match("Меч рыцаря", "undefined", "undefined")
	assert.ErrorIs(t, err, ErrAmbiguous)
}

func TestMatch_GradeHintDisambiguates(t *testing.T) {
	m := New([]database.Item{
		item(1, "Меч рыцаря", "[I]", "undefined"),
		item(2, "Меч рыцаря", "[II]", "undefined"),
	})

	res, err := m.Match("Меч рыцаря", "[II]", "undefined")
	require.NoError(t, err)
	assert.Equal(t, uint(2), res.Item.ID)
}

func TestMatch_GradeFilterEmptiesCandidates(t *testing.T) {
	m := New([]database.Item{
		item(1, "Меч рыцаря", "[I]", "undefined"),
	})

	_, err := m.Match("Меч рыцаря", "[III]", "undefined")
	assert.ErrorIs(t, err, ErrNoCandidates)
}

func TestMatch_AmbiguousByDuration(t *testing.T) {
	// Same name and grade, different durations: without a duration hint
	// the mention cannot be pinned to one entry.
	m := New([]database.Item{
		item(1, "Факел", "[I]", "1 час"),
		item(2, "Факел", "[I]", "3 часа"),
	})

	_, err := m.Match("Факел", "[I]", "undefined")
	assert.ErrorIs(t, err, ErrAmbiguous)
}

func TestMatch_DurationHintDisambiguates(t *testing.T) {
	m := New([]database.Item{
		item(1, "Факел", "[I]", "1 час"),
		item(2, "Факел", "[I]", "3 часа"),
	})

	res, err := m.Match("Факел", "[I]", "3 часа")
	require.NoError(t, err)
	assert.Equal(t, uint(2), res.Item.ID)
}

func TestMatch_LowConfidence(t *testing.T) {
	m := New([]database.Item{
		item(1, "Меч рыцаря", "[II]", "undefined"),
	})

	_, err := m.Match("яяяяяяяяяя", "undefined", "undefined")
	assert.ErrorIs(t, err, ErrLowConfidence)
}

func TestMatch_Deterministic(t *testing.T) {
	items := []database.Item{
		item(1, "Меч рыцаря", "[I]", "undefined"),
		item(2, "Меч стража", "[I]", "undefined"),
		item(3, "Меч паладина", "[I]", "undefined"),
	}
	m := New(items)

	first, err1 := m.Match("меч рыцаря", "undefined", "undefined")
	second, err2 := m.Match("меч рыцаря", "undefined", "undefined")

	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, first.Item.ID, second.Item.ID)
	assert.Equal(t, first.Score, second.Score)
}

func TestMatch_ExactOutranksFuzzy(t *testing.T) {
	// The exact name must win even when a longer name contains the mention
	// as a substring (partial similarity 100 on both).
	m := New([]database.Item{
		item(1, "Меч рыцаря севера", "[I]", "undefined"),
		item(2, "Меч рыцаря", "[I]", "undefined"),
	})

	res, err := m.Match("Меч рыцаря", "undefined", "undefined")
	require.NoError(t, err)
	assert.Equal(t, uint(2), res.Item.ID)
	assert.Equal(t, 100.0, res.Score)
}

func TestTopCandidates_StableOrderOnTies(t *testing.T) {
	// Two identically named entries score identically; the earlier catalog
	// entry must stay ranked first.
	m := New([]database.Item{
		item(7, "Факел", "[I]", "1 час"),
		item(9, "Факел", "[II]", "1 час"),
	})

	cands := m.topCandidates("Факел")
	require.Len(t, cands, 2)
	assert.Equal(t, uint(7), cands[0].item.ID)
	assert.Equal(t, uint(9), cands[1].item.ID)
}

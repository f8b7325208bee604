package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContainsTradeKeywords(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"Продам меч рыцаря за 100 монет", true},
		{"КУПЛЮ зелья силы", true},
		{"скупка ресурсов дорого", true},
		{"продамм факелы", true}, // typo still passes the fuzzy gate
		{"привет, как дела?", false},
		{"сегодня рейд в 20:00", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ContainsTradeKeywords(tt.text), tt.text)
	}
}

func TestNormalizeResponse_BareArray(t *testing.T) {
	entries, err := NormalizeResponse(`[
		{"item_name":"Меч рыцаря","quantity":2,"item_grade":"[II]","item_duration":"undefined","price_for_one":100,"offer_type":"sell","currency":"money"}
	]`)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Меч рыцаря", entries[0].ItemName)
	require.NotNil(t, entries[0].Quantity)
	assert.Equal(t, 2, *entries[0].Quantity)
}

func TestNormalizeResponse_ItemsWrapper(t *testing.T) {
	entries, err := NormalizeResponse(`{"items":[
		{"item_name":"Факел","quantity":null,"item_grade":"undefined","item_duration":"2 часа","price_for_one":5,"offer_type":"buy","currency":"cookies"}
	]}`)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Nil(t, entries[0].Quantity)
	assert.Equal(t, "cookies", entries[0].Currency)
}

func TestNormalizeResponse_OffersWrapper(t *testing.T) {
	entries, err := NormalizeResponse(`{"offers":[
		{"item_name":"Руда","price_for_one":3,"offer_type":"sell","currency":"money"}
	]}`)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestNormalizeResponse_SingleObject(t *testing.T) {
	entries, err := NormalizeResponse(`{"item_name":"Руда","price_for_one":3,"offer_type":"sell","currency":"money"}`)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestNormalizeResponse_FiltersInvalidEntries(t *testing.T) {
	entries, err := NormalizeResponse(`[
		{"item_name":"А","price_for_one":10,"offer_type":"sell","currency":"money"},
		{"item_name":"Б","price_for_one":10.5,"offer_type":"sell","currency":"money"},
		{"item_name":"В","price_for_one":10,"offer_type":"sell","currency":"gold"}
	]`)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "А", entries[0].ItemName)
}

func TestNormalizeResponse_NoneSentinel(t *testing.T) {
	for _, content := range []string{"None", "none", ` "None" `, "null"} {
		entries, err := NormalizeResponse(content)
		require.NoError(t, err, content)
		assert.Empty(t, entries, content)
	}
}

func TestNormalizeResponse_InvalidJSON(t *testing.T) {
	_, err := NormalizeResponse("sure, here are the offers:")
	assert.Error(t, err)
}

func TestRawEntryValid(t *testing.T) {
	valid := RawEntry{PriceForOne: "100", Currency: "money"}
	assert.True(t, valid.Valid())

	fractional := RawEntry{PriceForOne: "100.5", Currency: "money"}
	assert.False(t, fractional.Valid())

	badCurrency := RawEntry{PriceForOne: "100", Currency: "gems"}
	assert.False(t, badCurrency.Valid())
}

package models

import (
	"testing"

	"lsadf-backend/core/apperror"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func p(v int64) *int64 { return &v }

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		value   interface{ Validate() error }
		invalid bool
	}{
		{"EmptyCharacteristics", Characteristics{}, false},
		{"NegativeAttack", Characteristics{Attack: p(-1)}, true},
		{"Currency", Currency{Gold: p(0), Diamond: p(10)}, false},
		{"NegativeAmethyst", Currency{Amethyst: p(-5)}, true},
		{"Stage", Stage{CurrentStage: p(1), MaxStage: p(1)}, false},
		{"StageAboveMax", Stage{CurrentStage: p(5), MaxStage: p(3)}, false},
		{"NegativeMaxStage", Stage{CurrentStage: p(1), MaxStage: p(-1)}, true},
		{"MetadataMissingID", GameMetadata{UserEmail: "a@b.c"}, true},
		{"Metadata", GameMetadata{ID: uuid.New(), UserEmail: "a@b.c"}, false},
		{"InventoryKeyMismatch", Inventory{Items: map[string]Item{"a": {ClientID: "b"}}}, true},
		{"InventoryNegativeLevel", Inventory{Items: map[string]Item{"a": {ClientID: "a", Level: -1}}}, true},
		{"Inventory", Inventory{Items: map[string]Item{"a": {ClientID: "a", Level: 2}}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.value.Validate()
			if tt.invalid {
				assert.ErrorIs(t, err, apperror.ErrInvalidValue)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCurrency_Add(t *testing.T) {
	sum := Currency{Gold: p(10)}.Add(Currency{Gold: p(5), Diamond: p(1)})
	assert.Equal(t, int64(15), *sum.Gold)
	assert.Equal(t, int64(1), *sum.Diamond)
	assert.Nil(t, sum.Emerald)
}

func TestInventory_WithWithout(t *testing.T) {
	inv := Inventory{}.With(Item{ClientID: "a"}).With(Item{ClientID: "b"})
	assert.Len(t, inv.Items, 2)

	smaller := inv.Without("a")
	assert.Len(t, smaller.Items, 1)
	assert.Len(t, inv.Items, 2, "original must not change")
}

func TestCodecs(t *testing.T) {
	c := Characteristics{Attack: p(3), Health: p(100)}
	fields, err := CharacteristicsCodec.Encode(c)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"attack": "3", "health": "100"}, fields)
	back, err := CharacteristicsCodec.Decode(fields)
	require.NoError(t, err)
	assert.Equal(t, c, back)

	_, err = CurrencyCodec.Decode(map[string]string{"gold": "lots"})
	assert.Error(t, err)

	inv := Inventory{Items: map[string]Item{"x": {ClientID: "x", ItemType: "boots", Level: 7, Equipped: true}}}
	fields, err = InventoryCodec.Encode(inv)
	require.NoError(t, err)
	assert.Contains(t, fields, "item:x")
	fields["_v"] = "1"
	decoded, err := InventoryCodec.Decode(fields)
	require.NoError(t, err)
	assert.Equal(t, inv, decoded)

	meta := GameMetadata{ID: uuid.New(), UserEmail: "a@b.c", Nickname: "n"}
	fields, err = MetadataCodec.Encode(meta)
	require.NoError(t, err)
	decodedMeta, err := MetadataCodec.Decode(fields)
	require.NoError(t, err)
	assert.Equal(t, meta, decodedMeta)
}

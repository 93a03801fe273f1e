package models

import (
	"fmt"
	"time"

	"lsadf-backend/core/apperror"

	"github.com/google/uuid"
)

// Resource kinds, used as cache namespaces and checkpoint step names.
const (
	KindCharacteristics = "characteristics"
	KindCurrency        = "currency"
	KindStage           = "stage"
	KindInventory       = "inventory"
	KindMetadata        = "metadata"
)

// Characteristics are the player's combat stats. Nil fields are unset.
type Characteristics struct {
	Attack     *int64 `json:"attack,omitempty"`
	CritChance *int64 `json:"crit_chance,omitempty"`
	CritDamage *int64 `json:"crit_damage,omitempty"`
	Health     *int64 `json:"health,omitempty"`
	Resistance *int64 `json:"resistance,omitempty"`
}

// Validate checks that every present field is non-negative.
func (c Characteristics) Validate() error {
	return nonNegative(map[string]*int64{
		"attack":      c.Attack,
		"crit_chance": c.CritChance,
		"crit_damage": c.CritDamage,
		"health":      c.Health,
		"resistance":  c.Resistance,
	})
}

// Currency holds the player's balances. Nil fields are unset.
type Currency struct {
	Gold     *int64 `json:"gold,omitempty"`
	Diamond  *int64 `json:"diamond,omitempty"`
	Emerald  *int64 `json:"emerald,omitempty"`
	Amethyst *int64 `json:"amethyst,omitempty"`
}

// Validate checks that every present field is non-negative.
func (c Currency) Validate() error {
	return nonNegative(map[string]*int64{
		"gold":     c.Gold,
		"diamond":  c.Diamond,
		"emerald":  c.Emerald,
		"amethyst": c.Amethyst,
	})
}

// Add returns a new Currency with delta added to every field; unset fields count as zero.
func (c Currency) Add(delta Currency) Currency {
	sum := func(a, b *int64) *int64 {
		if a == nil && b == nil {
			return nil
		}
		var v int64
		if a != nil {
			v += *a
		}
		if b != nil {
			v += *b
		}
		return &v
	}
	return Currency{
		Gold:     sum(c.Gold, delta.Gold),
		Diamond:  sum(c.Diamond, delta.Diamond),
		Emerald:  sum(c.Emerald, delta.Emerald),
		Amethyst: sum(c.Amethyst, delta.Amethyst),
	}
}

// Stage is the player's progression.
type Stage struct {
	CurrentStage *int64 `json:"current_stage,omitempty"`
	MaxStage     *int64 `json:"max_stage,omitempty"`
}

// Validate checks that every present field is non-negative. The two stages are independent.
func (s Stage) Validate() error {
	return nonNegative(map[string]*int64{
		"current_stage": s.CurrentStage,
		"max_stage":     s.MaxStage,
	})
}

// GameMetadata describes a game save.
type GameMetadata struct {
	ID        uuid.UUID `json:"id"`
	UserEmail string    `json:"user_email"`
	Nickname  string    `json:"nickname"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks the required identity fields.
func (m GameMetadata) Validate() error {
	if m.ID == uuid.Nil {
		return fmt.Errorf("%w: metadata id is required", apperror.ErrInvalidValue)
	}
	if m.UserEmail == "" {
		return fmt.Errorf("%w: user_email is required", apperror.ErrInvalidValue)
	}
	return nil
}

// Item is one inventory entry, identified by the client-generated id.
type Item struct {
	ClientID string `json:"client_id"`
	ItemType string `json:"item_type"`
	Rarity   string `json:"rarity"`
	Level    int64  `json:"level"`
	Equipped bool   `json:"equipped"`
}

// Inventory is the full set of items of a game save, keyed by client id.
type Inventory struct {
	Items map[string]Item `json:"items"`
}

// Validate checks item identity and levels.
func (inv Inventory) Validate() error {
	for key, item := range inv.Items {
		if item.ClientID == "" || item.ClientID != key {
			return fmt.Errorf("%w: item key %q does not match client_id %q", apperror.ErrInvalidValue, key, item.ClientID)
		}
		if item.Level < 0 {
			return fmt.Errorf("%w: item %s level must be >= 0", apperror.ErrInvalidValue, key)
		}
	}
	return nil
}

// Without returns a copy of inv without the given item.
func (inv Inventory) Without(clientID string) Inventory {
	items := make(map[string]Item, len(inv.Items))
	for k, v := range inv.Items {
		if k != clientID {
			items[k] = v
		}
	}
	return Inventory{Items: items}
}

// With returns a copy of inv with item added or replaced.
func (inv Inventory) With(item Item) Inventory {
	items := make(map[string]Item, len(inv.Items)+1)
	for k, v := range inv.Items {
		items[k] = v
	}
	items[item.ClientID] = item
	return Inventory{Items: items}
}

func nonNegative(fields map[string]*int64) error {
	for name, v := range fields {
		if v != nil && *v < 0 {
			return fmt.Errorf("%w: %s must be >= 0, got %d", apperror.ErrInvalidValue, name, *v)
		}
	}
	return nil
}

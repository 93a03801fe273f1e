package models

import (
	"fmt"
	"strings"

	"lsadf-backend/core/cache"
	"lsadf-backend/core/utils"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

const itemFieldPrefix = "item:"

// CharacteristicsCodec stores one hash field per stat.
var CharacteristicsCodec = cache.CodecFuncs[Characteristics]{
	EncodeFunc: func(c Characteristics) (map[string]string, error) {
		f := map[string]string{}
		utils.PutInt64(f, "attack", c.Attack)
		utils.PutInt64(f, "crit_chance", c.CritChance)
		utils.PutInt64(f, "crit_damage", c.CritDamage)
		utils.PutInt64(f, "health", c.Health)
		utils.PutInt64(f, "resistance", c.Resistance)
		return f, nil
	},
	DecodeFunc: func(f map[string]string) (Characteristics, error) {
		var c Characteristics
		var err error
		if c.Attack, err = utils.GetInt64(f, "attack"); err != nil {
			return c, err
		}
		if c.CritChance, err = utils.GetInt64(f, "crit_chance"); err != nil {
			return c, err
		}
		if c.CritDamage, err = utils.GetInt64(f, "crit_damage"); err != nil {
			return c, err
		}
		if c.Health, err = utils.GetInt64(f, "health"); err != nil {
			return c, err
		}
		c.Resistance, err = utils.GetInt64(f, "resistance")
		return c, err
	},
}

// CurrencyCodec stores one hash field per currency.
var CurrencyCodec = cache.CodecFuncs[Currency]{
	EncodeFunc: func(c Currency) (map[string]string, error) {
		f := map[string]string{}
		utils.PutInt64(f, "gold", c.Gold)
		utils.PutInt64(f, "diamond", c.Diamond)
		utils.PutInt64(f, "emerald", c.Emerald)
		utils.PutInt64(f, "amethyst", c.Amethyst)
		return f, nil
	},
	DecodeFunc: func(f map[string]string) (Currency, error) {
		var c Currency
		var err error
		if c.Gold, err = utils.GetInt64(f, "gold"); err != nil {
			return c, err
		}
		if c.Diamond, err = utils.GetInt64(f, "diamond"); err != nil {
			return c, err
		}
		if c.Emerald, err = utils.GetInt64(f, "emerald"); err != nil {
			return c, err
		}
		c.Amethyst, err = utils.GetInt64(f, "amethyst")
		return c, err
	},
}

// StageCodec stores current and max stage as hash fields.
var StageCodec = cache.CodecFuncs[Stage]{
	EncodeFunc: func(s Stage) (map[string]string, error) {
		f := map[string]string{}
		utils.PutInt64(f, "current_stage", s.CurrentStage)
		utils.PutInt64(f, "max_stage", s.MaxStage)
		return f, nil
	},
	DecodeFunc: func(f map[string]string) (Stage, error) {
		var s Stage
		var err error
		if s.CurrentStage, err = utils.GetInt64(f, "current_stage"); err != nil {
			return s, err
		}
		s.MaxStage, err = utils.GetInt64(f, "max_stage")
		return s, err
	},
}

// MetadataCodec stores the metadata fields as plain strings.
var MetadataCodec = cache.CodecFuncs[GameMetadata]{
	EncodeFunc: func(m GameMetadata) (map[string]string, error) {
		f := map[string]string{
			"id":         m.ID.String(),
			"user_email": m.UserEmail,
			"nickname":   m.Nickname,
		}
		utils.PutTime(f, "created_at", m.CreatedAt)
		utils.PutTime(f, "updated_at", m.UpdatedAt)
		return f, nil
	},
	DecodeFunc: func(f map[string]string) (GameMetadata, error) {
		var m GameMetadata
		id, err := uuid.Parse(f["id"])
		if err != nil {
			return m, fmt.Errorf("field id: %w", err)
		}
		m.ID = id
		m.UserEmail = f["user_email"]
		m.Nickname = f["nickname"]
		if m.CreatedAt, err = utils.GetTime(f, "created_at"); err != nil {
			return m, err
		}
		m.UpdatedAt, err = utils.GetTime(f, "updated_at")
		return m, err
	},
}

// InventoryCodec stores each item as a JSON field keyed by its client id.
var InventoryCodec = cache.CodecFuncs[Inventory]{
	EncodeFunc: func(inv Inventory) (map[string]string, error) {
		f := make(map[string]string, len(inv.Items))
		for id, item := range inv.Items {
			data, err := json.Marshal(item)
			if err != nil {
				return nil, fmt.Errorf("item %s: %w", id, err)
			}
			f[itemFieldPrefix+id] = string(data)
		}
		return f, nil
	},
	DecodeFunc: func(f map[string]string) (Inventory, error) {
		inv := Inventory{Items: make(map[string]Item, len(f))}
		for name, raw := range f {
			id, ok := strings.CutPrefix(name, itemFieldPrefix)
			if !ok {
				continue
			}
			var item Item
			if err := json.Unmarshal([]byte(raw), &item); err != nil {
				return inv, fmt.Errorf("item %s: %w", id, err)
			}
			inv.Items[id] = item
		}
		return inv, nil
	},
}

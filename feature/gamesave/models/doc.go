// Package models defines the game-save value objects and their durable gorm rows.
//
// Value objects (Characteristics, Currency, Stage, GameMetadata, Inventory) are replaced as a
// whole on update. Numeric fields are optional: nil means unset, and a present value must be
// non-negative.
package models

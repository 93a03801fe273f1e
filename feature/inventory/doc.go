// Package inventory edits game-save inventories item by item.
//
// Item deletion cascades synchronously: the cached inventory is rewritten cache-only and an
// InventoryItemDeleted event is published, whose listener deletes the durable row before the
// call returns.
package inventory

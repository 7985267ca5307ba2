// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mirefall Contributors

package world

import (
	"math/rand/v2"

	"github.com/mirefall/mirefall/internal/content"
)

// GoldItemID is the item id gold drops use on the wire.
const GoldItemID = 1046

// GroundDrop is a loot item placed on the map after a kill.
type GroundDrop struct {
	ItemID int
	Amount int
	X, Y   int16
}

// RollDrops rolls a dead monster's loot table plus a gold roll, placing
// results at the death position. Drop chances are per mille; the gold
// roll lands roughly one kill in four, scaled by monster level.
func RollDrops(def *content.Monster, x, y int16, rng *rand.Rand) []GroundDrop {
	var drops []GroundDrop
	for _, d := range def.Drops {
		if rng.IntN(1000) < d.Chance {
			drops = append(drops, GroundDrop{ItemID: d.ItemID, Amount: d.Amount, X: x, Y: y})
		}
	}

	if rng.IntN(4) == 0 {
		gold := 6*def.Level + rng.IntN(6*def.Level+1)
		drops = append(drops, GroundDrop{ItemID: GoldItemID, Amount: gold, X: x, Y: y})
	}
	return drops
}

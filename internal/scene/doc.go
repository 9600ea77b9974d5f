// Package scene defines the persisted ball event and the projection that
// folds a globe's event range into the set of currently alive objects.
//
// A globe's history is an ordered stream of insert and delete events. Events
// are never mutated; deleting an object appends a tombstone carrying the same
// uuid. The current scene is always derived by replaying that stream:
//
//	alive := scene.NewAlive()
//	for _, tx := range txs {
//	    alive.Apply(tx.Ball)
//	}
//
// The projection is a disposable view. It is never persisted.
package scene

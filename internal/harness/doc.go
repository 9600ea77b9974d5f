// Package harness runs ball scenarios against a real engine and compares
// the resulting traces with golden files.
//
// # Scenario Format
//
// Scenarios are YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	globe: earth
//	rules:
//	  min_separation: 0.5
//	setup:
//	  - insert: { uuid: U1, is_fixed: true, color: "#FF0000FF", position: [0, 0, 1] }
//	flow:
//	  - insert: { uuid: U2, is_fixed: true, color: "#FF0000FF", position: [0, 0, 5] }
//	    expect:
//	      outcome: rejected
//	      reason: OFF_SURFACE
//	  - delete: U1
//	  - page: "0"
//	    expect:
//	      count: 2
//	assertions:
//	  - type: not_alive
//	    uuid: U1
//
// Setup steps must be accepted. Flow steps are checked against their expect
// clause when one is given. Rules not named in the scenario keep their
// default values.
//
// # Determinism
//
// Each run opens a fresh in-memory SQLite log whose event ids come from a
// deterministic clock starting at Epoch and advancing one millisecond per
// append. The same scenario therefore always yields the same transaction
// ids, which is what makes golden comparison possible.
//
// # Assertions
//
//   - alive: the uuid is in the alive projection
//   - not_alive: the uuid is not in the alive projection
//   - alive_count: number of alive balls
//   - fixed_count: number of alive fixed balls
//   - page_count: number of transactions on the page at cursor
//   - verified: replaying the log is deterministic and agrees with the cache
package harness

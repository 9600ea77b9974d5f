// Package validate is the admission gate for ball events.
//
// The gate decides, against the alive-objects projection of a globe, whether
// an insert or delete may be appended. It has no side effects: callers append
// only after a nil result, and must hold whatever lock makes the projection
// they passed in current (see engine).
//
// Insert checks run in a fixed order and the first failure wins:
//
//  1. fixed objects carry no impulse
//  2. position is present
//  3. |position| lies in [SphereRadius, SphereRadius+BallRadius+SurfaceTolerance]
//  4. fixed objects keep MinSeparation from every alive fixed object
//  5. uuid is not already alive
//  6. color is present and matches #RRGGBBAA
//  7. dynamic objects carry a tangential impulse with magnitude in
//     [MinImpulse, MaxImpulse]
//
// A delete is admitted only if its uuid is alive.
package validate

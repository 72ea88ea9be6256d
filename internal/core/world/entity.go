package world

import (
	"time"

	"github.com/zeusync/simsensors/internal/core/systems/physics"
)

// Entity is a rigid body that sensors can be attached to.
type Entity struct {
	Name string
	Pose physics.Pose
	// AngularVelocity holds body-frame rates in rad/s.
	AngularVelocity physics.Vector3
	// LinearVelocity is in the world frame, m/s.
	LinearVelocity physics.Vector3
}

// Step integrates the entity's motion over dt with a constant-rate rotation
// about the body rate vector.
func (e *Entity) Step(dt time.Duration) {
	secs := dt.Seconds()
	e.Pose.Pos = e.Pose.Pos.Add(e.LinearVelocity.Scale(secs))

	rate := e.AngularVelocity.Length()
	if rate == 0 {
		return
	}
	dq := physics.QuatFromAxisAngle(e.AngularVelocity, rate*secs)
	e.Pose.Rot = e.Pose.Rot.Mul(dq).Normalize()
}

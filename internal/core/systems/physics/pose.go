package physics

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Pose is a position plus orientation, expressed in some parent frame.
type Pose struct {
	Pos Vector3    `json:"pos" yaml:"pos"`
	Rot Quaternion `json:"rot" yaml:"rot"`
}

func PoseIdent() Pose { return Pose{Rot: QuatIdent()} }

// NewPose builds a pose from a position and ZYX Euler angles.
func NewPose(x, y, z, roll, pitch, yaw float64) Pose {
	return Pose{Pos: Vec3(x, y, z), Rot: QuatFromEuler(roll, pitch, yaw)}
}

// Compose returns child, given relative to p, expressed in p's parent frame.
func (p Pose) Compose(child Pose) Pose {
	return Pose{
		Pos: p.Pos.Add(p.Rot.Rotate(child.Pos)),
		Rot: p.Rot.Mul(child.Rot),
	}
}

// Inverse returns the pose of p's parent frame expressed in p.
func (p Pose) Inverse() Pose {
	inv := p.Rot.Inverse()
	return Pose{
		Pos: inv.Rotate(p.Pos).Scale(-1),
		Rot: inv,
	}
}

func (p Pose) Equal(o Pose, eps float64) bool {
	return p.Pos.Equal(o.Pos, eps) && p.Rot.Equal(o.Rot, eps)
}

func (p Pose) String() string {
	return fmt.Sprintf("pos=%s rot=%s", p.Pos, p.Rot)
}

// UnmarshalYAML accepts [x, y, z, roll, pitch, yaw], [x, y, z, qw, qx, qy, qz],
// or a mapping with pos/rot keys. Orientations are normalized on decode and a
// missing orientation means identity.
func (p *Pose) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.SequenceNode {
		var c []float64
		if err := node.Decode(&c); err != nil {
			return err
		}
		switch len(c) {
		case 6:
			*p = NewPose(c[0], c[1], c[2], c[3], c[4], c[5])
		case 7:
			*p = Pose{
				Pos: Vec3(c[0], c[1], c[2]),
				Rot: Quaternion{W: c[3], X: c[4], Y: c[5], Z: c[6]}.Normalize(),
			}
		default:
			return fmt.Errorf("line %d: pose needs 6 or 7 components, got %d", node.Line, len(c))
		}
		return nil
	}
	type plain Pose
	var raw plain
	if err := node.Decode(&raw); err != nil {
		return err
	}
	*p = Pose(raw)
	p.Rot = p.Rot.Normalize()
	return nil
}

package physics

// Spatial types shared by sensors and the world. The arithmetic is delegated to
// mgl64; these wrappers keep plain X/Y/Z fields so values can be compared,
// logged and decoded from configuration without conversion.

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"gopkg.in/yaml.v3"
)

// Vector3 is a 3D vector in whatever frame the caller documents.
type Vector3 struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

func Vec3(x, y, z float64) Vector3 { return Vector3{X: x, Y: y, Z: z} }

func fromMgl(v mgl64.Vec3) Vector3 { return Vector3{X: v[0], Y: v[1], Z: v[2]} }

func (v Vector3) mgl() mgl64.Vec3 { return mgl64.Vec3{v.X, v.Y, v.Z} }

func (v Vector3) Add(o Vector3) Vector3 { return fromMgl(v.mgl().Add(o.mgl())) }

func (v Vector3) Sub(o Vector3) Vector3 { return fromMgl(v.mgl().Sub(o.mgl())) }

func (v Vector3) Scale(s float64) Vector3 { return fromMgl(v.mgl().Mul(s)) }

func (v Vector3) Dot(o Vector3) float64 { return v.mgl().Dot(o.mgl()) }

func (v Vector3) Cross(o Vector3) Vector3 { return fromMgl(v.mgl().Cross(o.mgl())) }

func (v Vector3) Length() float64 { return v.mgl().Len() }

// Normalize returns the unit vector, or the zero vector when v has no length.
func (v Vector3) Normalize() Vector3 {
	if v.Length() == 0 {
		return Vector3{}
	}
	return fromMgl(v.mgl().Normalize())
}

// Equal reports whether every component differs by at most eps.
func (v Vector3) Equal(o Vector3, eps float64) bool {
	return math.Abs(v.X-o.X) <= eps && math.Abs(v.Y-o.Y) <= eps && math.Abs(v.Z-o.Z) <= eps
}

func (v Vector3) IsFinite() bool {
	for _, c := range [3]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

func (v Vector3) String() string {
	return fmt.Sprintf("(%g, %g, %g)", v.X, v.Y, v.Z)
}

// UnmarshalYAML accepts either a flow sequence [x, y, z] or a mapping with x/y/z keys.
func (v *Vector3) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.SequenceNode {
		var xyz []float64
		if err := node.Decode(&xyz); err != nil {
			return err
		}
		if len(xyz) != 3 {
			return fmt.Errorf("line %d: vector needs 3 components, got %d", node.Line, len(xyz))
		}
		*v = Vector3{X: xyz[0], Y: xyz[1], Z: xyz[2]}
		return nil
	}
	type plain Vector3
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*v = Vector3(p)
	return nil
}

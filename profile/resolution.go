package profile

// Resolution maps raw integers to physical values: physical = raw/Scale + Offset.
type Resolution struct {
	Scale  float64 `yaml:"scale" json:"scale"`
	Offset float64 `yaml:"offset" json:"offset"`
}

// Identity leaves raw values unchanged.
var Identity = Resolution{Scale: 1}

func (r Resolution) IsIdentity() bool {
	return r.scale() == 1 && r.Offset == 0
}

func (r Resolution) ToPhysical(raw float64) float64 {
	return raw/r.scale() + r.Offset
}

// ToRaw inverts ToPhysical. The result is not rounded or range-checked; the
// base type does that when the value is written.
func (r Resolution) ToRaw(physical float64) float64 {
	return (physical - r.Offset) * r.scale()
}

// scale treats a zero scale as 1 so a missing YAML key never divides by zero.
func (r Resolution) scale() float64 {
	if r.Scale == 0 {
		return 1
	}
	return r.Scale
}

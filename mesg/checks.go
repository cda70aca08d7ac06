package mesg

import "fmt"

// check enforces a cross-field rule of one message type.
type check func(m *Message) error

var checks = map[string]check{
	"watchface_layout":  checkWatchfaceLayout,
	"exercise_category": checkExerciseCategory,
}

// Validate runs the cross-field checks the message's table names. Decoding
// never calls it; building and encoding do.
func (m *Message) Validate() error {
	for _, name := range m.table.Checks {
		c, ok := checks[name]
		if !ok {
			return fmt.Errorf("%s: unknown check %q", m.Name(), name)
		}
		if err := c(m); err != nil {
			return fmt.Errorf("%s: %w: %w", m.Name(), ErrPropertyValueInvalid, err)
		}
	}
	return nil
}

const (
	watchfaceDigital   = 0
	watchfaceAnalog    = 1
	watchfaceMaxLayout = 2
)

// checkWatchfaceLayout: the layout byte is only meaningful for digital and
// analog faces, and each has three layouts.
func checkWatchfaceLayout(m *Message) error {
	layout, ok := m.Bytes("layout")
	if !ok || len(layout) == 0 {
		return nil
	}
	mode, ok := m.Uint("mode")
	if !ok {
		return fmt.Errorf("layout %d without a mode", layout[0])
	}
	if mode != watchfaceDigital && mode != watchfaceAnalog {
		return fmt.Errorf("layout %d set for mode %d", layout[0], mode)
	}
	if layout[0] > watchfaceMaxLayout {
		return fmt.Errorf("layout %d out of range for mode %d", layout[0], mode)
	}
	return nil
}

// checkExerciseCategory: an exercise name is numbered within its category,
// so it needs a known category.
func checkExerciseCategory(m *Message) error {
	category, hasCategory := m.Uint("exercise_category")
	if hasCategory {
		if _, known := m.Enum("exercise_category"); !known {
			return fmt.Errorf("unknown exercise category %d", category)
		}
	}
	if name, ok := m.Uint("exercise_name"); ok && !hasCategory {
		return fmt.Errorf("exercise name %d without a category", name)
	}
	return nil
}

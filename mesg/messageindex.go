package mesg

import "fmt"

const (
	messageIndexSelected = 0x8000
	messageIndexMask     = 0x0FFF
)

// MessageIndex is the field 254 convention: a 12-bit index into a list of
// messages of the same type plus a "selected" flag.
type MessageIndex uint16

func NewMessageIndex(index uint16, selected bool) MessageIndex {
	mi := MessageIndex(index & messageIndexMask)
	if selected {
		mi |= messageIndexSelected
	}
	return mi
}

func (mi MessageIndex) Index() uint16  { return uint16(mi) & messageIndexMask }
func (mi MessageIndex) Selected() bool { return uint16(mi)&messageIndexSelected != 0 }

func (mi MessageIndex) String() string {
	if mi.Selected() {
		return fmt.Sprintf("%d*", mi.Index())
	}
	return fmt.Sprint(mi.Index())
}

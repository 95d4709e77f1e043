package mutation

import "fmt"

// Fit is the closed set of resize policies: Contain and Cover.  The
// interface is sealed by its unexported method, so a new policy cannot be
// added outside this package and every policy must supply its own resize
// clauses to compile.
type Fit interface {
	fmt.Stringer
	clauses(b box, bg string) []string
}

// box is a scaled target; a zero-valued side with has*=false is unset.
type box struct {
	w, h       int
	hasW, hasH bool
}

type contain struct{}

type cover struct{}

var (
	// Contain shrinks the image to fit inside the box without cropping.
	Contain Fit = contain{}
	// Cover fills the box, cropping the overflow and padding with the
	// background colour.
	Cover Fit = cover{}
)

func (contain) String() string { return "contain" }

func (contain) clauses(b box, _ string) []string {
	switch {
	case b.hasW && b.hasH:
		return []string{fmt.Sprintf("resize_%dx%dshrink", b.w, b.h)}
	case b.hasW:
		return []string{fmt.Sprintf("resize_%dshrink", b.w)}
	default:
		return []string{fmt.Sprintf("resize_x%dshrink", b.h)}
	}
}

func (cover) String() string { return "cover" }

func (cover) clauses(b box, bg string) []string {
	switch {
	case b.hasW && b.hasH:
		return []string{
			fmt.Sprintf("resize_%dx%dmin", b.w, b.h),
			fmt.Sprintf("fit_%dx%d", b.w, b.h),
			"bg_" + bg,
		}
	case b.hasW:
		return []string{fmt.Sprintf("resize_%dmin", b.w)}
	default:
		return []string{fmt.Sprintf("resize_x%dmin", b.h)}
	}
}

// ParseFit maps "contain" or "cover" to its Fit.
func ParseFit(s string) (Fit, error) {
	switch s {
	case "contain":
		return Contain, nil
	case "cover":
		return Cover, nil
	default:
		return nil, fmt.Errorf("mutation: unknown fit %q (want contain or cover)", s)
	}
}

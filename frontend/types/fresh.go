package types

// Fresher hands out globally unique variable identities for one checker
// run. It is mutable and not suitable for concurrent use.
type Fresher struct {
	count uint64
}

func NewFresher() *Fresher {
	return &Fresher{}
}

func (f *Fresher) next() uint64 {
	f.count++
	return f.count
}

func (f *Fresher) NewTypeVar(level int, hint string) *Var {
	return &Var{ID: f.next(), Hint: hint, Level: level}
}

// NewRigidVar mints the variable standing for a declared type
// parameter.
func (f *Fresher) NewRigidVar(hint string) *Var {
	return &Var{ID: f.next(), Hint: hint, Level: RigidLevel}
}

func (f *Fresher) NewCaptVar(level int, hint string) CaptureVar {
	return CaptureVar{ID: f.next(), Hint: hint, Level: level}
}

func (f *Fresher) NewContinuationCapture() ContinuationCapture {
	return ContinuationCapture{ID: f.next()}
}

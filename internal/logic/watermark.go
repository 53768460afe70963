package logic

// optFloat is a watermark that may be unset. An unset watermark compares
// greater than any real value so the first observed sample always registers
// as a falling edge.
type optFloat struct {
	v  float64
	ok bool
}

func (o optFloat) greater(x float64) bool { return !o.ok || o.v > x }

func (o optFloat) less(x float64) bool { return o.ok && o.v < x }

func (o *optFloat) set(x float64) { o.v, o.ok = x, true }

type optInt struct {
	v  int
	ok bool
}

func (o optInt) greater(x int) bool { return !o.ok || o.v > x }

func (o optInt) less(x int) bool { return o.ok && o.v < x }

func (o *optInt) set(x int) { o.v, o.ok = x, true }

type optPos struct {
	v  [3]float64
	ok bool
}

func (o optPos) differs(p [3]float64) bool { return !o.ok || o.v != p }

func (o *optPos) set(p [3]float64) { o.v, o.ok = p, true }

// Package exposure chooses the next spectrometer integration time from the
// most recent observation. The controller is stateless: each decision depends
// only on the last spectrum's peak intensity and the last setting.
package exposure

import "math"

// Ladder is the discrete ordered set of allowed integration times, in ms.
type Ladder struct {
	Min  int
	Max  int
	Step int
}

// Values expands the ladder into its concrete settings, Min through Max
// inclusive.
func (l Ladder) Values() []int {
	if l.Step <= 0 || l.Max < l.Min {
		return nil
	}
	vals := make([]int, 0, (l.Max-l.Min)/l.Step+1)
	for v := l.Min; v <= l.Max; v += l.Step {
		vals = append(vals, v)
	}
	return vals
}

// Controller scales the exposure so the next spectrum peaks near
// TargetIntensity.
type Controller struct {
	Ladder          Ladder
	TargetIntensity float64
}

// Next returns the ladder value nearest to
// lastIntegration * TargetIntensity / lastPeak. When two ladder values are
// equidistant the lower one wins. A dead or saturated-dark reading
// (lastPeak <= 0) cannot be scaled; the controller maxes out the exposure
// instead of dividing by zero.
func (c Controller) Next(lastPeak float64, lastIntegration int) int {
	vals := c.Ladder.Values()
	if len(vals) == 0 {
		return lastIntegration
	}
	if lastPeak <= 0 {
		return vals[len(vals)-1]
	}
	scaled := float64(lastIntegration) * c.TargetIntensity / lastPeak

	best := vals[0]
	bestDiff := math.Abs(float64(vals[0]) - scaled)
	for _, v := range vals[1:] {
		if d := math.Abs(float64(v) - scaled); d < bestDiff {
			best, bestDiff = v, d
		}
	}
	return best
}

package questnav

import "time"

// rateWindowSize bounds the rolling frame-rate window.
const rateWindowSize = 10

// rateEstimator keeps a rolling window of instantaneous frame rates and
// reports their mean.
type rateEstimator struct {
	samples []float64
	prev    time.Time
}

// observe records one frame arrival. The first observation only seeds the
// reference time, and arrivals with non-positive spacing contribute no
// sample; frames drained in the same tick share a timestamp, so a batch of
// n frames yields at most one sample.
func (r *rateEstimator) observe(now time.Time) {
	if !r.prev.IsZero() {
		if dt := now.Sub(r.prev).Seconds(); dt > 0 {
			r.samples = append(r.samples, 1.0/dt)
			if len(r.samples) > rateWindowSize {
				r.samples = r.samples[1:]
			}
		}
	}
	r.prev = now
}

// average returns the mean of the current window, or ok=false while the
// window is still empty.
func (r *rateEstimator) average() (hz float64, ok bool) {
	if len(r.samples) == 0 {
		return 0, false
	}
	var sum float64
	for _, s := range r.samples {
		sum += s
	}
	return sum / float64(len(r.samples)), true
}

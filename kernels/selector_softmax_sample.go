package kernels

// SoftmaxContext is the call-site record for the softmax selector
// (spec.md §4.2 "Softmax").
type SoftmaxContext struct {
	Inner int64
}

// SelectSoftmax picks small/online per spec.md §4.2.
func SelectSoftmax(c SoftmaxContext) string {
	if c.Inner <= 256 {
		return "small"
	}
	return "online"
}

// SampleContext is the call-site record for the sample selector
// (spec.md §4.2 "Sample").
type SampleContext struct {
	Vocab       int64
	Temperature float64
	TopK        int
}

const sampleArgmaxReduceVocabThreshold = 65536
const sampleSmallTopKThreshold = 16

// SelectSample picks argmax/argmax_reduce/single_pass/softmax_and_sample
// per spec.md §4.2 "Sample".
func SelectSample(c SampleContext) string {
	if c.Temperature == 0 {
		if c.Vocab > sampleArgmaxReduceVocabThreshold {
			return "argmax_reduce"
		}
		return "argmax"
	}
	if c.TopK > 0 && c.TopK <= sampleSmallTopKThreshold {
		return "single_pass"
	}
	return "softmax_and_sample"
}

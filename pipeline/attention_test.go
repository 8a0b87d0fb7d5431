package pipeline

import "testing"

func TestAttentionWorkgroupSizeX(t *testing.T) {
	cases := map[string]int64{
		"decode_subgroup":      64,
		"decode_chunked":       64,
		"decode_chunked_f16kv": 64,
		"decode":               32,
		"decode_small":         32,
		"decode_streaming":     32,
	}
	for variant, want := range cases {
		if got := attentionWorkgroupSizeX(variant); got != want {
			t.Errorf("attentionWorkgroupSizeX(%q) = %d, want %d", variant, got, want)
		}
	}
}

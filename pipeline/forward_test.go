package pipeline

import (
	"testing"

	"github.com/dopplerml/doppler/model"
)

func TestEngineIsStopMatchesStopTokenSet(t *testing.T) {
	e := &Engine{model: &model.Model{StopTokens: map[int32]struct{}{2: {}, 3: {}}}}

	if !e.IsStop(2) {
		t.Error("IsStop(2) = false, want true (2 is a stop token)")
	}
	if e.IsStop(5) {
		t.Error("IsStop(5) = true, want false (5 is not a stop token)")
	}
}

func TestEngineIsStopEmptySet(t *testing.T) {
	e := &Engine{model: &model.Model{StopTokens: map[int32]struct{}{}}}
	if e.IsStop(0) {
		t.Error("IsStop(0) = true with an empty stop set, want false")
	}
}

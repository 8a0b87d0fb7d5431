// Package config defines the immutable configuration surface consumed by
// the DOPPLER runtime (gpu, kernels, quant, model, pipeline, scheduler).
//
// Config is built once through New and is never mutated afterward; every
// option group mirrors a section of the runtime's consumed configuration
// contract (attention, ffn, normalization, output, rope, sampling,
// batching, scheduler). Resolving these values from presets, files, or
// flags is the job of an external configuration resolver and is out of
// scope for this package.
package config

import "fmt"

// Activation selects the FFN activation function.
type Activation int

const (
	ActivationSiLU Activation = iota
	ActivationGELU
	ActivationSwiGLU
	ActivationGeGLU
)

func (a Activation) String() string {
	switch a {
	case ActivationSiLU:
		return "silu"
	case ActivationGELU:
		return "gelu"
	case ActivationSwiGLU:
		return "swiglu"
	case ActivationGeGLU:
		return "geglu"
	default:
		return fmt.Sprintf("activation(%d)", int(a))
	}
}

// RopeScalingType selects the RoPE frequency-scaling scheme.
type RopeScalingType int

const (
	RopeScalingNone RopeScalingType = iota
	RopeScalingLinear
	RopeScalingDynamic
	RopeScalingYaRN
)

// SchedulerPolicy selects the VLIW scheduler's ready-set priority function.
type SchedulerPolicy int

const (
	SchedulerPolicyHeight SchedulerPolicy = iota
	SchedulerPolicySlack
	SchedulerPolicyMix
)

func (p SchedulerPolicy) String() string {
	switch p {
	case SchedulerPolicyHeight:
		return "height"
	case SchedulerPolicySlack:
		return "slack"
	case SchedulerPolicyMix:
		return "mix"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// Attention holds inference.attention.
type Attention struct {
	AttentionKernel      string  // optional explicit variant override, empty = auto-select
	SlidingWindow        int     // 0 = no sliding window
	AttnLogitSoftcapping float64 // 0 = disabled
	QueryPreAttnScalar   float64 // 0 = use default 1/sqrt(head_dim)
	AttentionBias        bool    // see DESIGN.md Open Question 1: applied to Q/K/V projections
}

// FFN holds inference.ffn.
type FFN struct {
	Activation    Activation
	Gated         bool
	FusedGateUp   bool
	SwiGLULimit   float64 // 0 = disabled
}

// Normalization holds inference.normalization.
type Normalization struct {
	RMSNormEps           float64
	RMSNormWeightOffset  bool
	PostAttentionNorm    bool
	PreFeedforwardNorm   bool
	PostFeedforwardNorm  bool
}

// Output holds inference.output.
type Output struct {
	FinalLogitSoftcapping float64 // 0 = disabled
	TieWordEmbeddings     bool
}

// Rope holds inference.rope.
type Rope struct {
	Theta         float64
	LocalTheta    float64 // 0 = unset, falls back to Theta
	ScalingType   RopeScalingType
	ScalingFactor float64
}

// Sampling holds inference.sampling.
type Sampling struct {
	Temperature        float64
	TopK               int
	TopP               float64
	RepetitionPenalty  float64
	Seed               int64
}

// Batching holds inference.batching.
type Batching struct {
	MaxTokens int
}

// Scheduler holds the VLIW scheduler's policy parameters.
type Scheduler struct {
	Policy           SchedulerPolicy
	Restarts         int
	TemperatureStart float64
	TemperatureDecay float64
	MutationCount    int
	Jitter           float64
}

// Config is the complete, immutable configuration tree. Build with New;
// never mutate a *Config after construction — callers that need a
// variant should build a fresh Config with different options.
type Config struct {
	Attention     Attention
	FFN           FFN
	Normalization Normalization
	Output        Output
	Rope          Rope
	Sampling      Sampling
	Batching      Batching
	Scheduler     Scheduler
}

// Option mutates a Config under construction. Options are applied in
// order and the result is validated once by New.
type Option func(*Config)

func defaults() Config {
	return Config{
		Normalization: Normalization{RMSNormEps: 1e-6},
		Rope:          Rope{Theta: 10000, ScalingFactor: 1.0},
		Sampling:      Sampling{Temperature: 1.0, TopP: 1.0, RepetitionPenalty: 1.0},
		Batching:      Batching{MaxTokens: 4096},
		Scheduler: Scheduler{
			Policy:           SchedulerPolicyMix,
			Restarts:         1,
			TemperatureStart: 1.0,
			TemperatureDecay: 0.95,
			MutationCount:    1,
			Jitter:           0,
		},
	}
}

// New builds a Config from defaults plus the given options, and validates
// the result. A configuration error is returned before any GPU work is
// attempted, per the "configuration" error kind in the error design.
func New(opts ...Option) (*Config, error) {
	cfg := defaults()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Normalization.RMSNormEps <= 0 {
		return fmt.Errorf("config: inference.normalization.rms_norm_eps must be positive, got %v", c.Normalization.RMSNormEps)
	}
	if c.Rope.Theta <= 0 {
		return fmt.Errorf("config: inference.rope.theta must be positive, got %v", c.Rope.Theta)
	}
	if c.Rope.ScalingFactor <= 0 {
		return fmt.Errorf("config: inference.rope.scaling_factor must be positive, got %v", c.Rope.ScalingFactor)
	}
	if c.Sampling.Temperature < 0 {
		return fmt.Errorf("config: inference.sampling.temperature must be non-negative, got %v", c.Sampling.Temperature)
	}
	if c.Sampling.TopK < 0 {
		return fmt.Errorf("config: inference.sampling.top_k must be non-negative, got %v", c.Sampling.TopK)
	}
	if c.Sampling.TopP <= 0 || c.Sampling.TopP > 1 {
		return fmt.Errorf("config: inference.sampling.top_p must be in (0, 1], got %v", c.Sampling.TopP)
	}
	if c.Sampling.RepetitionPenalty <= 0 {
		return fmt.Errorf("config: inference.sampling.repetition_penalty must be positive, got %v", c.Sampling.RepetitionPenalty)
	}
	if c.Batching.MaxTokens <= 0 {
		return fmt.Errorf("config: inference.batching.max_tokens must be positive, got %v", c.Batching.MaxTokens)
	}
	if c.Attention.SlidingWindow < 0 {
		return fmt.Errorf("config: inference.attention.sliding_window must be non-negative, got %v", c.Attention.SlidingWindow)
	}
	if c.Scheduler.Restarts < 0 || c.Scheduler.MutationCount < 0 {
		return fmt.Errorf("config: scheduler restarts/mutation_count must be non-negative")
	}
	return nil
}

// LocalRopeTheta returns the sliding-layer RoPE base, falling back to the
// global theta when no local theta is configured.
func (c *Config) LocalRopeTheta() float64 {
	if c.Rope.LocalTheta > 0 {
		return c.Rope.LocalTheta
	}
	return c.Rope.Theta
}

// WithAttention sets inference.attention.
func WithAttention(a Attention) Option { return func(c *Config) { c.Attention = a } }

// WithFFN sets inference.ffn.
func WithFFN(f FFN) Option { return func(c *Config) { c.FFN = f } }

// WithNormalization sets inference.normalization.
func WithNormalization(n Normalization) Option { return func(c *Config) { c.Normalization = n } }

// WithOutput sets inference.output.
func WithOutput(o Output) Option { return func(c *Config) { c.Output = o } }

// WithRope sets inference.rope.
func WithRope(r Rope) Option { return func(c *Config) { c.Rope = r } }

// WithSampling sets inference.sampling.
func WithSampling(s Sampling) Option { return func(c *Config) { c.Sampling = s } }

// WithBatching sets inference.batching.
func WithBatching(b Batching) Option { return func(c *Config) { c.Batching = b } }

// WithScheduler sets the scheduler policy parameters.
func WithScheduler(s Scheduler) Option { return func(c *Config) { c.Scheduler = s } }

package kernels

var gatherBindings = []BindingDescriptor{
	{Binding: 0, Kind: BindingUniform, MinBindingSize: 16},
	{Binding: 1, Kind: BindingReadOnlyStorage},
	{Binding: 2, Kind: BindingReadOnlyStorage},
	{Binding: 3, Kind: BindingStorage},
}

var residualBindings = []BindingDescriptor{
	{Binding: 0, Kind: BindingUniform, MinBindingSize: 16},
	{Binding: 1, Kind: BindingReadOnlyStorage},
	{Binding: 2, Kind: BindingReadOnlyStorage},
	{Binding: 3, Kind: BindingStorage},
}

var ropeBindings = []BindingDescriptor{
	{Binding: 0, Kind: BindingUniform, MinBindingSize: 32},
	{Binding: 1, Kind: BindingStorage},
}

var scatterAddBindings = []BindingDescriptor{
	{Binding: 0, Kind: BindingUniform, MinBindingSize: 16},
	{Binding: 1, Kind: BindingReadOnlyStorage},
	{Binding: 2, Kind: BindingReadOnlyStorage},
	{Binding: 3, Kind: BindingReadOnlyStorage},
	{Binding: 4, Kind: BindingStorage},
}

var biasAddBindings = []BindingDescriptor{
	{Binding: 0, Kind: BindingUniform, MinBindingSize: 16},
	{Binding: 1, Kind: BindingReadOnlyStorage},
	{Binding: 2, Kind: BindingStorage},
}

var scaledAddBindings = []BindingDescriptor{
	{Binding: 0, Kind: BindingUniform, MinBindingSize: 16},
	{Binding: 1, Kind: BindingReadOnlyStorage},
	{Binding: 2, Kind: BindingReadOnlyStorage},
	{Binding: 3, Kind: BindingStorage},
}

var softcapBindings = []BindingDescriptor{
	{Binding: 0, Kind: BindingUniform, MinBindingSize: 16},
	{Binding: 1, Kind: BindingStorage},
}

// registerMisc registers the kernels that have no variant selector in
// spec.md §4.2: gather, residual add (default and scaled_add), RoPE,
// scatter-add, and the activation helpers (bias_add, softcap). Callers
// name the variant they want directly.
func registerMisc(r *Registry) {
	r.register(OpGather,
		Variant{Name: "default", Source: miscSource, EntryPoint: "cs_gather", WorkgroupSize: [3]uint32{64, 1, 1}, Bindings: gatherBindings},
	)
	r.register(OpResidual,
		Variant{Name: "default", Source: miscSource, EntryPoint: "cs_residual_add", WorkgroupSize: [3]uint32{64, 1, 1}, Bindings: residualBindings},
		Variant{Name: "scaled_add", Source: miscSource, EntryPoint: "cs_scaled_add", WorkgroupSize: [3]uint32{64, 1, 1}, Bindings: scaledAddBindings},
	)
	r.register(OpRope,
		Variant{Name: "default", Source: miscSource, EntryPoint: "cs_rope", WorkgroupSize: [3]uint32{8, 8, 1}, Bindings: ropeBindings},
	)
	r.register(OpScatterAdd,
		Variant{Name: "default", Source: miscSource, EntryPoint: "cs_scatter_add", WorkgroupSize: [3]uint32{64, 1, 1}, Bindings: scatterAddBindings},
	)
	r.register(OpActivation,
		Variant{Name: "bias_add", Source: miscSource, EntryPoint: "cs_bias_add", WorkgroupSize: [3]uint32{64, 1, 1}, Bindings: biasAddBindings},
		Variant{Name: "softcap", Source: miscSource, EntryPoint: "cs_softcap", WorkgroupSize: [3]uint32{64, 1, 1}, Bindings: softcapBindings},
	)
}

// registerAll wires every operation's static variant table into r. Split
// across register_*.go files by operation family to mirror the
// teacher's per-concern file layout.
func registerAll(r *Registry) {
	registerMatmul(r)
	registerAttention(r)
	registerDequant(r)
	registerRMSNorm(r)
	registerFusedMatmulNorm(r)
	registerFFN(r)
	registerSoftmax(r)
	registerSample(r)
	registerMisc(r)
}

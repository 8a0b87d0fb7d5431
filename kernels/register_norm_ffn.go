package kernels

var rmsnormBindings = []BindingDescriptor{
	{Binding: 0, Kind: BindingUniform, MinBindingSize: 16},
	{Binding: 1, Kind: BindingReadOnlyStorage},
	{Binding: 2, Kind: BindingReadOnlyStorage},
	{Binding: 3, Kind: BindingReadOnlyStorage},
	{Binding: 4, Kind: BindingStorage},
}

var fusedBindings = []BindingDescriptor{
	{Binding: 0, Kind: BindingUniform, MinBindingSize: 16},
	{Binding: 1, Kind: BindingReadOnlyStorage},
	{Binding: 2, Kind: BindingReadOnlyStorage},
	{Binding: 3, Kind: BindingReadOnlyStorage},
	{Binding: 4, Kind: BindingStorage},
}

var ffnBindings = []BindingDescriptor{
	{Binding: 0, Kind: BindingUniform, MinBindingSize: 32},
	{Binding: 1, Kind: BindingReadOnlyStorage},
	{Binding: 2, Kind: BindingReadOnlyStorage},
	{Binding: 3, Kind: BindingStorage},
}

func registerRMSNorm(r *Registry) {
	r.register(OpRMSNorm,
		Variant{Name: "small", Source: rmsnormSource, EntryPoint: "cs_small", WorkgroupSize: [3]uint32{64, 1, 1}, Bindings: rmsnormBindings},
		Variant{Name: "default", Source: rmsnormSource, EntryPoint: "cs_default", WorkgroupSize: [3]uint32{64, 1, 1}, Bindings: rmsnormBindings},
		Variant{Name: "residual", Source: rmsnormSource, EntryPoint: "cs_residual", WorkgroupSize: [3]uint32{64, 1, 1}, Bindings: rmsnormBindings},
	)
}

func registerFusedMatmulNorm(r *Registry) {
	r.register(OpFusedMatmulNorm,
		Variant{Name: "small", Source: fusedSource, EntryPoint: "cs_small", WorkgroupSize: [3]uint32{1, 1, 1}, Bindings: fusedBindings},
		Variant{Name: "medium", Source: fusedSource, EntryPoint: "cs_medium", WorkgroupSize: [3]uint32{1, 1, 1}, Bindings: fusedBindings},
	)
}

func registerFFN(r *Registry) {
	r.register(OpFusedFFN,
		Variant{Name: "multi", Source: ffnSource, EntryPoint: "cs_multi", WorkgroupSize: [3]uint32{64, 1, 1}, Bindings: ffnBindings},
		Variant{Name: "batched", Source: ffnSource, EntryPoint: "cs_batched", WorkgroupSize: [3]uint32{8, 8, 1}, Bindings: ffnBindings},
		Variant{Name: "f16", Source: ffnSource, EntryPoint: "cs_f16", WorkgroupSize: [3]uint32{64, 1, 1}, Required: CapabilityRequirement{RequireF16: true}, Bindings: ffnBindings},
		Variant{Name: "default", Source: ffnSource, EntryPoint: "cs_default", WorkgroupSize: [3]uint32{64, 1, 1}, Bindings: ffnBindings},
	)
}

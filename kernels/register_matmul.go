package kernels

// matmulBindings is shared by every matmul variant: a dims uniform plus
// A, B, and output storage buffers, all in one bind group.
var matmulBindings = []BindingDescriptor{
	{Binding: 0, Kind: BindingUniform, MinBindingSize: 16},
	{Binding: 1, Kind: BindingReadOnlyStorage},
	{Binding: 2, Kind: BindingReadOnlyStorage},
	{Binding: 3, Kind: BindingStorage},
}

func registerMatmul(r *Registry) {
	r.register(OpMatmul,
		Variant{Name: "tiled_f32", Source: matmulSource, EntryPoint: "cs_tiled_f32", WorkgroupSize: [3]uint32{8, 8, 1}, Bindings: matmulBindings},
		Variant{Name: "f16", Source: matmulSource, EntryPoint: "cs_f16", WorkgroupSize: [3]uint32{8, 8, 1}, Required: CapabilityRequirement{RequireF16: true}, Bindings: matmulBindings},
		Variant{Name: "f16_vec4", Source: matmulSource, EntryPoint: "cs_f16_vec4", WorkgroupSize: [3]uint32{8, 8, 1}, Required: CapabilityRequirement{RequireF16: true}, Bindings: matmulBindings},
		Variant{Name: "f16w_f32a", Source: matmulSource, EntryPoint: "cs_f16w_f32a", WorkgroupSize: [3]uint32{8, 8, 1}, Required: CapabilityRequirement{RequireF16: true}, Bindings: matmulBindings},
		Variant{Name: "gemv", Source: matmulSource, EntryPoint: "cs_gemv", WorkgroupSize: [3]uint32{64, 1, 1}, Bindings: matmulBindings},
		Variant{Name: "gemv_subgroup", Source: matmulSource, EntryPoint: "cs_gemv_subgroup", WorkgroupSize: [3]uint32{64, 1, 1}, Required: CapabilityRequirement{RequireSubgroups: true}, Bindings: matmulBindings},
		Variant{Name: "gemv_subgroup_vec4", Source: matmulSource, EntryPoint: "cs_gemv_subgroup_vec4", WorkgroupSize: [3]uint32{64, 1, 1}, Required: CapabilityRequirement{RequireSubgroups: true}, Bindings: matmulBindings},
		Variant{Name: "gemv_subgroup_multicol", Source: matmulSource, EntryPoint: "cs_gemv_subgroup_multicol", WorkgroupSize: [3]uint32{128, 1, 1}, Required: CapabilityRequirement{RequireSubgroups: true}, Bindings: matmulBindings},
		Variant{Name: "q4_fused", Source: matmulSource, EntryPoint: "cs_q4_fused", WorkgroupSize: [3]uint32{64, 1, 1}, Required: CapabilityRequirement{RequireSubgroups: true}, Bindings: matmulBindings},
		Variant{Name: "q4_fused_multicol", Source: matmulSource, EntryPoint: "cs_q4_fused_multicol", WorkgroupSize: [3]uint32{128, 1, 1}, Required: CapabilityRequirement{RequireSubgroups: true}, Bindings: matmulBindings},
		Variant{Name: "q4_fused_batched", Source: matmulSource, EntryPoint: "cs_q4_fused_batched", WorkgroupSize: [3]uint32{8, 8, 1}, Required: CapabilityRequirement{RequireSubgroups: true}, Bindings: matmulBindings},
		Variant{Name: "lora", Source: matmulSource, EntryPoint: "cs_lora", WorkgroupSize: [3]uint32{8, 8, 1}, Bindings: matmulBindings},
	)
}

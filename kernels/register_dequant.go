package kernels

var dequantBindings = []BindingDescriptor{
	{Binding: 0, Kind: BindingUniform, MinBindingSize: 16},
	{Binding: 1, Kind: BindingReadOnlyStorage},
	{Binding: 2, Kind: BindingStorage},
}

func registerDequant(r *Registry) {
	r.register(OpDequant,
		Variant{Name: "q4k", Source: dequantSource, EntryPoint: "cs_q4k", WorkgroupSize: [3]uint32{64, 1, 1}, Bindings: dequantBindings},
		Variant{Name: "q4k_vec4", Source: dequantSource, EntryPoint: "cs_q4k_vec4", WorkgroupSize: [3]uint32{64, 1, 1}, Bindings: dequantBindings},
		Variant{Name: "q4k_subgroup", Source: dequantSource, EntryPoint: "cs_q4k_subgroup", WorkgroupSize: [3]uint32{64, 1, 1}, Required: CapabilityRequirement{RequireSubgroups: true}, Bindings: dequantBindings},
		Variant{Name: "q6k", Source: dequantSource, EntryPoint: "cs_q6k", WorkgroupSize: [3]uint32{64, 1, 1}, Bindings: dequantBindings},
		Variant{Name: "q6k_vec4", Source: dequantSource, EntryPoint: "cs_q6k_vec4", WorkgroupSize: [3]uint32{64, 1, 1}, Bindings: dequantBindings},
		Variant{Name: "q8_0", Source: dequantSource, EntryPoint: "cs_q8_0", WorkgroupSize: [3]uint32{64, 1, 1}, Bindings: dequantBindings},
		Variant{Name: "q8_0_vec4", Source: dequantSource, EntryPoint: "cs_q8_0_vec4", WorkgroupSize: [3]uint32{64, 1, 1}, Bindings: dequantBindings},
		Variant{Name: "q8_0_subgroup", Source: dequantSource, EntryPoint: "cs_q8_0_subgroup", WorkgroupSize: [3]uint32{64, 1, 1}, Required: CapabilityRequirement{RequireSubgroups: true}, Bindings: dequantBindings},
		Variant{Name: "mxfp4", Source: dequantSource, EntryPoint: "cs_mxfp4", WorkgroupSize: [3]uint32{64, 1, 1}, Bindings: dequantBindings},
		Variant{Name: "mxfp4_vec4", Source: dequantSource, EntryPoint: "cs_mxfp4_vec4", WorkgroupSize: [3]uint32{64, 1, 1}, Bindings: dequantBindings},
	)
}

package kernels

var attentionBindings = []BindingDescriptor{
	{Binding: 0, Kind: BindingUniform, MinBindingSize: 48},
	{Binding: 1, Kind: BindingReadOnlyStorage},
	{Binding: 2, Kind: BindingReadOnlyStorage},
	{Binding: 3, Kind: BindingReadOnlyStorage},
	{Binding: 4, Kind: BindingStorage},
}

func registerAttention(r *Registry) {
	r.register(OpAttention,
		Variant{Name: "decode", Source: attentionSource, EntryPoint: "cs_decode", WorkgroupSize: [3]uint32{32, 1, 1}, Bindings: attentionBindings},
		Variant{Name: "decode_small", Source: attentionSource, EntryPoint: "cs_decode_small", WorkgroupSize: [3]uint32{32, 1, 1}, Bindings: attentionBindings},
		Variant{Name: "decode_f16kv", Source: attentionSource, EntryPoint: "cs_decode_f16kv", WorkgroupSize: [3]uint32{32, 1, 1}, Required: CapabilityRequirement{RequireF16: true}, Bindings: attentionBindings},
		Variant{Name: "decode_subgroup", Source: attentionSource, EntryPoint: "cs_decode_subgroup", WorkgroupSize: [3]uint32{64, 1, 1}, Required: CapabilityRequirement{RequireSubgroups: true}, Bindings: attentionBindings},
		Variant{Name: "decode_chunked", Source: attentionSource, EntryPoint: "cs_decode_chunked", WorkgroupSize: [3]uint32{64, 1, 1}, Bindings: attentionBindings},
		Variant{Name: "decode_chunked_f16kv", Source: attentionSource, EntryPoint: "cs_decode_chunked_f16kv", WorkgroupSize: [3]uint32{64, 1, 1}, Required: CapabilityRequirement{RequireF16: true}, Bindings: attentionBindings},
		Variant{Name: "decode_streaming", Source: attentionSource, EntryPoint: "cs_decode_streaming", WorkgroupSize: [3]uint32{32, 1, 1}, Bindings: attentionBindings},
		Variant{Name: "decode_streaming_f16kv", Source: attentionSource, EntryPoint: "cs_decode_streaming_f16kv", WorkgroupSize: [3]uint32{32, 1, 1}, Required: CapabilityRequirement{RequireF16: true}, Bindings: attentionBindings},
		Variant{Name: "prefill", Source: attentionSource, EntryPoint: "cs_prefill", WorkgroupSize: [3]uint32{8, 8, 1}, SharedMemoryBytes: 49152, Bindings: attentionBindings},
		Variant{Name: "prefill_small", Source: attentionSource, EntryPoint: "cs_prefill_small", WorkgroupSize: [3]uint32{8, 8, 1}, Bindings: attentionBindings},
		Variant{Name: "prefill_streaming", Source: attentionSource, EntryPoint: "cs_prefill_streaming", WorkgroupSize: [3]uint32{8, 8, 1}, Bindings: attentionBindings},
	)
}

package kernels

var softmaxBindings = []BindingDescriptor{
	{Binding: 0, Kind: BindingUniform, MinBindingSize: 16},
	{Binding: 1, Kind: BindingReadOnlyStorage},
	{Binding: 2, Kind: BindingStorage},
}

var sampleBindings = []BindingDescriptor{
	{Binding: 0, Kind: BindingUniform, MinBindingSize: 16},
	{Binding: 1, Kind: BindingReadOnlyStorage},
	{Binding: 2, Kind: BindingStorage},
}

func registerSoftmax(r *Registry) {
	r.register(OpSoftmax,
		Variant{Name: "small", Source: softmaxSource, EntryPoint: "cs_small", WorkgroupSize: [3]uint32{1, 1, 1}, Bindings: softmaxBindings},
		Variant{Name: "online", Source: softmaxSource, EntryPoint: "cs_online", WorkgroupSize: [3]uint32{1, 1, 1}, Bindings: softmaxBindings},
	)
}

func registerSample(r *Registry) {
	r.register(OpSample,
		Variant{Name: "argmax", Source: sampleSource, EntryPoint: "cs_argmax", WorkgroupSize: [3]uint32{1, 1, 1}, Bindings: sampleBindings},
		Variant{Name: "argmax_reduce", Source: sampleSource, EntryPoint: "cs_argmax_reduce", WorkgroupSize: [3]uint32{64, 1, 1}, Bindings: sampleBindings},
		Variant{Name: "single_pass", Source: sampleSource, EntryPoint: "cs_single_pass", WorkgroupSize: [3]uint32{1, 1, 1}, Bindings: sampleBindings},
		Variant{Name: "softmax_and_sample", Source: sampleSource, EntryPoint: "cs_softmax_and_sample", WorkgroupSize: [3]uint32{1, 1, 1}, Bindings: sampleBindings},
	)
}
